// Package bench times the access strategies under identical inputs. The
// harness runs a wrapped operation exactly once, measures wall-clock elapsed
// time, and reports the result cardinality; failures propagate unchanged
// apart from a strategy label for attribution.
package bench

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/berkeley-demography/bigtab/pkg/errors"
	"github.com/berkeley-demography/bigtab/pkg/logger"
	"github.com/berkeley-demography/bigtab/pkg/tabular"
)

// Op is one access strategy under measurement, closed over its inputs
type Op func(ctx context.Context) (*tabular.Batch, error)

// Result describes one timed run of one strategy
type Result struct {
	Strategy string        `json:"strategy"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Rows     int           `json:"rows"`
	Cols     int           `json:"cols"`
}

// Run executes op once and times it. time.Since uses the monotonic clock.
// On failure the operation's error is returned with the strategy label
// attached as a detail; the result still carries the elapsed time.
func Run(ctx context.Context, label string, op Op) (*tabular.Batch, Result, error) {
	res := Result{Strategy: label}

	start := time.Now()
	batch, err := op(ctx)
	res.Elapsed = time.Since(start)

	if err != nil {
		return nil, res, tag(err, label)
	}

	res.Rows = batch.Len()
	res.Cols = batch.Width()

	logger.Info("strategy timed",
		zap.String("strategy", label),
		zap.Duration("elapsed", res.Elapsed),
		zap.Int("rows", res.Rows),
		zap.Int("cols", res.Cols))

	return batch, res, nil
}

// Time measures an operation that produces no batch, such as file
// inspection or a store build
func Time(label string, fn func() error) (Result, error) {
	res := Result{Strategy: label}

	start := time.Now()
	err := fn()
	res.Elapsed = time.Since(start)

	if err != nil {
		return res, tag(err, label)
	}

	logger.Info("strategy timed",
		zap.String("strategy", label),
		zap.Duration("elapsed", res.Elapsed))

	return res, nil
}

// tag attaches the strategy label without masking the underlying failure
func tag(err error, label string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.WithDetail("strategy", label)
	}
	return errors.Wrap(err, errors.TypeOf(err), "strategy "+label+" failed").
		WithDetail("strategy", label)
}

// Suite accumulates results across strategies for one comparison run
type Suite struct {
	Results []Result `json:"results"`
}

// Add records a result
func (s *Suite) Add(r Result) {
	s.Results = append(s.Results, r)
}

// WriteJSON renders the comparison report
func (s *Suite) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
