// Package reader performs column-projected bulk reads of delimited files
// into tabular batches.
package reader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"

	"go.uber.org/zap"

	bterrors "github.com/berkeley-demography/bigtab/pkg/errors"
	"github.com/berkeley-demography/bigtab/pkg/logger"
	"github.com/berkeley-demography/bigtab/pkg/rawfile"
	"github.com/berkeley-demography/bigtab/pkg/tabular"
)

// bufferSize is the read buffer for the underlying file
const bufferSize = 256 * 1024

// ctxCheckInterval is how many rows are parsed between cancellation checks
const ctxCheckInterval = 8192

// Options controls a bulk read
type Options struct {
	// Limit caps the number of data rows parsed, in file order. 0 reads all.
	Limit int
	// Columns restricts the read to the named columns, in the given order.
	// nil includes every column in header order.
	Columns []string
}

// Read parses the file into a batch. The header row defines the schema;
// every data row must match its field count or the whole read fails. Column
// types are inferred per column over all parsed rows, so a single read never
// mixes types within a column.
func Read(ctx context.Context, path string, opts Options) (*tabular.Batch, error) {
	src, err := rawfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	r := csv.NewReader(bufio.NewReaderSize(src, bufferSize))
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, bterrors.New(bterrors.ErrorTypeSchemaMismatch, "file has no header row").
			WithDetail("path", path)
	}
	if err != nil {
		return nil, wrapParse(err, path)
	}
	header = append([]string(nil), header...)

	proj, err := projection(header, opts.Columns)
	if err != nil {
		return nil, err
	}

	// Column-major staging: one string slice per projected column
	cells := make([][]string, len(proj))
	for i := range cells {
		cells[i] = make([]string, 0, 1024)
	}

	rows := 0
	for {
		if rows%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, bterrors.Wrap(err, bterrors.ErrorTypeInternal, "read cancelled")
			}
		}
		if opts.Limit > 0 && rows >= opts.Limit {
			break
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapParse(err, path)
		}

		for i, idx := range proj {
			cells[i] = append(cells[i], record[idx])
		}
		rows++
	}

	batch := assemble(rawfile.BaseName(path), header, proj, cells, rows)

	logger.Debug("bulk read complete",
		zap.String("path", path),
		zap.Int("rows", batch.Len()),
		zap.Int("columns", batch.Width()),
		zap.Int("limit", opts.Limit))

	return batch, nil
}

// projection resolves requested column names to header indices. With no
// request every header column is included in order.
func projection(header, columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(header))
		for i := range header {
			idx[i] = i
		}
		return idx, nil
	}

	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[name] = i
	}

	idx := make([]int, len(columns))
	for i, name := range columns {
		pos, ok := byName[name]
		if !ok {
			return nil, bterrors.Newf(bterrors.ErrorTypeUnknownColumn,
				"column %q not in header", name)
		}
		idx[i] = pos
	}
	return idx, nil
}

// assemble infers each projected column's type over all of its values and
// converts the staged cells into typed rows.
func assemble(name string, header []string, proj []int, cells [][]string, rows int) *tabular.Batch {
	fields := make([]tabular.Field, len(proj))
	for i, idx := range proj {
		fields[i] = tabular.Field{
			Name: header[idx],
			Type: tabular.InferFieldType(cells[i]),
		}
	}

	schema := &tabular.Schema{Name: name, Fields: fields}
	batch := &tabular.Batch{Schema: schema, Rows: make([]tabular.Row, rows)}

	for rowIdx := 0; rowIdx < rows; rowIdx++ {
		row := make(tabular.Row, len(fields))
		for colIdx, f := range fields {
			row[f.Name] = tabular.ConvertValue(cells[colIdx][rowIdx], f.Type)
		}
		batch.Rows[rowIdx] = row
	}
	return batch
}

func wrapParse(err error, path string) error {
	msg := "malformed row"
	if !errors.Is(err, csv.ErrFieldCount) {
		msg = "malformed file"
	}
	return bterrors.Wrap(err, bterrors.ErrorTypeSchemaMismatch, msg).
		WithDetail("path", path)
}
