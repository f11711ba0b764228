// Command bigtab inspects, reads, stores and benchmarks selective access to
// large flat tabular files. It is the demo/report layer around the core
// packages; everything it prints comes straight from their results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/berkeley-demography/bigtab/pkg/bench"
	"github.com/berkeley-demography/bigtab/pkg/config"
	"github.com/berkeley-demography/bigtab/pkg/inspect"
	"github.com/berkeley-demography/bigtab/pkg/logger"
	"github.com/berkeley-demography/bigtab/pkg/reader"
	"github.com/berkeley-demography/bigtab/pkg/store"
	"github.com/berkeley-demography/bigtab/pkg/tabular"
)

var version = "0.1.0"

// previewRows caps how many rows read/query print to stdout
const previewRows = 10

var (
	cfgFile string
	cfg     *config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "bigtab",
		Short: "Selective access to large flat tabular files",
		Long: `bigtab compares access strategies for very large delimited files:
cheap inspection, column-projected bulk reads, and predicate queries against
a persistent DuckDB store built once from the raw file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd)
			return logger.Init(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				Encoding:    encodingFor(cfg),
			})
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("dev", false, "development logging")

	root.AddCommand(versionCmd(), inspectCmd(), readCmd(), buildCmd(), queryCmd(), benchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bigtab: %v\n", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func applyFlagOverrides(cmd *cobra.Command) {
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		cfg.Log.Development = true
	}
}

func encodingFor(cfg *config.Config) string {
	if cfg.Log.Development {
		return "console"
	}
	return "json"
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bigtab v%s\n", version)
		},
	}
}

// sourceArg resolves the file path from the positional argument or config
func sourceArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Source != "" {
		return cfg.Source, nil
	}
	return "", fmt.Errorf("no source file given (argument or config 'source')")
}

func inspectCmd() *cobra.Command {
	var head int

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Report size, line count and a head sample without materializing the file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sourceArg(args)
			if err != nil {
				return err
			}
			if head == 0 {
				head = cfg.Head
			}

			info, err := inspect.Inspect(path, head)
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}

	cmd.Flags().IntVar(&head, "head", 0, "number of sample lines")
	return cmd
}

func readCmd() *cobra.Command {
	var (
		limit   int
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "read [file]",
		Short: "Bulk-read the file into memory, optionally row-limited and column-projected",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sourceArg(args)
			if err != nil {
				return err
			}
			opts := reader.Options{Limit: limit, Columns: columns}
			if opts.Limit == 0 {
				opts.Limit = cfg.Read.Limit
			}
			if len(opts.Columns) == 0 {
				opts.Columns = cfg.Read.Columns
			}

			batch, err := reader.Read(context.Background(), path, opts)
			if err != nil {
				return err
			}
			return printBatch(batch)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max data rows to parse (0 = all)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to project")
	return cmd
}

func buildCmd() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "build [file]",
		Short: "Build the persistent store table from the raw file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sourceArg(args)
			if err != nil {
				return err
			}
			s, err := openStore(storePath)
			if err != nil {
				return err
			}
			defer s.Close()

			table, err := s.Build(context.Background(), path)
			if err != nil {
				return err
			}
			fmt.Printf("built table %q\n", table)
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "DuckDB database file")
	return cmd
}

func queryCmd() *cobra.Command {
	var (
		storePath string
		table     string
		column    string
		values    []string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a predicate query against the built store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(storePath)
			if err != nil {
				return err
			}
			defer s.Close()

			pred := predicate(column, values)
			if table == "" && cfg.Source != "" {
				table = store.TableName(cfg.Source)
			}

			batch, err := s.Query(context.Background(), table, pred)
			if err != nil {
				return err
			}
			return printBatch(batch)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "DuckDB database file")
	cmd.Flags().StringVar(&table, "table", "", "store table (default: derived from source)")
	cmd.Flags().StringVar(&column, "column", "", "predicate column")
	cmd.Flags().StringSliceVar(&values, "values", nil, "allowed predicate values")
	return cmd
}

func benchCmd() *cobra.Command {
	var (
		storePath string
		limit     int
		columns   []string
		column    string
		values    []string
	)

	cmd := &cobra.Command{
		Use:   "bench [file]",
		Short: "Time every access strategy under the same input and predicate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sourceArg(args)
			if err != nil {
				return err
			}
			s, err := openStore(storePath)
			if err != nil {
				return err
			}
			defer s.Close()

			pred := predicate(column, values)
			if len(columns) == 0 {
				columns = cfg.Read.Columns
			}
			if limit == 0 {
				limit = cfg.Read.Limit
			}

			suite, err := runComparison(context.Background(), s, path, pred, limit, columns)
			if err != nil {
				return err
			}
			return suite.WriteJSON(os.Stdout)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "DuckDB database file")
	cmd.Flags().IntVar(&limit, "limit", 0, "row limit for the limited-read strategy")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns for the projected-read strategy")
	cmd.Flags().StringVar(&column, "column", "", "predicate column")
	cmd.Flags().StringSliceVar(&values, "values", nil, "allowed predicate values")
	return cmd
}

// runComparison wraps each access path in the harness under identical inputs
func runComparison(ctx context.Context, s *store.Store, path string,
	pred tabular.Predicate, limit int, columns []string) (*bench.Suite, error) {

	suite := &bench.Suite{}

	res, err := bench.Time("inspect", func() error {
		_, err := inspect.Inspect(path, cfg.Head)
		return err
	})
	if err != nil {
		return nil, err
	}
	suite.Add(res)

	full, res, err := bench.Run(ctx, "bulk-read", func(ctx context.Context) (*tabular.Batch, error) {
		return reader.Read(ctx, path, reader.Options{})
	})
	if err != nil {
		return nil, err
	}
	suite.Add(res)

	if len(columns) > 0 {
		_, res, err = bench.Run(ctx, "projected-read", func(ctx context.Context) (*tabular.Batch, error) {
			return reader.Read(ctx, path, reader.Options{Columns: columns})
		})
		if err != nil {
			return nil, err
		}
		suite.Add(res)
	}

	if limit > 0 {
		_, res, err = bench.Run(ctx, "limited-read", func(ctx context.Context) (*tabular.Batch, error) {
			return reader.Read(ctx, path, reader.Options{Limit: limit})
		})
		if err != nil {
			return nil, err
		}
		suite.Add(res)
	}

	var table string
	res, err = bench.Time("store-build", func() error {
		var err error
		table, err = s.Build(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	suite.Add(res)

	if pred.Column != "" {
		_, res, err = bench.Run(ctx, "memory-filter", func(ctx context.Context) (*tabular.Batch, error) {
			return full.Filter(pred)
		})
		if err != nil {
			return nil, err
		}
		suite.Add(res)

		_, res, err = bench.Run(ctx, "store-query", func(ctx context.Context) (*tabular.Batch, error) {
			return s.Query(ctx, table, pred)
		})
		if err != nil {
			return nil, err
		}
		suite.Add(res)
	}

	return suite, nil
}

func openStore(flagPath string) (*store.Store, error) {
	path := flagPath
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no store path given (--store or config 'store.path')")
	}
	return store.Open(path)
}

func predicate(column string, values []string) tabular.Predicate {
	pred := tabular.Predicate{Column: column, Values: values}
	if pred.Column == "" {
		pred.Column = cfg.Predicate.Column
	}
	if len(pred.Values) == 0 {
		pred.Values = cfg.Predicate.Values
	}
	return pred
}

// printBatch prints counts and a bounded row preview
func printBatch(batch *tabular.Batch) error {
	preview := batch.Rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	out := struct {
		Rows    int           `json:"rows"`
		Cols    int           `json:"cols"`
		Schema  []tabularCol  `json:"schema"`
		Preview []tabular.Row `json:"preview"`
	}{
		Rows:    batch.Len(),
		Cols:    batch.Width(),
		Preview: preview,
	}
	for _, f := range batch.Schema.Fields {
		out.Schema = append(out.Schema, tabularCol{Name: f.Name, Type: string(f.Type)})
	}
	return printJSON(out)
}

type tabularCol struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
