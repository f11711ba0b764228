// Package bigtab provides selective access to very large flat tabular files
// without materializing the full dataset in memory.
//
// It targets workloads that need a small, filtered, column-limited subset of
// a much larger on-disk file, and that must choose between competing access
// strategies with different latency and memory tradeoffs:
//
//   - pkg/inspect reports a file's size, line count and a head sample
//     cheaply, without parsing it.
//   - pkg/reader performs column-projected, optionally row-limited bulk
//     reads into typed in-memory batches.
//   - pkg/store builds a persistent DuckDB table from the raw file once,
//     then answers predicate queries without re-scanning the file.
//   - pkg/bench times each strategy under identical inputs so the paths can
//     be compared on real data.
//
// The in-memory filter over a full read and the store's indexed query are
// contractually equivalent: for the same predicate both return the same row
// set, with the full original schema.
//
// # Quick start
//
//	batch, err := reader.Read(ctx, "bunmd.csv", reader.Options{
//		Columns: []string{"fname", "byear", "death_age"},
//	})
//
//	s, err := store.Open("bunmd.duckdb")
//	table, err := s.Build(ctx, "bunmd.csv")
//	matches, err := s.Query(ctx, table, tabular.Predicate{
//		Column: "fname",
//		Values: []string{"JOSH", "JOSHUA"},
//	})
//
// The cmd/bigtab CLI wraps the same calls for interactive use and prints a
// JSON comparison report for the bench subcommand.
package bigtab
