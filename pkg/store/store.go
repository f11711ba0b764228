// Package store builds and queries the persistent indexed copy of a raw
// file. The engine is a single DuckDB database file; each source file maps
// to one table whose schema mirrors the source header with inferred types.
//
// Builds are all-or-nothing: rows land in a side table that is renamed into
// place in the same transaction, so a failed build leaves the previous table
// (or its absence) untouched and a reader never observes a half-built table.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode"

	"github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"

	"github.com/berkeley-demography/bigtab/pkg/errors"
	"github.com/berkeley-demography/bigtab/pkg/logger"
	"github.com/berkeley-demography/bigtab/pkg/rawfile"
	"github.com/berkeley-demography/bigtab/pkg/reader"
	"github.com/berkeley-demography/bigtab/pkg/tabular"
)

// insertChunk is the number of rows per multi-row INSERT during a build
const insertChunk = 500

// buildingSuffix marks the side table a build stages rows into
const buildingSuffix = "__building"

// Store is a handle on one DuckDB database file
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open opens (or creates) the database file. The store is single-writer, so
// the pool is pinned to one connection.
func Open(path string) (*Store, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		ctx := context.Background()
		_, _ = execer.ExecContext(ctx, "SET autoinstall_known_extensions = false;", nil)
		_, _ = execer.ExecContext(ctx, "SET autoload_known_extensions = false;", nil)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot open store").
			WithDetail("path", path)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{
		db:   db,
		path: path,
		log:  logger.With(zap.String("store", path)),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// TableName derives the table identifier for a source file: lower-cased base
// name, extensions stripped, non-alphanumeric runs collapsed to underscores
func TableName(sourcePath string) string {
	base := strings.ToLower(rawfile.BaseName(sourcePath))

	var b strings.Builder
	lastUnderscore := true
	for _, r := range base {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		return "t"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "t_" + name
	}
	return name
}

// Build transforms the whole source file into a freshly built table and
// returns the table name. The file is parsed in full before anything is
// written; a write failure rolls the transaction back.
func (s *Store) Build(ctx context.Context, sourcePath string) (string, error) {
	batch, err := reader.Read(ctx, sourcePath, reader.Options{})
	if err != nil {
		return "", err
	}

	table := TableName(sourcePath)
	building := table + buildingSuffix

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeBuildIncomplete, "cannot begin build transaction").
			WithDetail("table", table)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(building)); err != nil {
		return "", wrapBuild(err, table, "cannot drop stale build table")
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(building, batch.Schema)); err != nil {
		return "", wrapBuild(err, table, "cannot create build table")
	}
	if err := insertRows(ctx, tx, building, batch); err != nil {
		return "", wrapBuild(err, table, "cannot load rows")
	}

	// Swap the finished table into place
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return "", wrapBuild(err, table, "cannot drop previous table")
	}
	if _, err := tx.ExecContext(ctx,
		"ALTER TABLE "+quoteIdent(building)+" RENAME TO "+quoteIdent(table)); err != nil {
		return "", wrapBuild(err, table, "cannot rename build table into place")
	}

	if err := tx.Commit(); err != nil {
		return "", wrapBuild(err, table, "cannot commit build")
	}

	s.log.Info("store table built",
		zap.String("source", sourcePath),
		zap.String("table", table),
		zap.Int("rows", batch.Len()),
		zap.Int("columns", batch.Width()))

	return table, nil
}

// Query returns exactly the rows of the table satisfying the predicate, all
// columns intact. Only matching rows cross into process memory.
func (s *Store) Query(ctx context.Context, table string, pred tabular.Predicate) (*tabular.Batch, error) {
	if pred.Column == "" || len(pred.Values) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "predicate column and values are required")
	}

	schema, err := s.tableSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	field, ok := schema.Field(pred.Column)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownColumn,
			"predicate column %q not in table %q", pred.Column, table)
	}

	args := pred.TypedList(field.Type)
	out := &tabular.Batch{Schema: schema, Rows: []tabular.Row{}}
	if len(args) == 0 {
		// No value survives conversion to the column type; nothing can match
		return out, nil
	}

	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = quoteIdent(f.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(cols, ", "), quoteIdent(table),
		quoteIdent(pred.Column), placeholders(len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query failed").
			WithDetail("table", table)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanRow(rows, schema)
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "row scan failed").
			WithDetail("table", table)
	}

	s.log.Debug("selective query complete",
		zap.String("table", table),
		zap.String("column", pred.Column),
		zap.Int("matches", out.Len()))

	return out, nil
}

// Tables lists the built tables in the store
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main' ORDER BY table_name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot list tables")
		}
		// A staging table only survives a crashed build; never report it
		if strings.HasSuffix(name, buildingSuffix) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// tableSchema reconstructs the stored schema, in original column order
func (s *Store) tableSchema(ctx context.Context, table string) (*tabular.Schema, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = 'main' AND table_name = ?
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot read table schema").
			WithDetail("table", table)
	}
	defer rows.Close()

	schema := &tabular.Schema{Name: table}
	for rows.Next() {
		var name, sqlType string
		if err := rows.Scan(&name, &sqlType); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot read table schema").
				WithDetail("table", table)
		}
		schema.Fields = append(schema.Fields, tabular.Field{
			Name: name,
			Type: fieldTypeFromSQL(sqlType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "cannot read table schema").
			WithDetail("table", table)
	}

	if len(schema.Fields) == 0 {
		return nil, errors.Newf(errors.ErrorTypeStoreNotBuilt,
			"table %q has not been built", table)
	}
	return schema, nil
}

func createTableSQL(table string, schema *tabular.Schema) string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = quoteIdent(f.Name) + " " + sqlType(f.Type)
	}
	return "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(cols, ", ") + ")"
}

// insertRows loads the batch in multi-row INSERT chunks inside the build
// transaction
func insertRows(ctx context.Context, tx *sql.Tx, table string, batch *tabular.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	fields := batch.Schema.Fields
	rowPlaceholder := "(" + placeholders(len(fields)) + ")"
	prefix := "INSERT INTO " + quoteIdent(table) + " VALUES "

	for start := 0; start < batch.Len(); start += insertChunk {
		end := start + insertChunk
		if end > batch.Len() {
			end = batch.Len()
		}
		chunk := batch.Rows[start:end]

		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*len(fields))
		for i, row := range chunk {
			values[i] = rowPlaceholder
			for _, f := range fields {
				args = append(args, row[f.Name])
			}
		}

		if _, err := tx.ExecContext(ctx, prefix+strings.Join(values, ", "), args...); err != nil {
			return err
		}
	}
	return nil
}

func scanRow(rows *sql.Rows, schema *tabular.Schema) (tabular.Row, error) {
	targets := make([]interface{}, len(schema.Fields))
	for i, f := range schema.Fields {
		switch f.Type {
		case tabular.FieldTypeInt:
			targets[i] = new(sql.NullInt64)
		case tabular.FieldTypeFloat:
			targets[i] = new(sql.NullFloat64)
		default:
			targets[i] = new(sql.NullString)
		}
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "row scan failed")
	}

	row := make(tabular.Row, len(schema.Fields))
	for i, f := range schema.Fields {
		switch v := targets[i].(type) {
		case *sql.NullInt64:
			if v.Valid {
				row[f.Name] = v.Int64
			} else {
				row[f.Name] = nil
			}
		case *sql.NullFloat64:
			if v.Valid {
				row[f.Name] = v.Float64
			} else {
				row[f.Name] = nil
			}
		case *sql.NullString:
			if v.Valid {
				row[f.Name] = v.String
			} else {
				row[f.Name] = nil
			}
		}
	}
	return row, nil
}

func sqlType(ft tabular.FieldType) string {
	switch ft {
	case tabular.FieldTypeInt:
		return "BIGINT"
	case tabular.FieldTypeFloat:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

func fieldTypeFromSQL(dataType string) tabular.FieldType {
	switch strings.ToUpper(dataType) {
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT":
		return tabular.FieldTypeInt
	case "DOUBLE", "FLOAT", "REAL", "DECIMAL":
		return tabular.FieldTypeFloat
	default:
		return tabular.FieldTypeString
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func wrapBuild(err error, table, message string) error {
	return errors.Wrap(err, errors.ErrorTypeBuildIncomplete, message).
		WithDetail("table", table)
}
