package input

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure SQLScan implements pkg.Producer.
var _ pkg.Producer = (*SQLScan)(nil)

// SQLScan runs a query and produces its result set.
//
// Options:
//   - driver (required): database/sql driver name ("postgres", "mysql", "sqlite3").
//   - dsn (required): data source name; sqlite3 paths resolve against the config directory.
//   - query (required): the SELECT statement to run.
type SQLScan struct {
	pkg.Base

	driver string
	dsn    string
	query  string
}

func newSQLScan(b pkg.Base) (*SQLScan, error) {
	driver, err := b.RequireString("driver")
	if err != nil {
		return nil, err
	}
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, fmt.Errorf("%w: unknown sql driver %q (available: %s)", pkg.ErrInvalidOption, driver, strings.Join(sql.Drivers(), ", "))
	}

	dsn, err := b.RequireString("dsn")
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dsn = b.ResolvePath(dsn)
	}

	query, err := b.RequireString("query")
	if err != nil {
		return nil, err
	}

	return &SQLScan{Base: b, driver: driver, dsn: dsn, query: strings.TrimRight(strings.TrimSpace(query), ";")}, nil
}

func (*SQLScan) Name() string { return "sql_scan" }

// Produce runs the query and materializes the result.
func (s *SQLScan) Produce(ctx context.Context) (pkg.Frame, error) {
	var df dataframe.DataFrame
	err := s.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, s.query)
		if err != nil {
			return fmt.Errorf("running query: %w", err)
		}
		defer func() { _ = rows.Close() }()

		df, err = readRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log().Debug("query returned", "rows", df.Nrow(), "columns", df.Ncol())
	return df, nil
}

// PredictSchema describes the result set without fetching rows.
func (s *SQLScan) PredictSchema(ctx context.Context) (pkg.Schema, error) {
	var schema pkg.Schema
	err := s.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, describeQuery(s.query))
		if err != nil {
			return fmt.Errorf("describing query: %w", err)
		}
		defer func() { _ = rows.Close() }()

		types, err := rows.ColumnTypes()
		if err != nil {
			return fmt.Errorf("reading column types: %w", err)
		}

		schema = make(pkg.Schema, len(types))
		for _, ct := range types {
			schema[ct.Name()] = columnType(ct)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func (s *SQLScan) withDB(fn func(*sql.DB) error) error {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("opening %s database: %w", s.driver, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			s.Log().Warn("failed to close database", "driver", s.driver, "error", err)
		}
	}()
	return fn(db)
}

// describeQuery wraps query so that it returns its columns and no rows.
func describeQuery(query string) string {
	return "SELECT * FROM (" + query + ") AS cryoflow_describe LIMIT 0"
}

func readRows(rows *sql.Rows) (dataframe.DataFrame, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("reading column types: %w", err)
	}

	dtypes := make([]pkg.DataType, len(types))
	columns := make([][]any, len(types))
	for i, ct := range types {
		dtypes[i] = columnType(ct)
	}

	raw := make([]any, len(types))
	dest := make([]any, len(types))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range raw {
			cell, err := convert(v, dtypes[i])
			if err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("column %q: %w", types[i].Name(), err)
			}
			columns[i] = append(columns[i], cell)
		}
	}
	if err := rows.Err(); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("iterating rows: %w", err)
	}

	cols := make([]series.Series, len(types))
	for i, ct := range types {
		values := columns[i]
		if values == nil {
			values = []any{}
		}
		cols[i] = series.New(values, frames.ToSeriesType(dtypes[i]), ct.Name())
	}

	df := dataframe.New(cols...)
	return df, df.Err
}

// columnType maps a driver column type to the type stored in the frame.
// Temporal columns are carried as strings because frames have no datetime series.
func columnType(ct *sql.ColumnType) pkg.DataType {
	switch name := strings.ToUpper(ct.DatabaseTypeName()); {
	case name == "INTEGER", name == "INT", name == "BIGINT", name == "SMALLINT", name == "TINYINT",
		name == "MEDIUMINT", name == "INT2", name == "INT4", name == "INT8",
		name == "SERIAL", name == "BIGSERIAL", strings.HasPrefix(name, "UNSIGNED "):
		return pkg.TypeInt
	case name == "REAL", name == "FLOAT", name == "FLOAT4", name == "FLOAT8", name == "DOUBLE",
		name == "DOUBLE PRECISION", name == "NUMERIC", name == "DECIMAL":
		return pkg.TypeFloat
	case name == "BOOL", name == "BOOLEAN":
		return pkg.TypeBool
	case name != "":
		return pkg.TypeString
	}

	if st := ct.ScanType(); st != nil {
		switch st.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return pkg.TypeInt
		case reflect.Float32, reflect.Float64:
			return pkg.TypeFloat
		case reflect.Bool:
			return pkg.TypeBool
		}
	}
	return pkg.TypeString
}

// convert normalizes a scanned driver value to what a gota element accepts for dtype.
func convert(v any, dtype pkg.DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch dtype {
	case pkg.TypeInt:
		switch t := v.(type) {
		case int64:
			return int(t), nil
		case int32:
			return int(t), nil
		case int:
			return t, nil
		case uint64:
			return int(t), nil
		case float64:
			return int(t), nil
		case string:
			i, err := strconv.Atoi(t)
			if err != nil {
				return nil, err
			}
			return i, nil
		}
	case pkg.TypeFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	case pkg.TypeBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprint(t), nil
	}
}
