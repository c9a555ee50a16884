package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// SQL toolkit tool names.
const (
	SQLListTablesName   = "sql_db_list_tables"
	SQLSchemaName       = "sql_db_schema"
	SQLQueryName        = "sql_db_query"
	SQLQueryCheckerName = "sql_db_query_checker"
)

// SQLOptions configures a SQLDatabase.
type SQLOptions struct {
	// MaxRows bounds the rows returned by a query.
	MaxRows int
	// SampleRows is the number of example rows included in a table schema.
	SampleRows int
	// MaxChars truncates query output.
	MaxChars int
}

// SQLDatabase is a read-only view of a SQLite database used by the SQL
// toolkit. It is safe for concurrent use.
type SQLDatabase struct {
	db   *sql.DB
	opts SQLOptions
}

// OpenSQLite opens path read-only. Writes are rejected by the engine.
func OpenSQLite(path string, optFns ...func(o *SQLOptions)) (*SQLDatabase, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return NewSQLDatabase(db, optFns...), nil
}

// NewSQLDatabase wraps an open handle.
func NewSQLDatabase(db *sql.DB, optFns ...func(o *SQLOptions)) *SQLDatabase {
	opts := SQLOptions{MaxRows: 100, SampleRows: 3, MaxChars: 4000}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &SQLDatabase{db: db, opts: opts}
}

// Close releases the database handle.
func (d *SQLDatabase) Close() error { return d.db.Close() }

// Dialect names the SQL dialect for prompts.
func (d *SQLDatabase) Dialect() string { return "SQLite" }

// Tables returns the user table names in alphabetical order.
func (d *SQLDatabase) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}

	return names, rows.Err()
}

// TableInfo returns the CREATE statement and sample rows of each table.
func (d *SQLDatabase) TableInfo(ctx context.Context, tables []string) (string, error) {
	known, err := d.Tables(ctx)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, t := range tables {
		if !slices.Contains(known, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("table_names %v not found in database", missing)
	}

	blocks := make([]string, 0, len(tables))
	for _, t := range tables {
		var ddl string
		if err := d.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, t).Scan(&ddl); err != nil {
			return "", err
		}

		cols, rows, err := d.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(t), d.opts.SampleRows))
		if err != nil {
			return "", err
		}

		var b strings.Builder
		b.WriteString(strings.TrimSpace(ddl))
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n%s\n", d.opts.SampleRows, t, strings.Join(cols, "\t"))
		for _, r := range rows {
			vals := make([]string, len(r))
			for i, v := range r {
				vals[i] = truncate(formatValue(v), 100)
			}
			b.WriteString(strings.Join(vals, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("*/")

		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n"), nil
}

// Run executes query and renders the rows as a list of tuples, e.g.
// [(1, 'AC/DC'), (2, 'Accept')]. An empty result renders as "".
func (d *SQLDatabase) Run(ctx context.Context, query string) (string, error) {
	_, rows, err := d.query(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	tuples := make([]string, len(rows))
	for i, r := range rows {
		vals := make([]string, len(r))
		for j, v := range r {
			vals[j] = literal(v)
		}
		tuples[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	return truncate("["+strings.Join(tuples, ", ")+"]", d.opts.MaxChars), nil
}

// Check prepares query without running it.
func (d *SQLDatabase) Check(ctx context.Context, query string) error {
	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	return stmt.Close()
}

func (d *SQLDatabase) query(ctx context.Context, query string) ([]string, [][]any, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() && len(out) < d.opts.MaxRows {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}

	return cols, out, rows.Err()
}

// Tools returns the four toolkit tools bound to d.
func (d *SQLDatabase) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			SQLQueryName,
			"Input to this tool is a detailed and correct SQL query, output is a result from the database. "+
				"If the query is not correct, an error message will be returned. If an error is returned, rewrite the query, "+
				"check the query, and try again. If you encounter an issue with Unknown column 'xxxx' in 'field list', "+
				"use "+SQLSchemaName+" to query the correct table fields.",
			stringParameters("query", "A detailed and correct SQL query."),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				q, err := tool.StringArg(args, "query")
				if err != nil {
					return nil, err
				}
				tc.Logger().Debug("tool.sql.query", "query", q, "tool_call_id", tc.ToolCallID())
				return d.Run(tc.Context(), q)
			},
		),
		tool.NewFunctionTool(
			SQLSchemaName,
			"Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. "+
				"Be sure that the tables actually exist by calling "+SQLListTablesName+" first! Example Input: table1, table2, table3",
			stringParameters("table_names", "A comma-separated list of the table names for which to return the schema."),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				names, err := tool.StringArg(args, "table_names")
				if err != nil {
					return nil, err
				}
				return d.TableInfo(tc.Context(), splitNames(names))
			},
		),
		tool.NewFunctionTool(
			SQLListTablesName,
			"Input is an empty string, output is a comma-separated list of tables in the database.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tool_input": map[string]any{"type": "string", "description": "An empty string"},
				},
			},
			func(tc *core.ToolContext, _ map[string]any) (any, error) {
				tables, err := d.Tables(tc.Context())
				if err != nil {
					return nil, err
				}
				return strings.Join(tables, ", "), nil
			},
		),
		tool.NewFunctionTool(
			SQLQueryCheckerName,
			"Use this tool to double check if your query is correct before executing it. "+
				"Always use this tool before executing a query with "+SQLQueryName+"!",
			stringParameters("query", "A detailed and SQL query to be checked."),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				q, err := tool.StringArg(args, "query")
				if err != nil {
					return nil, err
				}
				if err := d.Check(tc.Context(), q); err != nil {
					return nil, fmt.Errorf("query is invalid: %w", err)
				}
				return "The query is valid:\n" + strings.TrimSpace(q), nil
			},
		),
	}
}

func stringParameters(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": description},
		},
		"required": []string{name},
	}
}

func splitNames(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", `\'`) + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(x), "'", `\'`) + "'"
	default:
		return formatValue(v)
	}
}
