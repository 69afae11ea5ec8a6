package api

import (
	"context"
	"database/sql"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/konfevgas/web-gis-project/internal/db"
)

// DBHandler handles the layer catalog endpoints.
type DBHandler struct {
	db      *sql.DB
	catalog *db.Catalog
}

// NewDBHandler creates a new database handler. Either argument may be nil
// when DuckDB is unavailable.
func NewDBHandler(conn *sql.DB, catalog *db.Catalog) *DBHandler {
	return &DBHandler{db: conn, catalog: catalog}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/catalog", h.ListCatalog, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("catalog"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("catalog"))
}

// CatalogOutput is the response for listing the layer catalog.
type CatalogOutput struct {
	Body struct {
		Layers []db.Entry `json:"layers" doc:"Configured layers"`
	}
}

// ListCatalog returns the layer catalog rows.
func (h *DBHandler) ListCatalog(ctx context.Context, input *struct{}) (*CatalogOutput, error) {
	if h.catalog == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	entries, err := h.catalog.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read catalog", err)
	}
	out := &CatalogOutput{}
	out.Body.Layers = entries
	return out, nil
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	out := &TablesOutput{}
	out.Body.Tables = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			out.Body.Tables = append(out.Body.Tables, name)
		}
	}
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL query (SELECT, SHOW, DESCRIBE)" example:"SELECT id, wms_layer FROM layers"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns []string         `json:"columns" doc:"Column names"`
		Rows    []map[string]any `json:"rows" doc:"Query results"`
		Count   int              `json:"count" doc:"Number of rows returned"`
	}
}

var readOnlyPrefixes = []string{"select", "show", "describe", "with", "summarize"}

// Query executes a read-only SQL query against DuckDB. The query runs in a
// transaction that is always rolled back.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !readOnly(input.Body.Query) {
		return nil, huma.Error422UnprocessableEntity("only single read-only queries are allowed")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = results
	out.Body.Count = len(results)
	return out, nil
}

func readOnly(query string) bool {
	if !singleStatement(query) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}

// singleStatement reports whether query holds at most one statement.
// Semicolons inside quotes and comments do not count, nor does a trailing
// one. Literals containing a backslash are refused: DuckDB reads them
// differently in E-prefixed strings and in plain ones.
func singleStatement(query string) bool {
	ended := false
	for i := 0; i < len(query); {
		rest := query[i:]
		switch c := query[i]; {
		case strings.HasPrefix(rest, "--"):
			n := strings.IndexByte(rest, '\n')
			if n < 0 {
				return true
			}
			i += n + 1
		case strings.HasPrefix(rest, "/*"):
			n := strings.Index(rest[2:], "*/")
			if n < 0 {
				return true
			}
			i += n + 4
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ';':
			ended = true
			i++
		case ended:
			return false
		case c == '\'' || c == '"':
			end := closingQuote(query, i)
			if end < 0 {
				return false
			}
			i = end
		default:
			i++
		}
	}
	return true
}

// closingQuote returns the index just past the literal opened at query[i],
// or -1 if it holds a backslash. A doubled quote is an escaped quote; an
// unterminated literal runs to the end.
func closingQuote(query string, i int) int {
	q := query[i]
	for j := i + 1; j < len(query); j++ {
		switch query[j] {
		case '\\':
			return -1
		case q:
			if j+1 < len(query) && query[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(query)
}
