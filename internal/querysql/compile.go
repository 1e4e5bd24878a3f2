package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
)

// Table is the table every entity instance lives in.
const Table = "objects"

// SQLCompiler compiles fetch requests to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY with the seq/id tie-breaker so
// results are deterministic and agree with queryir.Apply.
// CRITICAL: All values are parameterized (never interpolated). Attribute
// names are interpolated into JSON paths only after ir.ValidName accepts
// them.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a fetch request to a single SQL statement.
// Returns (sql, params, error) tuple. Limit is applied, BatchSize is not.
func (c *SQLCompiler) Compile(req queryir.FetchRequest) (string, []any, error) {
	sql, params, err := c.compileSelect(req)
	if err != nil {
		return "", nil, err
	}
	if req.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, req.Limit)
	}
	return sql, params, nil
}

// CompileBatch compiles the page of req starting at offset, at most size
// rows long. The request's own Limit still caps the total: ok is false
// when offset is already past it.
func (c *SQLCompiler) CompileBatch(req queryir.FetchRequest, offset, size int) (sql string, params []any, ok bool, err error) {
	if size <= 0 {
		return "", nil, false, fmt.Errorf("batch size must be positive, got %d", size)
	}
	if req.Limit > 0 {
		if offset >= req.Limit {
			return "", nil, false, nil
		}
		size = min(size, req.Limit-offset)
	}

	sql, params, err = c.compileSelect(req)
	if err != nil {
		return "", nil, false, err
	}
	sql += " LIMIT ? OFFSET ?"
	params = append(params, size, offset)
	return sql, params, true, nil
}

func (c *SQLCompiler) compileSelect(req queryir.FetchRequest) (string, []any, error) {
	if !ir.ValidName(req.Entity) {
		return "", nil, fmt.Errorf("invalid entity name %q", req.Entity)
	}

	columns := "id, entity, seq, data"
	if !req.IncludesPropertyValues {
		columns = "id, entity, seq, NULL AS data"
	}

	where := []string{"entity = ?"}
	params := []any{req.Entity}

	if len(req.IDs) > 0 {
		placeholders := make([]string, len(req.IDs))
		for i, id := range req.IDs {
			placeholders[i] = "?"
			params = append(params, string(id))
		}
		where = append(where, "id IN ("+strings.Join(placeholders, ", ")+")")
	}

	if req.Predicate != nil {
		predSQL, predParams, err := c.compilePredicate(req.Predicate)
		if err != nil {
			return "", nil, fmt.Errorf("compile predicate: %w", err)
		}
		where = append(where, predSQL)
		params = append(params, predParams...)
	}

	orderBy, err := c.orderBy(req.Sort)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		columns,
		Table,
		strings.Join(where, " AND "),
		orderBy)

	return sql, params, nil
}

// orderBy returns the ORDER BY clause: the requested keys, then the
// stable tie-breaker.
func (c *SQLCompiler) orderBy(sort []queryir.SortDescriptor) (string, error) {
	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		expr, err := attributeExpr(s.Key)
		if err != nil {
			return "", fmt.Errorf("sort: %w", err)
		}
		dir := "ASC"
		if !s.Ascending {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, stableOrderKey())
	return strings.Join(parts, ", "), nil
}

// stableOrderKey breaks ties by insertion seq, then id.
// COLLATE BINARY ensures deterministic text ordering across SQLite versions.
func stableOrderKey() string {
	return "seq ASC, id COLLATE BINARY ASC"
}

// attributeExpr returns the SQL expression reading an attribute from the
// JSON data column.
func attributeExpr(field string) (string, error) {
	if !ir.ValidName(field) {
		return "", fmt.Errorf("invalid attribute name %q", field)
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), nil
}

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// Returns (sql, params, error).
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")
	case queryir.Not:
		return c.compileNot(pred)
	case *queryir.Not:
		return c.compileNot(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileCompare compiles a Compare predicate to "json_extract(...) op ?".
func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	expr, err := attributeExpr(cmp.Field)
	if err != nil {
		return "", nil, err
	}

	if cmp.Value == nil || cmp.Value.Type() == ir.TypeNull {
		switch cmp.Op {
		case queryir.OpEq:
			return expr + " IS NULL", nil, nil
		case queryir.OpNe:
			return expr + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("field %q: null only compares with = or !=", cmp.Field)
		}
	}

	op, ok := sqlOps[cmp.Op]
	if !ok {
		return "", nil, fmt.Errorf("field %q: unsupported operator %q", cmp.Field, cmp.Op)
	}

	param, err := valueToParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}

	return fmt.Sprintf("%s %s ?", expr, op), []any{param}, nil
}

var sqlOps = map[queryir.Op]string{
	queryir.OpEq: "=",
	queryir.OpNe: "<>",
	queryir.OpLt: "<",
	queryir.OpLe: "<=",
	queryir.OpGt: ">",
	queryir.OpGe: ">=",
}

// compileJunction joins sub-predicates with AND or OR. An empty junction
// compiles to its identity element.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	sqlParts := make([]string, 0, len(preds))
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(sqlParts, sep) + ")", allParams, nil
}

func (c *SQLCompiler) compileNot(not queryir.Not) (string, []any, error) {
	if not.Predicate == nil {
		return "", nil, fmt.Errorf("not: missing predicate")
	}
	sql, params, err := c.compilePredicate(not.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}

// valueToParam converts an ir.Value to a Go native type for SQL parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		// json_extract yields 1/0 for JSON booleans.
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.Time:
		return int64(val), nil
	case ir.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported Value type for SQL parameter: %T", v)
	}
}
