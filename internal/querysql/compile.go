// Package querysql compiles queryir queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/stimline/internal/queryir"
)

// Compiler turns queries into SQL text and bound parameters.
type Compiler struct {
	Schema queryir.Schema
}

// Compile validates q and returns its SQL and parameters.
//
// Every query ends with "id COLLATE BINARY ASC" so rows that tie on the
// requested sort keys still come back in a fixed order. Values are never
// interpolated.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	res := queryir.Validate(q, c.Schema)
	if !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	}

	where, params, err := c.compilePredicate(sel.Filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s ORDER BY ",
		strings.Join(sel.Columns, ", "), sel.From, where)
	for _, col := range sel.OrderBy {
		if col == "id" {
			continue
		}
		fmt.Fprintf(&b, "%s ASC, ", col)
	}
	b.WriteString(stableOrderKey)
	return b.String(), params, nil
}

const stableOrderKey = "id COLLATE BINARY ASC"

func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return pred.Field + " = ?", []any{param(pred.Value)}, nil
	case queryir.Compare:
		return fmt.Sprintf("%s %s ?", pred.Field, pred.Op), []any{param(pred.Value)}, nil
	case queryir.IsNull:
		return pred.Field + " IS NULL", nil, nil
	case queryir.NotNull:
		return pred.Field + " IS NOT NULL", nil, nil
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := c.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		if _, nested := sub.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// param maps a value to what database/sql binds. SQLite stores booleans
// as integers.
func param(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}
