package queryir

import "fmt"

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks q against schema. It reports every problem rather
// than stopping at the first one.
func Validate(q Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, problems: []string{}}
	v.validateQuery(q)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	schema   Schema
	table    string
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addProblem("unsupported query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if _, ok := v.schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.table = sel.From

	if len(sel.Columns) == 0 {
		v.addProblem("no columns selected")
	}
	for _, c := range sel.Columns {
		v.checkField(c)
	}
	for _, c := range sel.OrderBy {
		v.checkField(c)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) checkField(field string) {
	if !v.schema.Has(v.table, field) {
		v.addProblem("unknown column %q in %s", field, v.table)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Value)
	case Compare:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Value)
		switch pred.Op {
		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			v.addProblem("unknown operator %q on %s", pred.Op, pred.Field)
		}
	case IsNull:
		v.checkField(pred.Field)
	case NotNull:
		v.checkField(pred.Field)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unsupported predicate type %T", p)
	}
}

// checkValue rejects NULL comparisons and floats, whose equality is not
// stable across backends.
func (v *validator) checkValue(field string, value any) {
	switch value.(type) {
	case string, int, int64, bool:
	case nil:
		v.addProblem("%s compared to NULL; use IsNull", field)
	default:
		v.addProblem("%s: unsupported value type %T", field, value)
	}
}
