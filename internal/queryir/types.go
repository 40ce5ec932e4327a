package queryir

// Query is a sealed interface for query nodes.
type Query interface {
	queryNode()
}

// Predicate is a sealed interface for filter conditions.
type Predicate interface {
	predicateNode()
}

// Schema maps table names to the columns a query may reference.
type Schema map[string][]string

// Has reports whether table declares column.
func (s Schema) Has(table, column string) bool {
	for _, c := range s[table] {
		if c == column {
			return true
		}
	}
	return false
}

// Select reads Columns from one table.
//
// OrderBy lists sort columns, ascending. Backends always append the
// table's id as the final key so results have a total order.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil matches every row
	OrderBy []string
}

func (Select) queryNode() {}

// Equals matches rows whose field equals Value.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Compare matches rows where Field Op Value holds.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// IsNull matches rows whose field is NULL.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// NotNull matches rows whose field is not NULL.
type NotNull struct {
	Field string
}

func (NotNull) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches
// every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
