// Package queryir is a small query representation for filtering stored
// records.
//
// A query is a Select over one table with explicit columns and an
// optional predicate tree. Values are restricted to strings, integers
// and booleans, and fields are checked against a Schema before any
// backend sees them, so a backend may splice field names into its query
// text while every value stays a bound parameter.
//
//	sel := queryir.Select{
//		From:    "runs",
//		Columns: []string{"id", "participant"},
//		Filter: queryir.And{Predicates: []queryir.Predicate{
//			queryir.Equals{Field: "participant", Value: "p-001"},
//			queryir.NotNull{Field: "finished_at"},
//		}},
//		OrderBy: []string{"started_at"},
//	}
//
// Backends live in sibling packages; see querysql.
package queryir
