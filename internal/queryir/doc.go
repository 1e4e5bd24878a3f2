// Package queryir provides the fetch request representation shared by the
// stack and the storage backends.
//
// A FetchRequest names an entity, an optional predicate, sort descriptors,
// a limit and a batch size hint. Backends translate it (querysql compiles it
// to SQL) or evaluate it in memory with Apply. Both paths must agree, so the
// in-memory evaluator follows SQL semantics:
//
//   - Comparisons involving NULL are unknown, and unknown rows never match
//   - Not(unknown) is unknown (three-valued logic)
//   - NULL sorts first ascending and last descending
//   - Ties are broken by insertion seq, then by id, in both directions
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// Compare, And, Or and Not implement it, which keeps the type switches in
// the SQL compiler and the evaluator exhaustive:
//
//	switch p := pred.(type) {
//	case Compare:
//	case And:
//	case Or:
//	case Not:
//	}
package queryir
