package queryir

import "github.com/roach88/datastack/internal/ir"

// Predicate represents a filter condition over an entity's attributes.
//
// This is a sealed interface - only types in this package implement it.
// Both value and pointer forms are accepted wherever a Predicate is walked.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// validOps lists the supported operators.
var validOps = map[Op]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
}

// Compare represents a field-op-literal predicate.
//
// Semantics:
//
//	<field> <op> <value>
//
// Comparing against ir.Null is only allowed with OpEq and OpNe and tests
// for presence (IS NULL / IS NOT NULL).
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// And represents a conjunction. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Eq builds field = value.
func Eq(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpEq, Value: value} }

// Ne builds field != value.
func Ne(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpNe, Value: value} }

// Lt builds field < value.
func Lt(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpLt, Value: value} }

// Le builds field <= value.
func Le(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpLe, Value: value} }

// Gt builds field > value.
func Gt(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpGt, Value: value} }

// Ge builds field >= value.
func Ge(field string, value ir.Value) Compare { return Compare{Field: field, Op: OpGe, Value: value} }

// AllOf builds a conjunction.
func AllOf(preds ...Predicate) And { return And{Predicates: preds} }

// AnyOf builds a disjunction.
func AnyOf(preds ...Predicate) Or { return Or{Predicates: preds} }

// SortDescriptor orders results by one attribute.
type SortDescriptor struct {
	Key       string `json:"key" yaml:"key"`
	Ascending bool   `json:"ascending" yaml:"ascending"`
}

// Asc sorts by key ascending.
func Asc(key string) SortDescriptor { return SortDescriptor{Key: key, Ascending: true} }

// Desc sorts by key descending.
func Desc(key string) SortDescriptor { return SortDescriptor{Key: key, Ascending: false} }

// FetchRequest describes one fetch of entity instances.
type FetchRequest struct {
	Entity string

	// IDs restricts the result to these instances. Empty means all.
	IDs []ir.ObjectID

	Predicate Predicate // nil = no filter
	Sort      []SortDescriptor

	// Limit caps the number of results. Zero means unlimited.
	Limit int

	// BatchSize is a paging hint: backends read in chunks of this size.
	// Zero disables batching.
	BatchSize int

	// IncludesPropertyValues false returns records without values (IDs
	// only). Use NewFetchRequest to get the usual true default.
	IncludesPropertyValues bool
}

// NewFetchRequest returns a request for every instance of entity,
// including property values.
func NewFetchRequest(entity string) FetchRequest {
	return FetchRequest{Entity: entity, IncludesPropertyValues: true}
}
