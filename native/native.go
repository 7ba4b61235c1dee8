package native

import "github.com/oakdb/oak/core"

// BuilderID is the handle of one in-progress query build. 0 means failure.
type BuilderID int64

// ConditionID is the handle of one compiled condition node.
//
// 0 is the failure sentinel. NoCondition (-1) means the call succeeded but no
// actual node was produced: an empty group, or a root-level conjunction the
// engine already applies implicitly.
type ConditionID int32

// NoCondition is the "compiled, but no node produced" sentinel.
const NoCondition ConditionID = -1

// QueryID is the handle of one compiled query. 0 means failure.
type QueryID int64

// StreamID is the handle of one live asynchronous traversal. 0 means failure.
type StreamID int64

// GroupKind selects the combinator applied over a set of condition handles.
type GroupKind uint8

const (
	// GroupAll combines child conditions conjunctively.
	GroupAll GroupKind = iota
	// GroupAny combines child conditions disjunctively.
	GroupAny
)

func (k GroupKind) String() string {
	if k == GroupAny {
		return "any"
	}
	return "all"
}

// VisitFunc receives one matched object per call during a traversal.
// The row slice is borrowed: it is valid only until the callback returns.
// Returning false stops the traversal early.
type VisitFunc func(id core.ID, row []byte) bool

// Backend is the native query-construction protocol.
//
// One method exists per (condition kind x operand type) pair; the query
// builder bridge dispatches over its condition tree and issues exactly one
// call per leaf, plus at most one combinator call per group.
type Backend interface {
	// NewBuilder opens a query build for one entity type.
	NewBuilder(entity core.EntityID) BuilderID
	// BuildQuery finalizes the build into an executable query handle.
	BuildQuery(b BuilderID) QueryID
	// CloseBuilder releases a builder handle. Idempotent.
	CloseBuilder(b BuilderID) error

	// Null checks.
	Null(b BuilderID, p core.PropertyID) ConditionID
	NotNull(b BuilderID, p core.PropertyID) ConditionID

	// Integer comparisons (bools, bytes, shorts, ints, longs and dates all
	// travel as int64).
	IntEquals(b BuilderID, p core.PropertyID, v int64) ConditionID
	IntNotEquals(b BuilderID, p core.PropertyID, v int64) ConditionID
	IntGreater(b BuilderID, p core.PropertyID, v int64, withEqual bool) ConditionID
	IntLess(b BuilderID, p core.PropertyID, v int64, withEqual bool) ConditionID
	IntBetween(b BuilderID, p core.PropertyID, lo, hi int64) ConditionID

	// Floating-point comparisons. Equality is deliberately absent from the
	// protocol; the layers above reject it before reaching the backend.
	FloatGreater(b BuilderID, p core.PropertyID, v float64, withEqual bool) ConditionID
	FloatLess(b BuilderID, p core.PropertyID, v float64, withEqual bool) ConditionID
	FloatBetween(b BuilderID, p core.PropertyID, lo, hi float64) ConditionID

	// String operations.
	StringEquals(b BuilderID, p core.PropertyID, v string, caseSensitive bool) ConditionID
	StringNotEquals(b BuilderID, p core.PropertyID, v string, caseSensitive bool) ConditionID
	StringContains(b BuilderID, p core.PropertyID, v string, caseSensitive bool) ConditionID
	StringStartsWith(b BuilderID, p core.PropertyID, v string, caseSensitive bool) ConditionID
	StringEndsWith(b BuilderID, p core.PropertyID, v string, caseSensitive bool) ConditionID

	// Membership, typed by operand width.
	Int64In(b BuilderID, p core.PropertyID, vs []int64) ConditionID
	Int64NotIn(b BuilderID, p core.PropertyID, vs []int64) ConditionID
	Int32In(b BuilderID, p core.PropertyID, vs []int32) ConditionID
	Int32NotIn(b BuilderID, p core.PropertyID, vs []int32) ConditionID
	StringIn(b BuilderID, p core.PropertyID, vs []string, caseSensitive bool) ConditionID

	// Byte-vector ordering and equality.
	BytesEquals(b BuilderID, p core.PropertyID, v []byte) ConditionID
	BytesGreater(b BuilderID, p core.PropertyID, v []byte, withEqual bool) ConditionID
	BytesLess(b BuilderID, p core.PropertyID, v []byte, withEqual bool) ConditionID

	// Combine issues one combinator call over already-compiled children.
	Combine(b BuilderID, kind GroupKind, children []ConditionID) ConditionID

	// SetAlias binds a parameter alias to the exact handle given.
	SetAlias(b BuilderID, c ConditionID, alias string) error

	// Query execution.
	SetOffset(q QueryID, offset uint64) error
	SetLimit(q QueryID, limit uint64) error
	Count(q QueryID) (uint64, error)
	Remove(q QueryID) (uint64, error)
	Visit(q QueryID, fn VisitFunc) error
	FindIDs(q QueryID) ([]core.ID, error)
	Describe(q QueryID) (string, error)
	DescribeParams(q QueryID) (string, error)
	CloseQuery(q QueryID) error

	// Single-property projection. Results are in strict object-ID order
	// regardless of any ordering the query itself requested.
	PropertyInt64s(q QueryID, p core.PropertyID, distinct bool) ([]int64, error)
	PropertyFloat64s(q QueryID, p core.PropertyID, distinct bool) ([]float64, error)
	PropertyStrings(q QueryID, p core.PropertyID, distinct, caseSensitive bool) ([]string, error)
	PropertyCount(q QueryID, p core.PropertyID, distinct bool) (uint64, error)

	// OpenStream starts an asynchronous traversal that pushes messages into
	// out: a []byte per matched row, a string to report a native failure,
	// and nil as the end-of-stream marker. The engine stops pushing once the
	// stream handle is closed.
	OpenStream(q QueryID, out chan<- any) StreamID
	// CloseStream cancels an asynchronous traversal. Idempotent.
	CloseStream(s StreamID) error

	// LastError returns the diagnostic for the most recent failed
	// handle-yielding call, or "" if the last call succeeded.
	LastError() string
}
