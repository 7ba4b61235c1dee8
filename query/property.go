package query

import (
	"context"

	"github.com/oakdb/oak/core"
)

// PropertyQuery projects a query onto a single property.
//
// Projections always return values in strict object-ID order; any custom
// ordering the owning query requested is not honored here. String
// projections inherit the store-wide case-sensitivity default unless
// overridden with Case.
type PropertyQuery struct {
	q        queryRef
	prop     core.Property
	distinct bool

	caseSet       bool
	caseSensitive bool
}

// queryRef is the slice of Query a projection needs; keeping it as an
// interface lets PropertyQuery stay non-generic.
type queryRef interface {
	alive() error
	propInt64s(p core.PropertyID, distinct bool) ([]int64, error)
	propFloat64s(p core.PropertyID, distinct bool) ([]float64, error)
	propStrings(p core.PropertyID, distinct, caseSensitive bool) ([]string, error)
	propCount(p core.PropertyID, distinct bool) (uint64, error)
	storeCase() bool
}

// Property returns a projection of q onto p.
func (q *Query[T]) Property(p core.Property) *PropertyQuery {
	return &PropertyQuery{q: (*queryRefImpl[T])(q), prop: p}
}

// Distinct makes the projection drop duplicate values.
func (pq *PropertyQuery) Distinct(distinct bool) *PropertyQuery {
	pq.distinct = distinct
	return pq
}

// Case overrides the case-sensitivity default for string projections, which
// affects both Distinct folding and value comparison.
func (pq *PropertyQuery) Case(sensitive bool) *PropertyQuery {
	pq.caseSet = true
	pq.caseSensitive = sensitive
	return pq
}

func (pq *PropertyQuery) effectiveCase() bool {
	if pq.caseSet {
		return pq.caseSensitive
	}
	return pq.q.storeCase()
}

// FindInt64s returns the projected integer values of all matches.
func (pq *PropertyQuery) FindInt64s(ctx context.Context) ([]int64, error) {
	if err := pq.q.alive(); err != nil {
		return nil, err
	}
	return pq.q.propInt64s(pq.prop.ID, pq.distinct)
}

// FindFloat64s returns the projected floating-point values of all matches.
func (pq *PropertyQuery) FindFloat64s(ctx context.Context) ([]float64, error) {
	if err := pq.q.alive(); err != nil {
		return nil, err
	}
	return pq.q.propFloat64s(pq.prop.ID, pq.distinct)
}

// FindStrings returns the projected string values of all matches.
func (pq *PropertyQuery) FindStrings(ctx context.Context) ([]string, error) {
	if err := pq.q.alive(); err != nil {
		return nil, err
	}
	return pq.q.propStrings(pq.prop.ID, pq.distinct, pq.effectiveCase())
}

// Count returns the number of projected values (after Distinct folding, if
// enabled).
func (pq *PropertyQuery) Count(ctx context.Context) (uint64, error) {
	if err := pq.q.alive(); err != nil {
		return 0, err
	}
	return pq.q.propCount(pq.prop.ID, pq.distinct)
}

// queryRefImpl adapts Query[T] to queryRef.
type queryRefImpl[T any] Query[T]

func (q *queryRefImpl[T]) alive() error { return (*Query[T])(q).alive() }
func (q *queryRefImpl[T]) storeCase() bool {
	return (*Query[T])(q).store().CaseSensitive()
}

func (q *queryRefImpl[T]) propInt64s(p core.PropertyID, distinct bool) ([]int64, error) {
	return (*Query[T])(q).backend().PropertyInt64s(q.id, p, distinct)
}

func (q *queryRefImpl[T]) propFloat64s(p core.PropertyID, distinct bool) ([]float64, error) {
	return (*Query[T])(q).backend().PropertyFloat64s(q.id, p, distinct)
}

func (q *queryRefImpl[T]) propStrings(p core.PropertyID, distinct, caseSensitive bool) ([]string, error) {
	return (*Query[T])(q).backend().PropertyStrings(q.id, p, distinct, caseSensitive)
}

func (q *queryRefImpl[T]) propCount(p core.PropertyID, distinct bool) (uint64, error) {
	return (*Query[T])(q).backend().PropertyCount(q.id, p, distinct)
}
