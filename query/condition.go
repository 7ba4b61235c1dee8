// Package query implements the condition algebra, the compilation bridge
// into the native query-construction protocol, and the execution and
// streaming surface of compiled queries.
package query

import (
	"fmt"

	"github.com/oakdb/oak/core"
)

type condKind uint8

const (
	kindNull condKind = iota
	kindNotNull
	kindIntCompare
	kindIntBetween
	kindFloatCompare
	kindFloatBetween
	kindString
	kindStringIn
	kindInt64In
	kindInt64NotIn
	kindInt32In
	kindInt32NotIn
	kindBytesCompare
	kindGroup
	kindError
)

type compareOp uint8

const (
	opEq compareOp = iota
	opNotEq
	opGreater
	opGreaterOrEq
	opLess
	opLessOrEq
	opContains
	opStartsWith
	opEndsWith
)

// GroupKind selects how a group combines its children.
type GroupKind uint8

const (
	// GroupAll is conjunction.
	GroupAll GroupKind = iota
	// GroupAny is disjunction.
	GroupAny
)

// Condition is one node of a filter tree: a leaf predicate over a property,
// or an All/Any group. Conditions are built once, compiled once, and are not
// safe for concurrent use.
type Condition struct {
	kind  condKind
	prop  core.Property
	op    compareOp
	alias string
	err   error

	i1, i2 int64
	f1, f2 float64
	str    string
	bytes  []byte
	i64s   []int64
	i32s   []int32
	strs   []string

	// string case-sensitivity override; falls back to the store default
	// when unset.
	caseSet       bool
	caseSensitive bool

	group    GroupKind
	children []*Condition
}

// Err returns the construction-time error carried by this node, if any.
// An invalid condition fails the whole build before any native call.
func (c *Condition) Err() error { return c.err }

// firstErr finds the first construction-time error anywhere in the tree.
func (c *Condition) firstErr() error {
	if c.err != nil {
		return c.err
	}
	for _, child := range c.children {
		if err := child.firstErr(); err != nil {
			return err
		}
	}
	return nil
}

// Alias assigns a parameter alias to this node. The alias is bound to the
// node's compiled handle. Assignment happens once; later calls are ignored.
func (c *Condition) Alias(name string) *Condition {
	if c.alias == "" {
		c.alias = name
	}
	return c
}

// And combines c with d conjunctively. If c is already an All group the
// result extends its child list instead of nesting.
func (c *Condition) And(d *Condition) *Condition {
	return combine(GroupAll, c, d)
}

// Or combines c with d disjunctively, flattening like And.
func (c *Condition) Or(d *Condition) *Condition {
	return combine(GroupAny, c, d)
}

func combine(kind GroupKind, c, d *Condition) *Condition {
	if c.kind == kindGroup && c.group == kind && c.alias == "" {
		c.children = append(c.children, d)
		return c
	}
	return &Condition{kind: kindGroup, group: kind, children: []*Condition{c, d}}
}

// All groups conditions conjunctively.
func All(conds ...*Condition) *Condition {
	return &Condition{kind: kindGroup, group: GroupAll, children: conds}
}

// Any groups conditions disjunctively.
func Any(conds ...*Condition) *Condition {
	return &Condition{kind: kindGroup, group: GroupAny, children: conds}
}

func errCondition(p core.Property, format string, args ...any) *Condition {
	return &Condition{
		kind: kindError,
		prop: p,
		err:  fmt.Errorf(format, args...),
	}
}

// StringOption adjusts one string condition.
type StringOption func(*Condition)

// Case overrides the store-wide case-sensitivity default for one condition.
func Case(sensitive bool) StringOption {
	return func(c *Condition) {
		c.caseSet = true
		c.caseSensitive = sensitive
	}
}
