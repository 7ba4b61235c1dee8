package query

import (
	"github.com/oakdb/oak"
	"github.com/oakdb/oak/core"
)

// Generated bindings expose one typed property value per schema property.
// The wrapper type decides which condition constructors exist; pairings the
// native protocol cannot express are rejected here, before any native call.

// PropertyInt64 is an integer-typed property (bool, byte, short, int, long
// and date all travel as int64).
type PropertyInt64 struct {
	Prop core.Property
}

// IsNil matches objects where the property is unset.
func (p PropertyInt64) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyInt64) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals matches property == v.
func (p PropertyInt64) Equals(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opEq, i1: v}
}

// NotEquals matches property != v.
func (p PropertyInt64) NotEquals(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opNotEq, i1: v}
}

// GreaterThan matches property > v.
func (p PropertyInt64) GreaterThan(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opGreater, i1: v}
}

// GreaterOrEqual matches property >= v.
func (p PropertyInt64) GreaterOrEqual(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opGreaterOrEq, i1: v}
}

// LessThan matches property < v.
func (p PropertyInt64) LessThan(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opLess, i1: v}
}

// LessOrEqual matches property <= v.
func (p PropertyInt64) LessOrEqual(v int64) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opLessOrEq, i1: v}
}

// Between matches lo <= property <= hi (inclusive on both ends).
func (p PropertyInt64) Between(lo, hi int64) *Condition {
	return &Condition{kind: kindIntBetween, prop: p.Prop, i1: lo, i2: hi}
}

// OneOf matches objects whose property equals any of vs.
func (p PropertyInt64) OneOf(vs ...int64) *Condition {
	return &Condition{kind: kindInt64In, prop: p.Prop, i64s: vs}
}

// NotOneOf matches objects whose property equals none of vs.
func (p PropertyInt64) NotOneOf(vs ...int64) *Condition {
	return &Condition{kind: kindInt64NotIn, prop: p.Prop, i64s: vs}
}

// PropertyInt32 is a 32-bit integer property; membership conditions use the
// narrow operand array of the native protocol.
type PropertyInt32 struct {
	Prop core.Property
}

// IsNil matches objects where the property is unset.
func (p PropertyInt32) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyInt32) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals matches property == v.
func (p PropertyInt32) Equals(v int32) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opEq, i1: int64(v)}
}

// NotEquals matches property != v.
func (p PropertyInt32) NotEquals(v int32) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opNotEq, i1: int64(v)}
}

// GreaterThan matches property > v.
func (p PropertyInt32) GreaterThan(v int32) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opGreater, i1: int64(v)}
}

// LessThan matches property < v.
func (p PropertyInt32) LessThan(v int32) *Condition {
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opLess, i1: int64(v)}
}

// Between matches lo <= property <= hi.
func (p PropertyInt32) Between(lo, hi int32) *Condition {
	return &Condition{kind: kindIntBetween, prop: p.Prop, i1: int64(lo), i2: int64(hi)}
}

// OneOf matches objects whose property equals any of vs.
func (p PropertyInt32) OneOf(vs ...int32) *Condition {
	return &Condition{kind: kindInt32In, prop: p.Prop, i32s: vs}
}

// NotOneOf matches objects whose property equals none of vs.
func (p PropertyInt32) NotOneOf(vs ...int32) *Condition {
	return &Condition{kind: kindInt32NotIn, prop: p.Prop, i32s: vs}
}

// PropertyBool is a boolean property. Equality is modeled as 0/1 integer
// equality on the wire.
type PropertyBool struct {
	Prop core.Property
}

// IsNil matches objects where the property is unset.
func (p PropertyBool) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyBool) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals matches property == v.
func (p PropertyBool) Equals(v bool) *Condition {
	var i int64
	if v {
		i = 1
	}
	return &Condition{kind: kindIntCompare, prop: p.Prop, op: opEq, i1: i}
}

// PropertyFloat64 is a floating-point property.
//
// Exact equality over IEEE floats is not a meaningful query; Equals,
// NotEquals and OneOf therefore fail at construction, before any native
// call. Use Between with an epsilon instead.
type PropertyFloat64 struct {
	Prop core.Property
}

// IsNil matches objects where the property is unset.
func (p PropertyFloat64) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyFloat64) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals always fails: see the type comment.
func (p PropertyFloat64) Equals(float64) *Condition {
	return errCondition(p.Prop, "%w: equality on floating-point property %d; use Between",
		oak.ErrUnsupported, p.Prop.ID)
}

// NotEquals always fails: see the type comment.
func (p PropertyFloat64) NotEquals(float64) *Condition {
	return errCondition(p.Prop, "%w: inequality on floating-point property %d; use Between",
		oak.ErrUnsupported, p.Prop.ID)
}

// OneOf always fails: see the type comment.
func (p PropertyFloat64) OneOf(...float64) *Condition {
	return errCondition(p.Prop, "%w: membership on floating-point property %d",
		oak.ErrUnsupported, p.Prop.ID)
}

// GreaterThan matches property > v.
func (p PropertyFloat64) GreaterThan(v float64) *Condition {
	return &Condition{kind: kindFloatCompare, prop: p.Prop, op: opGreater, f1: v}
}

// GreaterOrEqual matches property >= v.
func (p PropertyFloat64) GreaterOrEqual(v float64) *Condition {
	return &Condition{kind: kindFloatCompare, prop: p.Prop, op: opGreaterOrEq, f1: v}
}

// LessThan matches property < v.
func (p PropertyFloat64) LessThan(v float64) *Condition {
	return &Condition{kind: kindFloatCompare, prop: p.Prop, op: opLess, f1: v}
}

// LessOrEqual matches property <= v.
func (p PropertyFloat64) LessOrEqual(v float64) *Condition {
	return &Condition{kind: kindFloatCompare, prop: p.Prop, op: opLessOrEq, f1: v}
}

// Between matches lo <= property <= hi.
func (p PropertyFloat64) Between(lo, hi float64) *Condition {
	return &Condition{kind: kindFloatBetween, prop: p.Prop, f1: lo, f2: hi}
}

// PropertyString is a string property. Each condition takes an optional
// Case override; without one, the store-wide default applies.
type PropertyString struct {
	Prop core.Property
}

func stringCondition(p core.Property, op compareOp, v string, opts []StringOption) *Condition {
	c := &Condition{kind: kindString, prop: p, op: op, str: v}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsNil matches objects where the property is unset.
func (p PropertyString) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyString) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals matches property == v.
func (p PropertyString) Equals(v string, opts ...StringOption) *Condition {
	return stringCondition(p.Prop, opEq, v, opts)
}

// NotEquals matches property != v.
func (p PropertyString) NotEquals(v string, opts ...StringOption) *Condition {
	return stringCondition(p.Prop, opNotEq, v, opts)
}

// Contains matches properties containing v.
func (p PropertyString) Contains(v string, opts ...StringOption) *Condition {
	return stringCondition(p.Prop, opContains, v, opts)
}

// StartsWith matches properties beginning with v.
func (p PropertyString) StartsWith(v string, opts ...StringOption) *Condition {
	return stringCondition(p.Prop, opStartsWith, v, opts)
}

// EndsWith matches properties ending with v.
func (p PropertyString) EndsWith(v string, opts ...StringOption) *Condition {
	return stringCondition(p.Prop, opEndsWith, v, opts)
}

// OneOf matches objects whose property equals any of vs.
func (p PropertyString) OneOf(vs []string, opts ...StringOption) *Condition {
	c := &Condition{kind: kindStringIn, prop: p.Prop, strs: vs}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NotOneOf always fails: the native protocol has no negated membership for
// string operands.
func (p PropertyString) NotOneOf(...string) *Condition {
	return errCondition(p.Prop, "%w: negated membership on string property %d",
		oak.ErrUnsupported, p.Prop.ID)
}

// PropertyBytes is a byte-vector property supporting ordering and equality
// under lexicographic comparison.
type PropertyBytes struct {
	Prop core.Property
}

// IsNil matches objects where the property is unset.
func (p PropertyBytes) IsNil() *Condition {
	return &Condition{kind: kindNull, prop: p.Prop}
}

// IsNotNil matches objects where the property is set.
func (p PropertyBytes) IsNotNil() *Condition {
	return &Condition{kind: kindNotNull, prop: p.Prop}
}

// Equals matches property == v.
func (p PropertyBytes) Equals(v []byte) *Condition {
	return &Condition{kind: kindBytesCompare, prop: p.Prop, op: opEq, bytes: v}
}

// GreaterThan matches property > v.
func (p PropertyBytes) GreaterThan(v []byte) *Condition {
	return &Condition{kind: kindBytesCompare, prop: p.Prop, op: opGreater, bytes: v}
}

// GreaterOrEqual matches property >= v.
func (p PropertyBytes) GreaterOrEqual(v []byte) *Condition {
	return &Condition{kind: kindBytesCompare, prop: p.Prop, op: opGreaterOrEq, bytes: v}
}

// LessThan matches property < v.
func (p PropertyBytes) LessThan(v []byte) *Condition {
	return &Condition{kind: kindBytesCompare, prop: p.Prop, op: opLess, bytes: v}
}

// LessOrEqual matches property <= v.
func (p PropertyBytes) LessOrEqual(v []byte) *Condition {
	return &Condition{kind: kindBytesCompare, prop: p.Prop, op: opLessOrEq, bytes: v}
}
