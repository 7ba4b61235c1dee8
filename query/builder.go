package query

import (
	"fmt"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/native"
)

// builder compiles one condition tree against a native query builder handle.
// Compilation is depth first and bottom up; any failed call aborts the whole
// build with the engine's side-channel diagnostic, and no partially built
// query ever escapes.
type builder struct {
	be            native.Backend
	handle        native.BuilderID
	caseSensitive bool // store-wide default for string conditions
}

func nativeErr(be native.Backend, op string) error {
	return &oak.NativeError{Op: op, Diagnostic: be.LastError()}
}

// compile returns the condition's native handle. native.NoCondition means
// the node compiled but produced no actual native node (empty group, or an
// implicit root conjunction); it is not an error.
func (b *builder) compile(c *Condition, root bool) (native.ConditionID, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.kind == kindGroup {
		return b.compileGroup(c, root)
	}

	id, op := b.compileLeaf(c)
	if op == "" {
		return 0, fmt.Errorf("%w: condition kind %d with operator %d", oak.ErrUnsupported, c.kind, c.op)
	}
	if id == 0 {
		return 0, nativeErr(b.be, op)
	}
	return id, b.bindAlias(id, c.alias)
}

// bindAlias binds an alias to the exact handle the node produced, after the
// handle exists. Nodes that produced no handle keep no alias.
func (b *builder) bindAlias(id native.ConditionID, alias string) error {
	if alias == "" || id == native.NoCondition {
		return nil
	}
	return b.be.SetAlias(b.handle, id, alias)
}

func (b *builder) compileGroup(c *Condition, root bool) (native.ConditionID, error) {
	switch len(c.children) {
	case 0:
		// An empty group matches everything and needs no native node.
		return native.NoCondition, nil
	case 1:
		// A single-child group is the child: the child's handle carries the
		// group's identity, so a group alias binds to it.
		id, err := b.compile(c.children[0], root)
		if err != nil {
			return 0, err
		}
		return id, b.bindAlias(id, c.alias)
	}

	// Children compile first, in order. A failed child aborts immediately.
	handles := make([]native.ConditionID, 0, len(c.children))
	for _, child := range c.children {
		id, err := b.compile(child, false)
		if err != nil {
			return 0, err
		}
		if id == native.NoCondition {
			// The child produced no node (empty subgroup); nothing to
			// combine for it.
			continue
		}
		handles = append(handles, id)
	}

	switch len(handles) {
	case 0:
		return native.NoCondition, nil
	case 1:
		id := handles[0]
		return id, b.bindAlias(id, c.alias)
	}

	// The engine conjoins independent top-level conditions implicitly, so a
	// root All group never issues a combinator call.
	if root && c.group == GroupAll {
		return native.NoCondition, nil
	}

	kind := native.GroupAll
	if c.group == GroupAny {
		kind = native.GroupAny
	}
	id := b.be.Combine(b.handle, kind, handles)
	if id == 0 {
		return 0, nativeErr(b.be, fmt.Sprintf("Combine(%s)", kind))
	}
	return id, b.bindAlias(id, c.alias)
}

func (b *builder) stringCase(c *Condition) bool {
	if c.caseSet {
		return c.caseSensitive
	}
	return b.caseSensitive
}

// compileLeaf issues the one native call for a leaf condition and returns
// the handle plus the protocol call name for diagnostics.
func (b *builder) compileLeaf(c *Condition) (native.ConditionID, string) {
	be, h, p := b.be, b.handle, c.prop.ID

	switch c.kind {
	case kindNull:
		return be.Null(h, p), "Null"
	case kindNotNull:
		return be.NotNull(h, p), "NotNull"

	case kindIntCompare:
		switch c.op {
		case opEq:
			return be.IntEquals(h, p, c.i1), "IntEquals"
		case opNotEq:
			return be.IntNotEquals(h, p, c.i1), "IntNotEquals"
		case opGreater:
			return be.IntGreater(h, p, c.i1, false), "IntGreater"
		case opGreaterOrEq:
			return be.IntGreater(h, p, c.i1, true), "IntGreater"
		case opLess:
			return be.IntLess(h, p, c.i1, false), "IntLess"
		case opLessOrEq:
			return be.IntLess(h, p, c.i1, true), "IntLess"
		}
	case kindIntBetween:
		return be.IntBetween(h, p, c.i1, c.i2), "IntBetween"

	case kindFloatCompare:
		switch c.op {
		case opGreater:
			return be.FloatGreater(h, p, c.f1, false), "FloatGreater"
		case opGreaterOrEq:
			return be.FloatGreater(h, p, c.f1, true), "FloatGreater"
		case opLess:
			return be.FloatLess(h, p, c.f1, false), "FloatLess"
		case opLessOrEq:
			return be.FloatLess(h, p, c.f1, true), "FloatLess"
		}
	case kindFloatBetween:
		return be.FloatBetween(h, p, c.f1, c.f2), "FloatBetween"

	case kindString:
		cs := b.stringCase(c)
		switch c.op {
		case opEq:
			return be.StringEquals(h, p, c.str, cs), "StringEquals"
		case opNotEq:
			return be.StringNotEquals(h, p, c.str, cs), "StringNotEquals"
		case opContains:
			return be.StringContains(h, p, c.str, cs), "StringContains"
		case opStartsWith:
			return be.StringStartsWith(h, p, c.str, cs), "StringStartsWith"
		case opEndsWith:
			return be.StringEndsWith(h, p, c.str, cs), "StringEndsWith"
		}
	case kindStringIn:
		return be.StringIn(h, p, c.strs, b.stringCase(c)), "StringIn"

	case kindInt64In:
		return be.Int64In(h, p, c.i64s), "Int64In"
	case kindInt64NotIn:
		return be.Int64NotIn(h, p, c.i64s), "Int64NotIn"
	case kindInt32In:
		return be.Int32In(h, p, c.i32s), "Int32In"
	case kindInt32NotIn:
		return be.Int32NotIn(h, p, c.i32s), "Int32NotIn"

	case kindBytesCompare:
		switch c.op {
		case opEq:
			return be.BytesEquals(h, p, c.bytes), "BytesEquals"
		case opGreater:
			return be.BytesGreater(h, p, c.bytes, false), "BytesGreater"
		case opGreaterOrEq:
			return be.BytesGreater(h, p, c.bytes, true), "BytesGreater"
		case opLess:
			return be.BytesLess(h, p, c.bytes, false), "BytesLess"
		case opLessOrEq:
			return be.BytesLess(h, p, c.bytes, true), "BytesLess"
		}
	}
	return 0, ""
}
