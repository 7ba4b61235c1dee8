package memengine

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/native"
)

// memCond is one compiled condition node: a predicate over decoded fields
// plus the diagnostic text Describe reports.
type memCond struct {
	id       native.ConditionID
	desc     string
	pred     func(f Fields) bool
	consumed bool // true once a combinator absorbed this node
	alias    string
}

type builderState struct {
	entity core.EntityID
	conds  []*memCond // creation order
	byID   map[native.ConditionID]*memCond
}

// NewBuilder implements native.Backend.
func (e *Engine) NewBuilder(entity core.EntityID) native.BuilderID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.schemas[entity]; !ok {
		e.setErr("unknown entity %d", entity)
		return 0
	}
	e.nextBuilder++
	id := e.nextBuilder
	e.builders[id] = &builderState{
		entity: entity,
		byID:   make(map[native.ConditionID]*memCond),
	}
	e.lastErr = ""
	return id
}

// CloseBuilder implements native.Backend.
func (e *Engine) CloseBuilder(b native.BuilderID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.builders, b)
	return nil
}

// leafProp validates a leaf condition's builder and property under e.mu and
// returns the property descriptor.
func (e *Engine) leafProp(b native.BuilderID, p core.PropertyID, want func(core.PropertyType) bool, op string) (*builderState, core.Property, bool) {
	bs, ok := e.builders[b]
	if !ok {
		e.setErr("unknown builder %d", b)
		return nil, core.Property{}, false
	}
	prop, ok := e.schemas[bs.entity][p]
	if !ok {
		e.setErr("entity %d has no property %d", bs.entity, p)
		return nil, core.Property{}, false
	}
	if want != nil && !want(prop.Type) {
		e.setErr("%s is not applicable to %s property %d", op, prop.Type, p)
		return nil, core.Property{}, false
	}
	return bs, prop, true
}

func (e *Engine) addCond(bs *builderState, desc string, pred func(f Fields) bool) native.ConditionID {
	e.nextCond++
	c := &memCond{id: e.nextCond, desc: desc, pred: pred}
	bs.conds = append(bs.conds, c)
	bs.byID[c.id] = c
	e.lastErr = ""
	return c.id
}

// Typed field access. A missing field is null and matches no comparison.

func intField(f Fields, p core.PropertyID) (int64, bool) {
	v, ok := f[p].(int64)
	return v, ok
}

func floatField(f Fields, p core.PropertyID) (float64, bool) {
	v, ok := f[p].(float64)
	return v, ok
}

func stringField(f Fields, p core.PropertyID) (string, bool) {
	v, ok := f[p].(string)
	return v, ok
}

func bytesField(f Fields, p core.PropertyID) ([]byte, bool) {
	v, ok := f[p].([]byte)
	return v, ok
}

// intLess compares with the property's signedness.
func intLess(a, b int64, unsigned bool) bool {
	if unsigned {
		return uint64(a) < uint64(b)
	}
	return a < b
}

// Null implements native.Backend.
func (e *Engine) Null(b native.BuilderID, p core.PropertyID) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, nil, "null-check")
	if !ok {
		return 0
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) is null", p), func(f Fields) bool {
		_, set := f[p]
		return !set
	})
}

// NotNull implements native.Backend.
func (e *Engine) NotNull(b native.BuilderID, p core.PropertyID) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, nil, "null-check")
	if !ok {
		return 0
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) is not null", p), func(f Fields) bool {
		_, set := f[p]
		return set
	})
}

func (e *Engine) intCompare(b native.BuilderID, p core.PropertyID, v int64, op string, cmp func(a, b int64, unsigned bool) bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, prop, ok := e.leafProp(b, p, core.PropertyType.IsInteger, "integer "+op)
	if !ok {
		return 0
	}
	unsigned := prop.Unsigned
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %d", p, op, v), func(f Fields) bool {
		a, set := intField(f, p)
		return set && cmp(a, v, unsigned)
	})
}

// IntEquals implements native.Backend.
func (e *Engine) IntEquals(b native.BuilderID, p core.PropertyID, v int64) native.ConditionID {
	return e.intCompare(b, p, v, "==", func(a, b int64, _ bool) bool { return a == b })
}

// IntNotEquals implements native.Backend.
func (e *Engine) IntNotEquals(b native.BuilderID, p core.PropertyID, v int64) native.ConditionID {
	return e.intCompare(b, p, v, "!=", func(a, b int64, _ bool) bool { return a != b })
}

// IntGreater implements native.Backend.
func (e *Engine) IntGreater(b native.BuilderID, p core.PropertyID, v int64, withEqual bool) native.ConditionID {
	if withEqual {
		return e.intCompare(b, p, v, ">=", func(a, b int64, u bool) bool { return !intLess(a, b, u) })
	}
	return e.intCompare(b, p, v, ">", func(a, b int64, u bool) bool { return intLess(b, a, u) })
}

// IntLess implements native.Backend.
func (e *Engine) IntLess(b native.BuilderID, p core.PropertyID, v int64, withEqual bool) native.ConditionID {
	if withEqual {
		return e.intCompare(b, p, v, "<=", func(a, b int64, u bool) bool { return !intLess(b, a, u) })
	}
	return e.intCompare(b, p, v, "<", intLess)
}

// IntBetween implements native.Backend.
func (e *Engine) IntBetween(b native.BuilderID, p core.PropertyID, lo, hi int64) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, prop, ok := e.leafProp(b, p, core.PropertyType.IsInteger, "integer between")
	if !ok {
		return 0
	}
	unsigned := prop.Unsigned
	return e.addCond(bs, fmt.Sprintf("prop(%d) between %d and %d", p, lo, hi), func(f Fields) bool {
		a, set := intField(f, p)
		return set && !intLess(a, lo, unsigned) && !intLess(hi, a, unsigned)
	})
}

func (e *Engine) floatCompare(b native.BuilderID, p core.PropertyID, v float64, op string, cmp func(a, b float64) bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, core.PropertyType.IsFloat, "float "+op)
	if !ok {
		return 0
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %g", p, op, v), func(f Fields) bool {
		a, set := floatField(f, p)
		return set && cmp(a, v)
	})
}

// FloatGreater implements native.Backend.
func (e *Engine) FloatGreater(b native.BuilderID, p core.PropertyID, v float64, withEqual bool) native.ConditionID {
	if withEqual {
		return e.floatCompare(b, p, v, ">=", func(a, b float64) bool { return a >= b })
	}
	return e.floatCompare(b, p, v, ">", func(a, b float64) bool { return a > b })
}

// FloatLess implements native.Backend.
func (e *Engine) FloatLess(b native.BuilderID, p core.PropertyID, v float64, withEqual bool) native.ConditionID {
	if withEqual {
		return e.floatCompare(b, p, v, "<=", func(a, b float64) bool { return a <= b })
	}
	return e.floatCompare(b, p, v, "<", func(a, b float64) bool { return a < b })
}

// FloatBetween implements native.Backend.
func (e *Engine) FloatBetween(b native.BuilderID, p core.PropertyID, lo, hi float64) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, core.PropertyType.IsFloat, "float between")
	if !ok {
		return 0
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) between %g and %g", p, lo, hi), func(f Fields) bool {
		a, set := floatField(f, p)
		return set && a >= lo && a <= hi
	})
}

func (e *Engine) stringCompare(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool, op string, cmp func(a, b string) bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, func(t core.PropertyType) bool { return t == core.TypeString }, "string "+op)
	if !ok {
		return 0
	}
	needle := v
	if !caseSensitive {
		needle = strings.ToLower(v)
	}
	mode := ""
	if !caseSensitive {
		mode = " (ci)"
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %q%s", p, op, v, mode), func(f Fields) bool {
		a, set := stringField(f, p)
		if !set {
			return false
		}
		if !caseSensitive {
			a = strings.ToLower(a)
		}
		return cmp(a, needle)
	})
}

// StringEquals implements native.Backend.
func (e *Engine) StringEquals(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	return e.stringCompare(b, p, v, caseSensitive, "==", func(a, b string) bool { return a == b })
}

// StringNotEquals implements native.Backend.
func (e *Engine) StringNotEquals(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	return e.stringCompare(b, p, v, caseSensitive, "!=", func(a, b string) bool { return a != b })
}

// StringContains implements native.Backend.
func (e *Engine) StringContains(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	return e.stringCompare(b, p, v, caseSensitive, "contains", strings.Contains)
}

// StringStartsWith implements native.Backend.
func (e *Engine) StringStartsWith(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	return e.stringCompare(b, p, v, caseSensitive, "starts-with", strings.HasPrefix)
}

// StringEndsWith implements native.Backend.
func (e *Engine) StringEndsWith(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	return e.stringCompare(b, p, v, caseSensitive, "ends-with", strings.HasSuffix)
}

// Int64In implements native.Backend.
func (e *Engine) Int64In(b native.BuilderID, p core.PropertyID, vs []int64) native.ConditionID {
	return e.int64Membership(b, p, vs, false)
}

// Int64NotIn implements native.Backend.
func (e *Engine) Int64NotIn(b native.BuilderID, p core.PropertyID, vs []int64) native.ConditionID {
	return e.int64Membership(b, p, vs, true)
}

func (e *Engine) int64Membership(b native.BuilderID, p core.PropertyID, vs []int64, negate bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, core.PropertyType.IsInteger, "membership")
	if !ok {
		return 0
	}
	set := roaring64.New()
	for _, v := range vs {
		set.Add(uint64(v))
	}
	op := "in"
	if negate {
		op = "not in"
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %d values", p, op, len(vs)), func(f Fields) bool {
		a, has := intField(f, p)
		if !has {
			return false
		}
		return set.Contains(uint64(a)) != negate
	})
}

// Int32In implements native.Backend.
func (e *Engine) Int32In(b native.BuilderID, p core.PropertyID, vs []int32) native.ConditionID {
	return e.int32Membership(b, p, vs, false)
}

// Int32NotIn implements native.Backend.
func (e *Engine) Int32NotIn(b native.BuilderID, p core.PropertyID, vs []int32) native.ConditionID {
	return e.int32Membership(b, p, vs, true)
}

func (e *Engine) int32Membership(b native.BuilderID, p core.PropertyID, vs []int32, negate bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, core.PropertyType.IsInteger, "membership")
	if !ok {
		return 0
	}
	set := roaring.New()
	for _, v := range vs {
		set.Add(uint32(v))
	}
	op := "in"
	if negate {
		op = "not in"
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %d values (32-bit)", p, op, len(vs)), func(f Fields) bool {
		a, has := intField(f, p)
		if !has {
			return false
		}
		return set.Contains(uint32(a)) != negate
	})
}

// StringIn implements native.Backend.
func (e *Engine) StringIn(b native.BuilderID, p core.PropertyID, vs []string, caseSensitive bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, func(t core.PropertyType) bool { return t == core.TypeString }, "membership")
	if !ok {
		return 0
	}
	set := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if !caseSensitive {
			v = strings.ToLower(v)
		}
		set[v] = struct{}{}
	}
	return e.addCond(bs, fmt.Sprintf("prop(%d) in %d strings", p, len(vs)), func(f Fields) bool {
		a, has := stringField(f, p)
		if !has {
			return false
		}
		if !caseSensitive {
			a = strings.ToLower(a)
		}
		_, found := set[a]
		return found
	})
}

func (e *Engine) bytesCompare(b native.BuilderID, p core.PropertyID, v []byte, op string, cmp func(c int) bool) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	bs, _, ok := e.leafProp(b, p, func(t core.PropertyType) bool { return t == core.TypeByteVector }, "bytes "+op)
	if !ok {
		return 0
	}
	ref := append([]byte(nil), v...)
	return e.addCond(bs, fmt.Sprintf("prop(%d) %s %d bytes", p, op, len(v)), func(f Fields) bool {
		a, set := bytesField(f, p)
		return set && cmp(bytes.Compare(a, ref))
	})
}

// BytesEquals implements native.Backend.
func (e *Engine) BytesEquals(b native.BuilderID, p core.PropertyID, v []byte) native.ConditionID {
	return e.bytesCompare(b, p, v, "==", func(c int) bool { return c == 0 })
}

// BytesGreater implements native.Backend.
func (e *Engine) BytesGreater(b native.BuilderID, p core.PropertyID, v []byte, withEqual bool) native.ConditionID {
	if withEqual {
		return e.bytesCompare(b, p, v, ">=", func(c int) bool { return c >= 0 })
	}
	return e.bytesCompare(b, p, v, ">", func(c int) bool { return c > 0 })
}

// BytesLess implements native.Backend.
func (e *Engine) BytesLess(b native.BuilderID, p core.PropertyID, v []byte, withEqual bool) native.ConditionID {
	if withEqual {
		return e.bytesCompare(b, p, v, "<=", func(c int) bool { return c <= 0 })
	}
	return e.bytesCompare(b, p, v, "<", func(c int) bool { return c < 0 })
}

// Combine implements native.Backend.
func (e *Engine) Combine(b native.BuilderID, kind native.GroupKind, children []native.ConditionID) native.ConditionID {
	e.mu.Lock()
	defer e.mu.Unlock()

	bs, ok := e.builders[b]
	if !ok {
		return e.setErr("unknown builder %d", b)
	}
	if len(children) < 2 {
		return e.setErr("combinator needs at least 2 children, got %d", len(children))
	}

	preds := make([]func(Fields) bool, 0, len(children))
	descs := make([]string, 0, len(children))
	for _, id := range children {
		c, ok := bs.byID[id]
		if !ok {
			return e.setErr("unknown condition %d", id)
		}
		if c.consumed {
			return e.setErr("condition %d already combined", id)
		}
		c.consumed = true
		preds = append(preds, c.pred)
		descs = append(descs, c.desc)
	}

	all := kind == native.GroupAll
	sep := " OR "
	if all {
		sep = " AND "
	}
	return e.addCond(bs, "("+strings.Join(descs, sep)+")", func(f Fields) bool {
		for _, p := range preds {
			if p(f) == all {
				continue
			}
			return !all
		}
		return all
	})
}

// SetAlias implements native.Backend.
func (e *Engine) SetAlias(b native.BuilderID, c native.ConditionID, alias string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bs, ok := e.builders[b]
	if !ok {
		return fmt.Errorf("memengine: unknown builder %d", b)
	}
	cond, ok := bs.byID[c]
	if !ok {
		return fmt.Errorf("memengine: unknown condition %d", c)
	}
	cond.alias = alias
	return nil
}
