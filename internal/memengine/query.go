package memengine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/native"
)

type queryState struct {
	entity  core.EntityID
	root    []*memCond // implicit conjunction, creation order
	aliases map[string]string
	desc    string

	offset, limit uint64

	// serve is the reusable buffer every visited row is materialized into;
	// handing it to a visitor models the protocol's borrowed-buffer rule.
	serve []byte
}

// BuildQuery implements native.Backend. All conditions of the builder not
// consumed by a combinator become the query's implicitly conjoined roots.
func (e *Engine) BuildQuery(b native.BuilderID) native.QueryID {
	e.mu.Lock()
	defer e.mu.Unlock()

	bs, ok := e.builders[b]
	if !ok {
		e.setErr("unknown builder %d", b)
		return 0
	}

	q := &queryState{
		entity:  bs.entity,
		aliases: make(map[string]string),
	}
	var descs []string
	for _, c := range bs.conds {
		if c.alias != "" {
			q.aliases[c.alias] = c.desc
		}
		if c.consumed {
			continue
		}
		q.root = append(q.root, c)
		descs = append(descs, c.desc)
	}
	if len(descs) == 0 {
		q.desc = "TRUE"
	} else {
		q.desc = strings.Join(descs, " AND ")
	}

	e.nextQuery++
	id := e.nextQuery
	e.queries[id] = q
	e.lastErr = ""
	return id
}

func (e *Engine) query(q native.QueryID) (*queryState, error) {
	qs, ok := e.queries[q]
	if !ok {
		return nil, fmt.Errorf("memengine: unknown query %d", q)
	}
	return qs, nil
}

// SetOffset implements native.Backend.
func (e *Engine) SetOffset(q native.QueryID, offset uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return err
	}
	qs.offset = offset
	return nil
}

// SetLimit implements native.Backend.
func (e *Engine) SetLimit(q native.QueryID, limit uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return err
	}
	qs.limit = limit
	return nil
}

func (qs *queryState) matches(f Fields) bool {
	for _, c := range qs.root {
		if !c.pred(f) {
			return false
		}
	}
	return true
}

// matchedStored returns (id, stored payload) pairs for all matches in
// object-id order with offset/limit applied. Caller holds e.mu; the stored
// slices stay valid after the lock is released because writers never mutate
// them in place.
func (e *Engine) matchedStored(qs *queryState) ([]core.ID, [][]byte, error) {
	t, ok := e.tables[qs.entity]
	if !ok {
		return nil, nil, fmt.Errorf("memengine: unknown entity %d", qs.entity)
	}

	var (
		ids     []core.ID
		stored  [][]byte
		skipped uint64
	)
	for _, id := range t.order {
		f, err := e.fields(t.rows[id])
		if err != nil {
			return nil, nil, err
		}
		if !qs.matches(f) {
			continue
		}
		if skipped < qs.offset {
			skipped++
			continue
		}
		ids = append(ids, id)
		stored = append(stored, t.rows[id])
		if qs.limit > 0 && uint64(len(ids)) == qs.limit {
			break
		}
	}
	return ids, stored, nil
}

// Count implements native.Backend.
func (e *Engine) Count(q native.QueryID) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return 0, err
	}
	ids, _, err := e.matchedStored(qs)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// Remove implements native.Backend.
func (e *Engine) Remove(q native.QueryID) (uint64, error) {
	e.txnLock.Lock()
	defer e.txnLock.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	qs, err := e.query(q)
	if err != nil {
		return 0, err
	}
	ids, _, err := e.matchedStored(qs)
	if err != nil {
		return 0, err
	}

	t := e.tables[qs.entity]
	for _, id := range ids {
		delete(t.rows, id)
		t.deleteOrdered(id)
		t.removed.Set(uint(id))
	}
	return uint64(len(ids)), nil
}

// Visit implements native.Backend. Each row is served through the query's
// reusable buffer: the slice handed to fn is overwritten by the next row,
// exactly like a borrowed native buffer.
func (e *Engine) Visit(q native.QueryID, fn native.VisitFunc) error {
	e.mu.Lock()
	qs, err := e.query(q)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	ids, stored, err := e.matchedStored(qs)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	for i, id := range ids {
		qs.serve, err = e.load(qs.serve[:0], stored[i])
		if err != nil {
			return err
		}
		if !fn(id, qs.serve) {
			break
		}
	}

	e.registerServed(qs.serve)
	return nil
}

// FindIDs implements native.Backend.
func (e *Engine) FindIDs(q native.QueryID) ([]core.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return nil, err
	}
	ids, _, err := e.matchedStored(qs)
	if err != nil {
		return nil, err
	}

	bm := roaring64.New()
	for _, id := range ids {
		bm.Add(id)
	}
	return bm.ToArray(), nil
}

// Describe implements native.Backend.
func (e *Engine) Describe(q native.QueryID) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return "", err
	}
	return qs.desc, nil
}

// DescribeParams implements native.Backend.
func (e *Engine) DescribeParams(q native.QueryID) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return "", err
	}
	if len(qs.aliases) == 0 {
		return "no aliases", nil
	}
	names := make([]string, 0, len(qs.aliases))
	for n := range qs.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s -> %s", n, qs.aliases[n])
	}
	return sb.String(), nil
}

// CloseQuery implements native.Backend. Idempotent.
func (e *Engine) CloseQuery(q native.QueryID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.queries, q)
	return nil
}

// OpenQueries returns the number of live query handles (test hook).
func (e *Engine) OpenQueries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queries)
}

// projection iterates matches in strict id order and extracts one property.
func (e *Engine) projection(q native.QueryID, visit func(f Fields) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, err := e.query(q)
	if err != nil {
		return err
	}
	_, stored, err := e.matchedStored(qs)
	if err != nil {
		return err
	}
	for _, s := range stored {
		f, err := e.fields(s)
		if err != nil {
			return err
		}
		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

// PropertyInt64s implements native.Backend.
func (e *Engine) PropertyInt64s(q native.QueryID, p core.PropertyID, distinct bool) ([]int64, error) {
	var out []int64
	seen := make(map[int64]struct{})
	err := e.projection(q, func(f Fields) error {
		v, ok := intField(f, p)
		if !ok {
			return nil
		}
		if distinct {
			if _, dup := seen[v]; dup {
				return nil
			}
			seen[v] = struct{}{}
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// PropertyFloat64s implements native.Backend.
func (e *Engine) PropertyFloat64s(q native.QueryID, p core.PropertyID, distinct bool) ([]float64, error) {
	var out []float64
	seen := make(map[float64]struct{})
	err := e.projection(q, func(f Fields) error {
		v, ok := floatField(f, p)
		if !ok {
			return nil
		}
		if distinct {
			if _, dup := seen[v]; dup {
				return nil
			}
			seen[v] = struct{}{}
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// PropertyStrings implements native.Backend.
func (e *Engine) PropertyStrings(q native.QueryID, p core.PropertyID, distinct, caseSensitive bool) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	err := e.projection(q, func(f Fields) error {
		v, ok := stringField(f, p)
		if !ok {
			return nil
		}
		if distinct {
			key := v
			if !caseSensitive {
				key = strings.ToLower(v)
			}
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// PropertyCount implements native.Backend.
func (e *Engine) PropertyCount(q native.QueryID, p core.PropertyID, distinct bool) (uint64, error) {
	var n uint64
	seen := make(map[any]struct{})
	err := e.projection(q, func(f Fields) error {
		v, ok := f[p]
		if !ok {
			return nil
		}
		if distinct {
			key := v
			if b, isBytes := v.([]byte); isBytes {
				key = string(b)
			}
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
		}
		n++
		return nil
	})
	return n, err
}
