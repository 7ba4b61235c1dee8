package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/native"
	"github.com/oakdb/oak/txn"
)

// fakeBackend records every protocol call the compiler issues. Methods not
// implemented here panic through the embedded nil interface, which is the
// point: a call the compiler should never make is a test failure.
type fakeBackend struct {
	native.Backend

	calls    []string
	nextCond native.ConditionID
	aliases  map[native.ConditionID]string
	combines [][]native.ConditionID

	failLeafCalls bool
	failCombine   bool
	lastErr       string

	buildersClosed int
	queriesClosed  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{aliases: make(map[native.ConditionID]string)}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) cond(name string) native.ConditionID {
	if f.failLeafCalls {
		f.lastErr = name + " failed"
		return 0
	}
	f.nextCond++
	f.lastErr = ""
	return f.nextCond
}

func (f *fakeBackend) NewBuilder(entity core.EntityID) native.BuilderID {
	f.record("NewBuilder(%d)", entity)
	return 1
}

func (f *fakeBackend) BuildQuery(b native.BuilderID) native.QueryID {
	f.record("BuildQuery")
	return 1
}

func (f *fakeBackend) CloseBuilder(b native.BuilderID) error {
	f.buildersClosed++
	return nil
}

func (f *fakeBackend) CloseQuery(q native.QueryID) error {
	f.queriesClosed++
	return nil
}

func (f *fakeBackend) LastError() string { return f.lastErr }

func (f *fakeBackend) IntEquals(b native.BuilderID, p core.PropertyID, v int64) native.ConditionID {
	f.record("IntEquals(%d,%d)", p, v)
	return f.cond("IntEquals")
}

func (f *fakeBackend) IntGreater(b native.BuilderID, p core.PropertyID, v int64, withEqual bool) native.ConditionID {
	f.record("IntGreater(%d,%d,%t)", p, v, withEqual)
	return f.cond("IntGreater")
}

func (f *fakeBackend) StringEquals(b native.BuilderID, p core.PropertyID, v string, caseSensitive bool) native.ConditionID {
	f.record("StringEquals(%d,%q,%t)", p, v, caseSensitive)
	return f.cond("StringEquals")
}

func (f *fakeBackend) FloatGreater(b native.BuilderID, p core.PropertyID, v float64, withEqual bool) native.ConditionID {
	f.record("FloatGreater(%d,%g,%t)", p, v, withEqual)
	return f.cond("FloatGreater")
}

func (f *fakeBackend) Combine(b native.BuilderID, kind native.GroupKind, children []native.ConditionID) native.ConditionID {
	f.record("Combine(%s,%d)", kind, len(children))
	if f.failCombine {
		f.lastErr = "Combine failed"
		return 0
	}
	f.combines = append(f.combines, append([]native.ConditionID(nil), children...))
	f.nextCond++
	return f.nextCond
}

func (f *fakeBackend) SetAlias(b native.BuilderID, c native.ConditionID, alias string) error {
	f.record("SetAlias(%d,%q)", c, alias)
	f.aliases[c] = alias
	return nil
}

type noopTxns struct{}

type noopTxn struct{}

func (noopTxn) ID() uint64 { return 1 }

func (noopTxns) View(ctx context.Context, fn func(txn.Txn) error) error {
	return fn(noopTxn{})
}

type nopEntity struct{}

func (nopEntity) Decode(data []byte) (struct{}, error) { return struct{}{}, nil }
func (nopEntity) Encode(b *buf.Builder, v struct{}) ([]byte, error) {
	return nil, nil
}

var (
	age   = PropertyInt64{Prop: core.Property{Entity: 1, ID: 4, Type: core.TypeLong}}
	name  = PropertyString{Prop: core.Property{Entity: 1, ID: 2, Type: core.TypeString}}
	score = PropertyFloat64{Prop: core.Property{Entity: 1, ID: 5, Type: core.TypeDouble}}
)

func fakeBox(t *testing.T, be *fakeBackend, opts ...oak.Option) *Box[struct{}] {
	t.Helper()
	store, err := oak.NewStore(be, noopTxns{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewBox[struct{}](store, 1, nopEntity{})
}

func TestBuildRootAllIsImplicit(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	q, err := box.Query(age.GreaterThan(21).And(name.Equals("Alice")))
	require.NoError(t, err)
	defer q.Close()

	// Two leaves, no combinator: the engine conjoins top-level conditions
	// implicitly.
	assert.Equal(t, []string{
		"NewBuilder(1)",
		"IntGreater(4,21,false)",
		`StringEquals(2,"Alice",true)`,
		"BuildQuery",
	}, be.calls)
	assert.Empty(t, be.combines)
	assert.Equal(t, 1, be.buildersClosed)
}

func TestBuildRootAnyCombinesOnce(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	q, err := box.Query(age.Equals(1).Or(age.Equals(2)).Or(age.Equals(3)))
	require.NoError(t, err)
	defer q.Close()

	require.Len(t, be.combines, 1)
	assert.Equal(t, []native.ConditionID{1, 2, 3}, be.combines[0])
}

func TestBuildNestedGroups(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	// (age > 21 OR score > 9) AND name == "Bob": the inner Any combines,
	// the outer root All does not.
	cond := Any(age.GreaterThan(21), score.GreaterThan(9)).And(name.Equals("Bob"))
	q, err := box.Query(cond)
	require.NoError(t, err)
	defer q.Close()

	require.Len(t, be.combines, 1)
	assert.Equal(t, []native.ConditionID{1, 2}, be.combines[0])
}

func TestBuildEmptyGroupMatchesAll(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	q, err := box.Query(All())
	require.NoError(t, err)
	defer q.Close()

	// No condition calls at all, just the build bracket.
	assert.Equal(t, []string{"NewBuilder(1)", "BuildQuery"}, be.calls)
}

func TestBuildSingleChildGroupDelegates(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	q, err := box.Query(Any(age.Equals(7)).Alias("only"))
	require.NoError(t, err)
	defer q.Close()

	// The group's alias binds to the child's handle; no combinator.
	assert.Empty(t, be.combines)
	assert.Equal(t, "only", be.aliases[1])
}

func TestBuildAliasBindsExactHandle(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	cond := age.GreaterThan(21).Alias("min_age").And(name.Equals("Eve").Alias("who"))
	q, err := box.Query(cond)
	require.NoError(t, err)
	defer q.Close()

	assert.Equal(t, "min_age", be.aliases[1])
	assert.Equal(t, "who", be.aliases[2])
}

func TestBuildAliasedConditionsStayDistinct(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	// An aliased group must not be extended in place by And; the alias owns
	// its exact node set.
	inner := Any(age.Equals(1), age.Equals(2)).Alias("pair")
	q, err := box.Query(inner.And(age.Equals(3)))
	require.NoError(t, err)
	defer q.Close()

	require.Len(t, be.combines, 1)
	assert.Equal(t, []native.ConditionID{1, 2}, be.combines[0])
	assert.Equal(t, "pair", be.aliases[3])
}

func TestBuildFloatEqualityFailsBeforeNative(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	_, err := box.Query(score.Equals(3.14))
	require.ErrorIs(t, err, oak.ErrUnsupported)
	// Construction-time rejection: the backend never saw a builder.
	assert.Empty(t, be.calls)
}

func TestBuildFailedLeafAborts(t *testing.T) {
	be := newFakeBackend()
	be.failLeafCalls = true
	box := fakeBox(t, be)

	_, err := box.Query(age.Equals(1).And(name.Equals("x")))
	require.Error(t, err)

	var nerr *oak.NativeError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "IntEquals", nerr.Op)
	assert.Equal(t, "IntEquals failed", nerr.Diagnostic)

	// The first failed leaf aborts; the second leaf never compiles, and the
	// builder handle is still released.
	assert.NotContains(t, be.calls, `StringEquals(2,"x",true)`)
	assert.Equal(t, 1, be.buildersClosed)
}

func TestBuildFailedCombineAborts(t *testing.T) {
	be := newFakeBackend()
	be.failCombine = true
	box := fakeBox(t, be)

	_, err := box.Query(age.Equals(1).Or(age.Equals(2)))
	var nerr *oak.NativeError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "Combine(any)", nerr.Op)
	assert.Equal(t, 1, be.buildersClosed)
}

func TestBuildCaseOverride(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be, oak.WithCaseSensitive(false))

	q, err := box.Query(name.Equals("a").And(name.Equals("b", Case(true))))
	require.NoError(t, err)
	defer q.Close()

	assert.Contains(t, be.calls, `StringEquals(2,"a",false)`)
	assert.Contains(t, be.calls, `StringEquals(2,"b",true)`)
}

func TestQueryCloseIdempotent(t *testing.T) {
	be := newFakeBackend()
	box := fakeBox(t, be)

	q, err := box.Query(nil)
	require.NoError(t, err)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.Equal(t, 1, be.queriesClosed)

	err = q.Offset(1)
	assert.ErrorIs(t, err, oak.ErrQueryClosed)
}
