package query

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/internal/memengine"
	"github.com/oakdb/oak/resource"
	"github.com/oakdb/oak/testutil"
)

// people used by most integration tests, ids ascending.
var seedPeople = []testutil.Person{
	{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 30, Score: 85.5, Active: true, Token: []byte{0xAA}},
	{ID: 2, Name: "Bob", Email: "bob@example.com", Age: 25, Score: 42.0, Active: true, Token: []byte{0xBB}},
	{ID: 3, Name: "Carol", Email: "carol@example.com", Age: 35, Score: 91.25, Active: false, Token: []byte{0xCC}},
	{ID: 4, Name: "Dave", Email: "dave@example.com", Age: 25, Score: 12.5, Active: false, Token: []byte{0xDD}},
	{ID: 5, Name: "alice", Email: "alice2@example.com", Age: 41, Score: 60.0, Active: true, Token: []byte{0xEE}},
}

var (
	personName   = PropertyString{Prop: testutil.PersonName}
	personEmail  = PropertyString{Prop: testutil.PersonEmail}
	personAge    = PropertyInt64{Prop: testutil.PersonAge}
	personScore  = PropertyFloat64{Prop: testutil.PersonScore}
	personActive = PropertyBool{Prop: testutil.PersonActive}
	personToken  = PropertyBytes{Prop: testutil.PersonToken}
)

func personBox(t *testing.T, engOpts []memengine.Option, opts ...oak.Option) (*Box[testutil.Person], *memengine.Engine) {
	t.Helper()
	eng := memengine.New(engOpts...)
	testutil.RegisterPerson(eng)
	testutil.SeedPeople(t, eng, seedPeople)

	store, err := oak.NewStore(eng, eng.Txns(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewBox[testutil.Person](store, testutil.PersonEntity, testutil.PersonCodec{}), eng
}

func mustQuery[T any](t *testing.T, box *Box[T], cond *Condition) *Query[T] {
	t.Helper()
	q, err := box.Query(cond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func names(people []testutil.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.Name
	}
	return out
}

func TestFind(t *testing.T) {
	box, _ := personBox(t, nil)
	q := mustQuery(t, box, personAge.GreaterOrEqual(30))

	got, err := q.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol", "alice"}, names(got))
	// Full round trip through the row codec.
	assert.Equal(t, seedPeople[0], got[0])
}

func TestFindMatchAll(t *testing.T) {
	box, _ := personBox(t, nil)
	q := mustQuery(t, box, nil)

	got, err := q.Find(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, len(seedPeople))
}

func TestFindFirst(t *testing.T) {
	box, _ := personBox(t, nil)

	q := mustQuery(t, box, personAge.Equals(25))
	p, ok, err := q.FindFirst(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bob", p.Name)

	none := mustQuery(t, box, personAge.Equals(99))
	_, ok, err = none.FindFirst(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindUnique(t *testing.T) {
	box, _ := personBox(t, nil)

	q := mustQuery(t, box, personName.Equals("Carol"))
	p, ok, err := q.FindUnique(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), p.ID)

	none := mustQuery(t, box, personName.Equals("Nobody"))
	_, ok, err = none.FindUnique(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	dup := mustQuery(t, box, personAge.Equals(25))
	_, _, err = dup.FindUnique(context.Background())
	assert.ErrorIs(t, err, oak.ErrNonUnique)
}

func TestFindIDsAscending(t *testing.T) {
	box, _ := personBox(t, nil)
	q := mustQuery(t, box, personActive.Equals(true))

	ids, err := q.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 5}, ids)
}

func TestOffsetLimit(t *testing.T) {
	box, _ := personBox(t, nil)
	q := mustQuery(t, box, nil)

	require.NoError(t, q.Offset(1))
	require.NoError(t, q.Limit(2))

	got, err := q.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol"}, names(got))

	// 0 resets both.
	require.NoError(t, q.Offset(0))
	require.NoError(t, q.Limit(0))
	got, err = q.Find(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, len(seedPeople))
}

func TestCountAndRemove(t *testing.T) {
	box, eng := personBox(t, nil)
	q := mustQuery(t, box, personActive.Equals(false))

	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	removed, err := q.Remove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), removed)
	assert.Equal(t, 3, eng.Size(testutil.PersonEntity))

	n, err = q.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Removed ids are never reused.
	err = eng.Put(testutil.PersonEntity, 3, seedPeople[2].Fields())
	assert.Error(t, err)
}

func TestCombinedConditions(t *testing.T) {
	box, _ := personBox(t, nil)

	q := mustQuery(t, box, personAge.Between(25, 35).And(personScore.GreaterThan(40)))
	got, err := q.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(got))

	anyQ := mustQuery(t, box, personName.Equals("Dave").Or(personScore.GreaterOrEqual(91)))
	got, err = anyQ.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol", "Dave"}, names(got))
}

func TestStringConditions(t *testing.T) {
	box, _ := personBox(t, nil)

	ci := mustQuery(t, box, personName.Equals("ALICE", Case(false)))
	got, err := ci.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "alice"}, names(got))

	cs := mustQuery(t, box, personName.Equals("alice"))
	got, err = cs.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(got))

	starts := mustQuery(t, box, personEmail.StartsWith("alice"))
	ids, err := starts.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 5}, ids)

	contains := mustQuery(t, box, personEmail.Contains("ROL", Case(false)))
	ids, err = contains.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, ids)
}

func TestMembershipConditions(t *testing.T) {
	box, _ := personBox(t, nil)

	in := mustQuery(t, box, personAge.OneOf(25, 41))
	ids, err := in.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5}, ids)

	notIn := mustQuery(t, box, personAge.NotOneOf(25, 41))
	ids, err = notIn.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids)

	strIn := mustQuery(t, box, personName.OneOf([]string{"bob", "carol"}, Case(false)))
	ids, err = strIn.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, ids)
}

func TestBytesConditions(t *testing.T) {
	box, _ := personBox(t, nil)

	eq := mustQuery(t, box, personToken.Equals([]byte{0xCC}))
	ids, err := eq.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, ids)

	gt := mustQuery(t, box, personToken.GreaterOrEqual([]byte{0xCC}))
	ids, err = gt.FindIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4, 5}, ids)
}

func TestDescribe(t *testing.T) {
	box, _ := personBox(t, nil)

	q := mustQuery(t, box, personAge.GreaterThan(21).And(personActive.Equals(true).Alias("active")))

	desc, err := q.Describe()
	require.NoError(t, err)
	assert.Contains(t, desc, " AND ")

	params, err := q.DescribeParams()
	require.NoError(t, err)
	assert.Contains(t, params, "active")

	plain := mustQuery(t, box, nil)
	params, err = plain.DescribeParams()
	require.NoError(t, err)
	assert.Equal(t, "no aliases", params)
}

func TestFindDecodeError(t *testing.T) {
	box, _ := personBox(t, nil)
	broken := NewBox[testutil.Person](box.Store(), testutil.PersonEntity, testutil.BrokenCodec{})

	q := mustQuery(t, broken, nil)
	_, err := q.Find(context.Background())
	require.Error(t, err)

	var derr *oak.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint64(1), derr.ID)
}

func TestCompressedEngine(t *testing.T) {
	for _, name := range []string{"s2", "lz4"} {
		t.Run(name, func(t *testing.T) {
			box, _ := personBox(t, []memengine.Option{memengine.WithCompressor(name)})
			q := mustQuery(t, box, personAge.GreaterOrEqual(30))

			got, err := q.Find(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"Alice", "Carol", "alice"}, names(got))
		})
	}
}

func TestClosedQueryOperations(t *testing.T) {
	box, eng := personBox(t, nil)

	q, err := box.Query(nil)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	_, err = q.Find(context.Background())
	assert.ErrorIs(t, err, oak.ErrQueryClosed)
	_, err = q.Count(context.Background())
	assert.ErrorIs(t, err, oak.ErrQueryClosed)
	_, err = q.Describe()
	assert.ErrorIs(t, err, oak.ErrQueryClosed)
	_, err = q.Stream(context.Background())
	assert.ErrorIs(t, err, oak.ErrQueryClosed)
	_, err = q.StreamIsolated(context.Background())
	assert.ErrorIs(t, err, oak.ErrQueryClosed)

	assert.Zero(t, eng.OpenQueries())
}

func TestMetricsRecorded(t *testing.T) {
	metrics := &oak.BasicMetricsCollector{}
	box, _ := personBox(t, nil, oak.WithMetricsCollector(metrics))

	q := mustQuery(t, box, personAge.GreaterThan(0))
	_, err := q.Count(context.Background())
	require.NoError(t, err)
	_, err = q.Find(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.BuildCount.Load())
	assert.Equal(t, int64(2), metrics.ExecutionCount.Load())
	assert.Equal(t, int64(10), metrics.RowsReturned.Load())
	assert.Zero(t, metrics.ExecutionErrors.Load())
}

func TestBoxEncode(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 16})
	box, _ := personBox(t, nil,
		oak.WithResourceController(rc),
		oak.WithBuilderBuffer(256, 4096),
	)

	raw, err := box.Encode(seedPeople[0])
	require.NoError(t, err)

	got, err := testutil.PersonCodec{}.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, seedPeople[0], got)

	// The retained encode buffer is accounted against the controller.
	assert.Equal(t, int64(256), rc.MemoryUsage())
}

func TestBoxEncodeMemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	box, _ := personBox(t, nil,
		oak.WithResourceController(rc),
		oak.WithBuilderBuffer(64, 128),
	)

	_, err := box.Encode(seedPeople[0])
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}

func TestLeakCheckClosedQueriesSilent(t *testing.T) {
	EnableLeakCheck(true)
	defer EnableLeakCheck(false)
	before := LeakedQueries()

	box, _ := personBox(t, nil)
	func() {
		q, err := box.Query(nil)
		require.NoError(t, err)
		require.NoError(t, q.Close())
	}()

	runtime.GC()
	runtime.GC()
	assert.Equal(t, before, LeakedQueries())
}
