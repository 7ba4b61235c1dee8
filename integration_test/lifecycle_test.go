package integration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/internal/memengine"
	"github.com/oakdb/oak/query"
	"github.com/oakdb/oak/testutil"
)

func openStore(t *testing.T, engOpts ...memengine.Option) (*oak.Store, *memengine.Engine) {
	t.Helper()
	eng := memengine.New(engOpts...)
	testutil.RegisterPerson(eng)

	store, err := oak.NewStore(eng, eng.Txns())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, eng
}

func TestFullLifecycle(t *testing.T) {
	testCases := []struct {
		name string
		opts []memengine.Option
	}{
		{name: "Plain"},
		{name: "S2", opts: []memengine.Option{memengine.WithCompressor("s2")}},
		{name: "LZ4", opts: []memengine.Option{memengine.WithCompressor("lz4")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, eng := openStore(t, tc.opts...)
			ctx := context.Background()

			rng := testutil.NewRNG(4711)
			people := rng.People(200)
			testutil.SeedPeople(t, eng, people)

			box := query.NewBox[testutil.Person](store, testutil.PersonEntity, testutil.PersonCodec{})
			age := query.PropertyInt64{Prop: testutil.PersonAge}

			// Count and find agree with a straight scan of the dataset.
			var want []testutil.Person
			for _, p := range people {
				if p.Age >= 40 {
					want = append(want, p)
				}
			}

			q, err := box.Query(age.GreaterOrEqual(40))
			require.NoError(t, err)
			defer q.Close()

			n, err := q.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(want)), n)

			got, err := q.Find(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Remove the matches and verify they are gone for good.
			removed, err := q.Remove(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(want)), removed)
			assert.Equal(t, len(people)-len(want), eng.Size(testutil.PersonEntity))

			n, err = q.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			for _, p := range want {
				assert.Error(t, eng.Put(testutil.PersonEntity, p.ID, p.Fields()))
			}
		})
	}
}

func TestStreamsAgreeWithFind(t *testing.T) {
	store, eng := openStore(t)
	ctx := context.Background()

	testutil.SeedPeople(t, eng, testutil.NewRNG(99).People(500))

	box := query.NewBox[testutil.Person](store, testutil.PersonEntity, testutil.PersonCodec{})
	score := query.PropertyFloat64{Prop: testutil.PersonScore}

	q, err := box.Query(score.Between(20, 80))
	require.NoError(t, err)
	defer q.Close()

	want, err := q.Find(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	s, err := q.Stream(ctx)
	require.NoError(t, err)
	var streamed []testutil.Person
	for r := range s.Results() {
		require.NoError(t, r.Err)
		streamed = append(streamed, r.Value)
	}
	assert.Equal(t, want, streamed)

	iso, err := q.StreamIsolated(ctx)
	require.NoError(t, err)
	var isolated []testutil.Person
	for r := range iso.Results() {
		require.NoError(t, r.Err)
		isolated = append(isolated, r.Value)
	}
	assert.Equal(t, want, isolated)
	assert.Equal(t, query.StateClosed, iso.State())
}

func TestConcurrentIsolatedStreams(t *testing.T) {
	eng := memengine.New()
	testutil.RegisterPerson(eng)
	store, err := oak.NewStore(eng, eng.Txns(), oak.WithStreamWorkers(4))
	require.NoError(t, err)
	defer store.Close()

	testutil.SeedPeople(t, eng, testutil.NewRNG(7).People(100))

	box := query.NewBox[testutil.Person](store, testutil.PersonEntity, testutil.PersonCodec{})
	ctx := context.Background()

	// Four sessions over four independent queries, drained concurrently.
	results := make(chan int, 4)
	for i := 0; i < 4; i++ {
		q, err := box.Query(nil)
		require.NoError(t, err)
		defer q.Close()

		s, err := q.StreamIsolated(ctx)
		require.NoError(t, err)

		go func() {
			n := 0
			for r := range s.Results() {
				if r.Err == nil {
					n++
				}
			}
			results <- n
		}()
	}

	for i := 0; i < 4; i++ {
		assert.Equal(t, 100, <-results)
	}
}
