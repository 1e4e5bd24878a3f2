package stack_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/stack"
	"github.com/roach88/datastack/internal/testutil"
)

func TestFetchMany_SortDirectionReversesOrder(t *testing.T) {
	for _, persisted := range []bool{false, true} {
		name := "unsaved"
		if persisted {
			name = "persisted"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ts := testutil.NewTestStack(t, testutil.PeopleModel())
			fg := ts.Foreground()
			insertPeople(t, fg, "Carol", "Alice", "Bob")
			if persisted {
				persistSync(t, ts.Stack)
			}

			asc := ts.FetchMany(ctx, fg, "Person", stack.SortBy(queryir.Asc("name")))
			desc := ts.FetchMany(ctx, fg, "Person", stack.SortBy(queryir.Desc("name")))

			assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(asc))
			assert.Equal(t, []string{"Carol", "Bob", "Alice"}, names(desc))

			first := ts.FetchOne(ctx, fg, "Person", stack.SortBy(queryir.Asc("name")))
			last := ts.FetchOne(ctx, fg, "Person", stack.SortBy(queryir.Desc("name")))
			require.NotNil(t, first)
			require.NotNil(t, last)
			assert.Equal(t, ir.String("Alice"), first.Get("name"))
			assert.Equal(t, ir.String("Carol"), last.Get("name"))
			assert.Equal(t, 0, ts.Logger.Len())
		})
	}
}

func TestFetchMany_WhereAndLimit(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStack(t, testutil.PeopleModel())
	fg := ts.Foreground()
	insertPeople(t, fg, "Ada", "Bob", "Cy", "Di") // ages 20..23
	persistSync(t, ts.Stack)

	// One unsaved insert forces the in-memory path for the foreground.
	insertPeople(t, fg, "Eve")

	for _, c := range []*stack.Context{ts.Root(), fg} {
		got := ts.FetchMany(ctx, c, "Person",
			stack.Where(queryir.Ge("age", ir.Int(21))),
			stack.SortBy(queryir.Desc("age")),
			stack.Limit(2))
		assert.Equal(t, []string{"Di", "Cy"}, names(got), c.Name())
	}
}

func TestFetchMany_PendingUpdateMovesRecordIntoResult(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStack(t, testutil.PeopleModel())
	fg := ts.Foreground()
	insertPeople(t, fg, "Ada", "Bob")
	persistSync(t, ts.Stack)

	bob := ts.FetchOne(ctx, fg, "Person", stack.Where(queryir.Eq("name", ir.String("Bob"))))
	require.NotNil(t, bob)
	require.NoError(t, bob.Set("active", true))

	active := ts.FetchMany(ctx, fg, "Person", stack.Where(queryir.Eq("active", ir.Bool(true))))
	require.Len(t, active, 1)
	assert.Same(t, bob, active[0])

	assert.Empty(t, ts.FetchMany(ctx, ts.Root(), "Person", stack.Where(queryir.Eq("active", ir.Bool(true)))))
}

func TestFetchMany_NeverNil(t *testing.T) {
	ts := testutil.NewTestStack(t, testutil.PeopleModel())

	got := ts.FetchMany(context.Background(), ts.Foreground(), "Group")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Nil(t, ts.FetchOne(context.Background(), ts.Foreground(), "Group"))
}

func TestFetch_BackendFailureLoggedOncePerCall(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStack(t, testutil.PeopleModel())
	fg := ts.Foreground()
	insertPeople(t, fg, "Ada")
	persistSync(t, ts.Stack)

	ts.Backend.FailFetch(nil)

	many := ts.FetchMany(ctx, fg, "Person")
	assert.NotNil(t, many)
	assert.Empty(t, many)
	require.Equal(t, 1, ts.Logger.Len())

	entry := ts.Logger.Entries()[0]
	assert.True(t, stack.IsQueryError(entry.Err))
	assert.ErrorIs(t, entry.Err, testutil.ErrInjected)
	assert.Contains(t, entry.Location.Function, "FetchMany")
	assert.Equal(t, "fetch.go", entry.Location.File)

	ts.Logger.Reset()
	assert.Nil(t, ts.FetchOne(ctx, fg, "Person"))
	require.Equal(t, 1, ts.Logger.Len())
	assert.Contains(t, ts.Logger.Entries()[0].Location.Function, "FetchOne")
}

func TestFetch_InvalidRequestLoggedWithoutBackendCall(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStack(t, testutil.PeopleModel())
	before := ts.Backend.FetchCalls()

	got := ts.FetchMany(ctx, ts.Foreground(), "Person", stack.SortBy(queryir.Asc("nickname")))
	assert.Empty(t, got)
	assert.Nil(t, ts.FetchOne(ctx, ts.Foreground(), "Robot"))

	assert.Equal(t, 2, ts.Logger.Len())
	assert.Equal(t, before, ts.Backend.FetchCalls())
}

func TestFetch_DisabledErrorLogger(t *testing.T) {
	ts := testutil.NewTestStack(t, testutil.PeopleModel(), stack.WithErrorLogger(nil))
	ts.Backend.FailFetch(nil)

	assert.Empty(t, ts.FetchMany(context.Background(), ts.Foreground(), "Person"))
	assert.Equal(t, 0, ts.Logger.Len())
}

func TestNewRequest_CarriesBatchSizeAndOptions(t *testing.T) {
	ts := testutil.NewTestStack(t, testutil.PeopleModel())

	req := ts.NewRequest("Person",
		stack.Where(queryir.Eq("name", ir.String("Ada"))),
		stack.SortBy(queryir.Desc("age")),
		stack.Limit(2))

	assert.Equal(t, "Person", req.Entity)
	assert.Equal(t, ts.BatchSize(), req.BatchSize)
	assert.True(t, req.IncludesPropertyValues)
	assert.Equal(t, queryir.Eq("name", ir.String("Ada")), req.Predicate)
	assert.Equal(t, []queryir.SortDescriptor{queryir.Desc("age")}, req.Sort)
	assert.Equal(t, 2, req.Limit)

	assert.False(t, ts.NewRequest("Person", stack.IDsOnly()).IncludesPropertyValues)
}

func TestContextFetch_ReturnsBackendError(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStack(t, testutil.PeopleModel())
	ts.Backend.FailFetch(nil)

	objs, err := ts.Foreground().Fetch(ctx, ts.NewRequest("Person"))
	require.Error(t, err)
	assert.Nil(t, objs)
	assert.True(t, stack.IsQueryError(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, 0, ts.Logger.Len())
}
