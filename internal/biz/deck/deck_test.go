package deck_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aleiby/cardtable/internal/biz/deck"
	"github.com/aleiby/cardtable/internal/data"
)

func newRepo(t *testing.T) deck.Repo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return data.NewDeckRepo(data.NewDataFromClient(rdb))
}

func register(t *testing.T, repo deck.Repo, n int) []int64 {
	t.Helper()
	values := make([]int32, n)
	refs := make([]string, n)
	for i := range values {
		values[i] = int32(i)
		refs[i] = "r"
	}
	ids, err := repo.RegisterCards(context.Background(), values, refs)
	require.NoError(t, err)
	return ids
}

func TestDeckHandleRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ids := register(t, repo, 3)

	stock := deck.New(repo, 1, "stock")
	waste := deck.New(repo, 1, "waste")

	require.NoError(t, stock.Add(ctx, ids, false))
	n, err := stock.NumCards(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	card, ok, err := stock.DrawCard(ctx, waste)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids[0], card)

	top, err := waste.PeekCard(ctx)
	require.NoError(t, err)
	require.Equal(t, ids[0], top.ID)
}

func TestDeckHandleMoveAllFrom(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ids := register(t, repo, 4)

	a := deck.New(repo, 1, "a")
	b := deck.New(repo, 1, "b")
	pot := deck.New(repo, 1, "pot")

	require.NoError(t, a.Add(ctx, ids[:2], false))
	require.NoError(t, b.Add(ctx, ids[2:], false))

	moved, err := pot.MoveAllFrom(ctx, a, b)
	require.NoError(t, err)
	require.Equal(t, 4, moved)

	n, err := pot.NumCards(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestDeckHandleEmptyInputsNoOp(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	d := deck.New(repo, 1, "deck")
	require.NoError(t, d.Add(ctx, nil, false))
	require.NoError(t, d.Flip(ctx))

	ok, err := d.AreFlipped(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	card, err := d.PeekCard(ctx)
	require.NoError(t, err)
	require.Nil(t, card)
}

func TestDeckHandleFlipVariadic(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ids := register(t, repo, 2)

	d := deck.New(repo, 1, "deck")
	require.NoError(t, d.Add(ctx, ids, false))
	require.NoError(t, d.Flip(ctx, ids...))

	up, err := d.AreFlipped(ctx, ids...)
	require.NoError(t, err)
	require.True(t, up)

	one, err := d.IsFlipped(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, one)
}
