package data_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aleiby/cardtable/internal/biz/deck"
	"github.com/aleiby/cardtable/internal/data"
)

func newTestData(t *testing.T) *data.Data {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return data.NewDataFromClient(rdb)
}

func registerRun(t *testing.T, repo deck.Repo, n int) []int64 {
	t.Helper()
	values := make([]int32, n)
	refs := make([]string, n)
	for i := range values {
		values[i] = int32(i)
		refs[i] = "ref"
	}
	ids, err := repo.RegisterCards(context.Background(), values, refs)
	require.NoError(t, err)
	require.Len(t, ids, n)
	return ids
}

func TestDeckRegisterCards(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()

	ids, err := repo.RegisterCards(ctx, []int32{7, 8}, []string{"7H", "8H"})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])

	card, err := repo.GetCard(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, int32(7), card.Value)
	require.Equal(t, "7H", card.Ref)

	_, err = repo.GetCard(ctx, 9999)
	require.Error(t, err)
}

func TestDeckAddAppendsFIFO(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 3)

	for _, id := range ids {
		require.NoError(t, repo.Add(ctx, 1, "deck", []int64{id}, false))
	}

	got, err := repo.List(ctx, 1, "deck")
	require.NoError(t, err)
	require.Equal(t, ids, got)

	front, ok, err := repo.PeekID(ctx, 1, "deck")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids[0], front)
}

func TestDeckAddAtStart(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 3)

	// 1 then 2 appended, 3 pushed to the front: 3,1,2
	require.NoError(t, repo.Add(ctx, 1, "deck", []int64{ids[0]}, false))
	require.NoError(t, repo.Add(ctx, 1, "deck", []int64{ids[1]}, false))
	require.NoError(t, repo.Add(ctx, 1, "deck", []int64{ids[2]}, true))

	got, err := repo.List(ctx, 1, "deck")
	require.NoError(t, err)
	require.Equal(t, []int64{ids[2], ids[0], ids[1]}, got)
}

func TestDeckAddAtStartKeepsBlockOrder(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 5)

	require.NoError(t, repo.Add(ctx, 1, "deck", ids[:2], false))
	require.NoError(t, repo.Add(ctx, 1, "deck", ids[2:], true))

	got, err := repo.List(ctx, 1, "deck")
	require.NoError(t, err)
	require.Equal(t, []int64{ids[2], ids[3], ids[4], ids[0], ids[1]}, got)
}

func TestDeckDraw(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 2)
	require.NoError(t, repo.Add(ctx, 1, "stock", ids, false))

	card, ok, err := repo.Draw(ctx, 1, "stock", "waste")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids[0], card)

	n, err := repo.Count(ctx, 1, "stock")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = repo.Count(ctx, 1, "waste")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDeckDrawEmpty(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))

	card, ok, err := repo.Draw(context.Background(), 1, "stock", "waste")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, card)
}

// Two goroutines drawing from the same deck must partition it: every card
// ends up in exactly one destination and none is drawn twice.
func TestDeckDrawConcurrentPartition(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 40)
	require.NoError(t, repo.Add(ctx, 1, "stock", ids, false))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, dst := range []string{"left", "right"} {
		wg.Add(1)
		go func(dst string) {
			defer wg.Done()
			for {
				_, ok, err := repo.Draw(ctx, 1, "stock", dst)
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					return
				}
			}
		}(dst)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	left, err := repo.List(ctx, 1, "left")
	require.NoError(t, err)
	right, err := repo.List(ctx, 1, "right")
	require.NoError(t, err)
	require.Len(t, append(left, right...), len(ids))

	seen := make(map[int64]bool)
	for _, id := range append(left, right...) {
		require.False(t, seen[id], "card %d drawn twice", id)
		seen[id] = true
	}
}

func TestDeckMoveFiltersAbsent(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 4)
	require.NoError(t, repo.Add(ctx, 1, "hand", ids[:3], false))

	moved, err := repo.Move(ctx, 1, "hand", []int64{ids[1], ids[3]}, "played", false)
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	got, err := repo.List(ctx, 1, "played")
	require.NoError(t, err)
	require.Equal(t, []int64{ids[1]}, got)
	remaining, err := repo.List(ctx, 1, "hand")
	require.NoError(t, err)
	require.Equal(t, []int64{ids[0], ids[2]}, remaining)
}

func TestDeckMoveTransfersFacing(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 2)
	require.NoError(t, repo.Add(ctx, 1, "hand", ids, false))
	require.NoError(t, repo.Flip(ctx, 1, "hand", []int64{ids[0]}))

	_, err := repo.Move(ctx, 1, "hand", ids, "played", false)
	require.NoError(t, err)

	up, err := repo.IsFlipped(ctx, 1, "played", ids[0])
	require.NoError(t, err)
	require.True(t, up)
	up, err = repo.IsFlipped(ctx, 1, "played", ids[1])
	require.NoError(t, err)
	require.False(t, up)
}

func TestDeckMoveAll(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 3)
	require.NoError(t, repo.Add(ctx, 1, "a", ids, false))
	require.NoError(t, repo.Add(ctx, 1, "b", nil, false))

	moved, err := repo.MoveAll(ctx, 1, "a", "b")
	require.NoError(t, err)
	require.Equal(t, 3, moved)

	got, err := repo.List(ctx, 1, "b")
	require.NoError(t, err)
	require.Equal(t, ids, got)
	n, err := repo.Count(ctx, 1, "a")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeckShuffleIntoAppendsToDestination(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 10)
	require.NoError(t, repo.Add(ctx, 1, "won", ids[:6], false))
	require.NoError(t, repo.Add(ctx, 1, "draw", ids[6:], false))
	require.NoError(t, repo.Flip(ctx, 1, "won", []int64{ids[0]}))
	require.NoError(t, repo.Flip(ctx, 1, "draw", []int64{ids[7]}))

	moved, err := repo.ShuffleInto(ctx, 1, "won", "draw")
	require.NoError(t, err)
	require.Equal(t, 6, moved)

	n, err := repo.Count(ctx, 1, "won")
	require.NoError(t, err)
	require.Zero(t, n)

	// the destination keeps its prior order in front, shuffled cards follow
	got, err := repo.List(ctx, 1, "draw")
	require.NoError(t, err)
	require.Len(t, got, 10)
	require.Equal(t, ids[6:], got[:4])
	require.ElementsMatch(t, ids[:6], got[4:])

	// the destination's face-up state survives; the drained cards land face down
	up, err := repo.IsFlipped(ctx, 1, "draw", ids[7])
	require.NoError(t, err)
	require.True(t, up)
	for _, id := range ids[:6] {
		up, err := repo.IsFlipped(ctx, 1, "draw", id)
		require.NoError(t, err)
		require.False(t, up)
	}
}

func TestDeckShuffleIntoEmptySourceNoOp(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 3)
	require.NoError(t, repo.Add(ctx, 1, "draw", ids, false))
	require.NoError(t, repo.Flip(ctx, 1, "draw", []int64{ids[0]}))

	moved, err := repo.ShuffleInto(ctx, 1, "won", "draw")
	require.NoError(t, err)
	require.Zero(t, moved)

	got, err := repo.List(ctx, 1, "draw")
	require.NoError(t, err)
	require.Equal(t, ids, got)
	up, err := repo.IsFlipped(ctx, 1, "draw", ids[0])
	require.NoError(t, err)
	require.True(t, up)
}

func TestDeckShuffleInPlace(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 8)
	require.NoError(t, repo.Add(ctx, 1, "deck", ids, false))

	// a permutation equal to the input is possible but vanishingly unlikely
	// to repeat across every trial
	reordered := false
	for trial := 0; trial < 20 && !reordered; trial++ {
		_, err := repo.ShuffleInto(ctx, 1, "deck", "deck")
		require.NoError(t, err)

		got, err := repo.List(ctx, 1, "deck")
		require.NoError(t, err)
		require.Len(t, got, len(ids))
		require.ElementsMatch(t, ids, got)
		for i := range ids {
			if got[i] != ids[i] {
				reordered = true
				break
			}
		}
	}
	require.True(t, reordered, "shuffle never changed the order")
}

func TestDeckFlipToggles(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 2)
	require.NoError(t, repo.Add(ctx, 1, "deck", ids, false))

	require.NoError(t, repo.Flip(ctx, 1, "deck", ids))
	all, err := repo.AreFlipped(ctx, 1, "deck", ids)
	require.NoError(t, err)
	require.True(t, all)

	require.NoError(t, repo.Flip(ctx, 1, "deck", []int64{ids[0]}))
	all, err = repo.AreFlipped(ctx, 1, "deck", ids)
	require.NoError(t, err)
	require.False(t, all)

	// cards outside the deck are ignored
	require.NoError(t, repo.Flip(ctx, 1, "deck", []int64{12345}))
	up, err := repo.IsFlipped(ctx, 1, "deck", 12345)
	require.NoError(t, err)
	require.False(t, up)
}

func TestDeckClear(t *testing.T) {
	repo := data.NewDeckRepo(newTestData(t))
	ctx := context.Background()
	ids := registerRun(t, repo, 3)
	require.NoError(t, repo.Add(ctx, 1, "deck", ids, false))
	require.NoError(t, repo.Flip(ctx, 1, "deck", ids[:1]))

	require.NoError(t, repo.Clear(ctx, 1, "deck"))

	n, err := repo.Count(ctx, 1, "deck")
	require.NoError(t, err)
	require.Zero(t, n)
	up, err := repo.IsFlipped(ctx, 1, "deck", ids[0])
	require.NoError(t, err)
	require.False(t, up)
}
