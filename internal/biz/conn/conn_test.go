package conn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aleiby/cardtable/internal/biz/conn"
	"github.com/aleiby/cardtable/internal/biz/game"
	"github.com/aleiby/cardtable/internal/biz/table"
	"github.com/aleiby/cardtable/internal/data"
	_ "github.com/aleiby/cardtable/internal/games"
	"github.com/aleiby/cardtable/internal/games/solitaire"
	"github.com/aleiby/cardtable/internal/games/war"
	"github.com/aleiby/cardtable/pkg/rarity"
)

const waitFor = 5 * time.Second

type pushed struct {
	name string
	args []any
}

type fakePusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *fakePusher) Push(name string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{name: name, args: args})
	return nil
}

func (p *fakePusher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (p *fakePusher) last(name string) ([]any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].name == name {
			return p.events[i].args, true
		}
	}
	return nil, false
}

type goSched struct{}

func (goSched) Once(d time.Duration, f func()) int64 {
	go f()
	return 0
}

type env struct {
	deps  conn.Deps
	match conn.MatchRepo
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	d := data.NewDataFromClient(rdb)

	tables := table.NewManager(data.NewTableRepo(d))
	games := game.NewRegistry(game.Deps{
		Tables: tables,
		Decks:  data.NewDeckRepo(d),
		Bus:    data.NewBus(d),
		Sched:  goSched{},
		Rarity: rarity.Nop{},
	})
	t.Cleanup(games.Stop)
	match := data.NewMatchRepo(d)
	return &env{
		deps:  conn.Deps{Tables: tables, Games: games, Match: match},
		match: match,
	}
}

func (e *env) connect(t *testing.T, identity string) (*conn.Connection, *fakePusher) {
	t.Helper()
	push := &fakePusher{}
	c := conn.New(e.deps, push)
	c.SetTailBlock(50 * time.Millisecond)
	require.NoError(t, c.SetIdentity(context.Background(), identity, ""))
	t.Cleanup(c.Disconnect)
	return c, push
}

func TestSetIdentitySeatsSoloTable(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")

	require.Equal(t, "alice", c.Identity())
	require.Positive(t, c.TableID())

	args, ok := push.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, c.TableID(), args[0])
	require.Equal(t, "A", args[1])
	require.EqualValues(t, 1, args[2])
	require.Zero(t, push.count("resumeGame"))
}

func TestSetIdentityReusesSeatedTable(t *testing.T) {
	e := newEnv(t)
	tableID, err := e.deps.Tables.NewTable(context.Background(), []string{"alice"})
	require.NoError(t, err)

	c, push := e.connect(t, "alice")
	require.Equal(t, tableID, c.TableID())

	args, ok := push.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, tableID, args[0])
}

func TestPlayGameSoloStartsImmediately(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")
	browse := c.TableID()

	require.NoError(t, c.PlayGame(context.Background(), solitaire.Name))

	require.NotEqual(t, browse, c.TableID())
	args, ok := push.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, c.TableID(), args[0])
	require.EqualValues(t, 1, args[2])

	args, ok = push.last("resumeGame")
	require.True(t, ok)
	require.Equal(t, []any{solitaire.Name}, args)
	require.Zero(t, push.count("msg"))
}

func TestPlayGameAloneWaits(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")

	require.NoError(t, c.PlayGame(context.Background(), war.Name))

	args, ok := push.last("msg")
	require.True(t, ok)
	require.Contains(t, args[0], "Waiting")

	pending, err := e.match.Pending(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, war.Name, pending)
	require.Zero(t, push.count("resumeGame"))
}

func TestPlayGameUnknownIgnored(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")
	before := c.TableID()

	require.NoError(t, c.PlayGame(context.Background(), "Canasta"))
	require.Equal(t, before, c.TableID())
	require.Zero(t, push.count("resumeGame"))
}

// Two players queueing for the same game end up at one shared table, both
// with a seat, a matching player count and a resumed game. The first
// player's connection learns about it through its own event log.
func TestTwoPlayerMatch(t *testing.T) {
	e := newEnv(t)
	c1, push1 := e.connect(t, "alice")
	c2, push2 := e.connect(t, "bob")

	require.NoError(t, c1.PlayGame(context.Background(), war.Name))
	require.NoError(t, c2.PlayGame(context.Background(), war.Name))

	require.Eventually(t, func() bool {
		a1, ok1 := push1.last("resumeGame")
		a2, ok2 := push2.last("resumeGame")
		return ok1 && ok2 && a1[0] == war.Name && a2[0] == war.Name
	}, waitFor, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return c1.TableID() == c2.TableID()
	}, waitFor, 20*time.Millisecond)

	args1, ok := push1.last("setTable")
	require.True(t, ok)
	args2, ok := push2.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, c2.TableID(), args1[0])
	require.EqualValues(t, c2.TableID(), args2[0])
	require.EqualValues(t, 2, args1[2])
	require.EqualValues(t, 2, args2[2])
	require.ElementsMatch(t, []any{args1[1], args2[1]}, []any{"A", "B"})

	for _, id := range []string{"alice", "bob"} {
		pending, err := e.match.Pending(context.Background(), id)
		require.NoError(t, err)
		require.Empty(t, pending)
	}
}

func TestQuitGameClearsPending(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")
	browseTable := c.TableID()

	require.NoError(t, c.PlayGame(context.Background(), war.Name))
	require.NoError(t, c.QuitGame(context.Background(), war.Name))

	pending, err := e.match.Pending(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, pending)

	// quitting the queue still reseats onto a fresh table
	require.NotEqual(t, browseTable, c.TableID())
	args, ok := push.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, c.TableID(), args[0])

	// the queue no longer holds alice: bob queueing alone keeps waiting
	matched, waiting, err := e.match.Enqueue(context.Background(), war.Name, "bob", 2)
	require.NoError(t, err)
	require.Nil(t, matched)
	require.Equal(t, 1, waiting)
}

func TestQuitGameLeavesTable(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")
	require.NoError(t, c.PlayGame(context.Background(), solitaire.Name))
	gameTable := c.TableID()

	require.NoError(t, c.QuitGame(context.Background(), solitaire.Name))

	require.NotEqual(t, gameTable, c.TableID())
	at, err := e.deps.Tables.IsPlayerAtTable(context.Background(), gameTable, "alice")
	require.NoError(t, err)
	require.False(t, at)

	args, ok := push.last("setTable")
	require.True(t, ok)
	require.EqualValues(t, c.TableID(), args[0])
}

func TestChatReachesTableButNotSender(t *testing.T) {
	e := newEnv(t)
	_, err := e.deps.Tables.NewTable(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)

	c1, push1 := e.connect(t, "alice")
	_, push2 := e.connect(t, "bob")

	require.NoError(t, c1.Chat(context.Background(), "good luck"))

	require.Eventually(t, func() bool {
		args, ok := push2.last("msg")
		return ok && args[0] == "good luck"
	}, waitFor, 20*time.Millisecond)
	require.Zero(t, push1.count("msg"))
}

func TestDisconnectStopsDelivery(t *testing.T) {
	e := newEnv(t)
	c, push := e.connect(t, "alice")
	tableID := c.TableID()

	c.Disconnect()
	time.Sleep(100 * time.Millisecond)
	before := push.count("msg")

	require.NoError(t, e.deps.Tables.BroadcastMsg(context.Background(), tableID, "anyone there?"))
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, before, push.count("msg"))
}
