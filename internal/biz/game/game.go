package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yola1107/kratos/v2/log"

	"github.com/aleiby/cardtable/internal/biz/deck"
	"github.com/aleiby/cardtable/internal/biz/table"
	"github.com/aleiby/cardtable/pkg/rarity"
	"github.com/aleiby/cardtable/pkg/xredis"
)

// Game is one table's live rules instance. Instances are process-local and
// ephemeral; only the game's name and the decks it writes survive restarts.
type Game interface {
	Name() string
	MinPlayers() int
	MaxPlayers() int
	// Begin performs one-time setup when initial is true (dealing), or
	// reconstructs in-memory state from the store when false, then
	// subscribes to the table's click channels either way.
	Begin(ctx context.Context, initial bool) error
	Stop()
}

// Bus is the publish/subscribe transport for player input. Implemented over
// redis pub/sub; the cluster design assumes a table's input reaches the one
// process holding its instance.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads for the given channels on a dedicated
	// goroutine until the returned cancel func is called.
	Subscribe(channels []string, fn func(channel string, payload []byte)) (func(), error)
}

// Sched schedules one-shot callbacks; used for reveal pacing.
type Sched interface {
	Once(d time.Duration, f func()) int64
}

// Deps is the capability set handed to game factories.
type Deps struct {
	Tables *table.Manager
	Decks  deck.Repo
	Bus    Bus
	Sched  Sched
	Rarity rarity.Service
}

// ClickDeck is a player's click on a named deck.
type ClickDeck struct {
	Player    string  `json:"player"`
	Deck      string  `json:"deck"`
	Selection []int64 `json:"selection,omitempty"`
	Right     bool    `json:"right,omitempty"`
}

// ClickTable is a player's click on the open table felt.
type ClickTable struct {
	Player    string  `json:"player"`
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Selection []int64 `json:"selection,omitempty"`
	Right     bool    `json:"right,omitempty"`
}

// Info describes a registered game without constructing it, so matchmaking
// can size tables up front.
type Info struct {
	Name       string
	MinPlayers int
	MaxPlayers int
}

// Factory builds a fresh instance bound to one table.
type Factory func(deps Deps, tableID int64) Game

type registration struct {
	info    Info
	factory Factory
}

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]registration)
)

// Register records a game implementation under its declared name. Called
// from game packages' init; the registry itself never imports them, which
// keeps the dispatch layer free of import cycles.
func Register(info Info, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[info.Name]; dup {
		panic(fmt.Sprintf("game: Register called twice for %q", info.Name))
	}
	factories[info.Name] = registration{info: info, factory: factory}
}

// Lookup returns the registration info for a name, if any.
func Lookup(name string) (Info, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	reg, ok := factories[name]
	return reg.info, ok
}

func lookupFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	reg, ok := factories[name]
	return reg.factory, ok
}

// Registry tracks at most one live instance per table within this process.
type Registry struct {
	deps Deps

	mu   sync.Mutex
	live map[int64]Game
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, live: make(map[int64]Game)}
}

// Live returns the table's live instance, if this process holds one.
func (r *Registry) Live(tableID int64) (Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.live[tableID]
	return g, ok
}

// BeginGame starts a named game on a table. The name is persisted before
// the implementation loads, so a racing ResumeGame observes it and does not
// double-begin. A live local instance for the table is a dispatch bug.
func (r *Registry) BeginGame(ctx context.Context, name string, tableID int64) error {
	factory, ok := lookupFactory(name)
	if !ok {
		return fmt.Errorf("game: unknown game %q", name)
	}

	if err := r.deps.Tables.Repo().SetGameName(ctx, tableID, name); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.live[tableID]; exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("game: BeginGame on table %d with a live instance", tableID))
	}
	g := factory(r.deps, tableID)
	r.live[tableID] = g
	r.mu.Unlock()

	if err := g.Begin(ctx, true); err != nil {
		r.drop(tableID, g)
		return err
	}
	log.Infof("game %q begun on table %d", name, tableID)
	return nil
}

// ResumeGame re-attaches the table's persisted game. Returns "" when the
// table has none. Idempotent: a live instance is returned as-is, and the
// check-then-construct step is one critical section.
func (r *Registry) ResumeGame(ctx context.Context, tableID int64) (string, error) {
	name, err := r.deps.Tables.Repo().GameName(ctx, tableID)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", nil
	}

	r.mu.Lock()
	if _, exists := r.live[tableID]; exists {
		r.mu.Unlock()
		return name, nil
	}
	factory, ok := lookupFactory(name)
	if !ok {
		r.mu.Unlock()
		log.Warnf("game: table %d names unregistered game %q", tableID, name)
		return "", nil
	}
	g := factory(r.deps, tableID)
	r.live[tableID] = g
	r.mu.Unlock()

	if err := g.Begin(ctx, false); err != nil {
		r.drop(tableID, g)
		return "", err
	}
	log.Infof("game %q resumed on table %d", name, tableID)
	return name, nil
}

func (r *Registry) drop(tableID int64, g Game) {
	r.mu.Lock()
	if r.live[tableID] == g {
		delete(r.live, tableID)
	}
	r.mu.Unlock()
	g.Stop()
}

// Stop tears down every live instance. Process shutdown only; tables are
// otherwise retired implicitly when they become invalid.
func (r *Registry) Stop() {
	r.mu.Lock()
	live := r.live
	r.live = make(map[int64]Game)
	r.mu.Unlock()
	for _, g := range live {
		g.Stop()
	}
}

// PublishClickDeck routes a deck click to whichever instance holds the
// table. Malformed or unroutable clicks are dropped.
func (r *Registry) PublishClickDeck(ctx context.Context, tableID int64, msg *ClickDeck) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.deps.Bus.Publish(ctx, xredis.ClickDeckChannel(tableID), payload)
}

// PublishClickTable routes a felt click likewise.
func (r *Registry) PublishClickTable(ctx context.Context, tableID int64, msg *ClickTable) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.deps.Bus.Publish(ctx, xredis.ClickTableChannel(tableID), payload)
}

// SubscribeClicks wires a table's click channels to the given handlers.
// Used by game implementations during Begin; the cancel func is their Stop.
func SubscribeClicks(deps Deps, tableID int64, onDeck func(*ClickDeck), onTable func(*ClickTable)) (func(), error) {
	deckCh := xredis.ClickDeckChannel(tableID)
	tableCh := xredis.ClickTableChannel(tableID)
	return deps.Bus.Subscribe([]string{deckCh, tableCh}, func(channel string, payload []byte) {
		switch channel {
		case deckCh:
			if onDeck == nil {
				return
			}
			var msg ClickDeck
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Warnf("game: bad clickDeck payload on table %d: %v", tableID, err)
				return
			}
			onDeck(&msg)
		case tableCh:
			if onTable == nil {
				return
			}
			var msg ClickTable
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Warnf("game: bad clickTable payload on table %d: %v", tableID, err)
				return
			}
			onTable(&msg)
		}
	})
}
