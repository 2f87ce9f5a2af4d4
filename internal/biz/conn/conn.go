package conn

import (
	"context"
	"sync"
	"time"

	"github.com/yola1107/kratos/v2/log"

	"github.com/aleiby/cardtable/internal/biz/game"
	"github.com/aleiby/cardtable/internal/biz/table"
)

// Pusher delivers named events with positional arguments to one client.
// Implemented by the transport layer over a websocket session.
type Pusher interface {
	Push(event string, args ...any) error
}

// MatchRepo is the pending-match queue per game name.
type MatchRepo interface {
	// Enqueue appends the identity to the game's waiting list unless it is
	// already queued. When the list reaches need entries it atomically cuts
	// and returns the first need identities; otherwise matched is nil and
	// waiting reports the current queue length. The cut and the length
	// check are one round trip, so two racing enqueues can never both
	// claim the same group.
	Enqueue(ctx context.Context, gameName, identity string, need int) (matched []string, waiting int, err error)
	Remove(ctx context.Context, gameName, identity string) error
	SetPending(ctx context.Context, identity, gameName string) error
	Pending(ctx context.Context, identity string) (string, error)
	ClearPending(ctx context.Context, identity string) error
}

// Deps bundles what a Connection needs from the rest of the core.
type Deps struct {
	Tables *table.Manager
	Games  *game.Registry
	Match  MatchRepo
}

const (
	defaultTailBlock = 2 * time.Second
	tailIdleSleep    = 50 * time.Millisecond
	tailErrSleep     = 200 * time.Millisecond
)

// Connection is the per-socket delivery channel: it authenticates one
// identity, tails that identity's and its table's durable logs, and streams
// ordered updates to the client. It survives nothing itself — a reconnect
// builds a new Connection which resumes from current store state.
type Connection struct {
	deps Deps
	push Pusher

	// tail block bound; tests shorten it
	tailBlock time.Duration

	mu       sync.Mutex
	identity string
	tableID  int64
	cancel   context.CancelFunc
	closed   bool

	// table retarget requests picked up by the tail loop
	retarget chan int64
}

func New(deps Deps, push Pusher) *Connection {
	return &Connection{
		deps:      deps,
		push:      push,
		tailBlock: defaultTailBlock,
		retarget:  make(chan int64, 4),
	}
}

// SetTailBlock bounds each blocking log read. Liveness only; entries are
// never skipped.
func (c *Connection) SetTailBlock(d time.Duration) { c.tailBlock = d }

// Identity returns the authenticated identity, or "".
func (c *Connection) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// TableID returns the table this connection currently follows.
func (c *Connection) TableID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID
}

// SetIdentity authenticates the connection, seats the identity at its
// current table (or a fresh solo table when it has none), re-emits the
// current table/game state and starts tailing the durable logs. Entries
// appended before this moment are not replayed.
func (c *Connection) SetIdentity(ctx context.Context, identity, displayName string) error {
	c.mu.Lock()
	if c.closed || c.identity != "" {
		c.mu.Unlock()
		return nil
	}
	c.identity = identity
	c.mu.Unlock()

	if displayName != "" {
		if err := c.deps.Tables.Repo().SetPlayerName(ctx, identity, displayName); err != nil {
			return err
		}
	}

	tableID, err := c.ensureTable(ctx, identity)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tableID = tableID
	tailCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.tail(tailCtx, identity, tableID)

	if err := c.announceTable(ctx, tableID, identity); err != nil {
		return err
	}
	name, err := c.deps.Games.ResumeGame(ctx, tableID)
	if err != nil {
		return err
	}
	if name != "" {
		return c.push.Push("resumeGame", name)
	}
	return nil
}

// ensureTable returns the identity's recorded table if it is still seated
// there, otherwise seats it alone at a fresh browse table.
func (c *Connection) ensureTable(ctx context.Context, identity string) (int64, error) {
	tableID, ok, err := c.deps.Tables.PlayerTable(ctx, identity)
	if err != nil {
		return 0, err
	}
	if ok {
		seated, err := c.deps.Tables.IsPlayerAtTable(ctx, tableID, identity)
		if err != nil {
			return 0, err
		}
		if seated {
			return tableID, nil
		}
	}
	return c.deps.Tables.NewTable(ctx, []string{identity})
}

// announceTable pushes the setTable snapshot straight to this client.
// Other seated players learn through their own event logs.
func (c *Connection) announceTable(ctx context.Context, tableID int64, identity string) error {
	seat, err := c.deps.Tables.PlayerSeat(ctx, tableID, identity)
	if err != nil {
		return err
	}
	count, err := c.deps.Tables.NumPlayers(ctx, tableID)
	if err != nil {
		return err
	}
	return c.push.Push("setTable", tableID, seat, count)
}

// PlayGame starts or queues the requested game. Unknown names are ignored.
func (c *Connection) PlayGame(ctx context.Context, name string) error {
	identity := c.Identity()
	if identity == "" {
		return nil
	}
	info, ok := game.Lookup(name)
	if !ok {
		log.Warnf("conn: %s requested unknown game %q", identity, name)
		return nil
	}

	// solo games begin immediately at a fresh table
	if info.MinPlayers == 1 && info.MaxPlayers == 1 {
		return c.startMatch(ctx, name, []string{identity})
	}

	matched, waiting, err := c.deps.Match.Enqueue(ctx, name, identity, info.MinPlayers)
	if err != nil {
		return err
	}
	if matched == nil {
		if err := c.deps.Match.SetPending(ctx, identity, name); err != nil {
			return err
		}
		log.Infof("conn: %s waiting for %q (%d queued)", identity, name, waiting)
		return c.push.Push("msg", "Waiting for players...")
	}

	for _, id := range matched {
		if err := c.deps.Match.ClearPending(ctx, id); err != nil {
			return err
		}
	}
	return c.startMatch(ctx, name, matched)
}

// startMatch seats the group at a fresh table and begins the game. Every
// group member's connection follows along via its player event log; this
// member retargets directly.
func (c *Connection) startMatch(ctx context.Context, name string, players []string) error {
	tableID, err := c.deps.Tables.NewTable(ctx, players)
	if err != nil {
		return err
	}
	if err := c.deps.Games.BeginGame(ctx, name, tableID); err != nil {
		return err
	}
	return c.switchTable(ctx, tableID)
}

// QuitGame leaves the pending queue, or the current table, and reseats the
// identity at a fresh browse table.
func (c *Connection) QuitGame(ctx context.Context, name string) error {
	identity := c.Identity()
	if identity == "" {
		return nil
	}

	pending, err := c.deps.Match.Pending(ctx, identity)
	if err != nil {
		return err
	}
	if pending != "" && pending == name {
		if err := c.deps.Match.Remove(ctx, name, identity); err != nil {
			return err
		}
		if err := c.deps.Match.ClearPending(ctx, identity); err != nil {
			return err
		}
	} else if tableID := c.TableID(); tableID != 0 {
		seated, err := c.deps.Tables.IsPlayerAtTable(ctx, tableID, identity)
		if err != nil {
			return err
		}
		if seated {
			if err := c.deps.Tables.RemovePlayer(ctx, tableID, identity); err != nil {
				return err
			}
		}
	}

	fresh, err := c.deps.Tables.NewTable(ctx, []string{identity})
	if err != nil {
		return err
	}
	return c.switchTable(ctx, fresh)
}

// Chat broadcasts to the table's chat log, excluding the sender's echo.
func (c *Connection) Chat(ctx context.Context, text string) error {
	identity := c.Identity()
	tableID := c.TableID()
	if identity == "" || tableID == 0 || text == "" {
		return nil
	}
	return c.deps.Tables.BroadcastMsg(ctx, tableID, text, identity)
}

// ClickDeck forwards a deck click to the table's game instance.
func (c *Connection) ClickDeck(ctx context.Context, deckName string, selection []int64, right bool) error {
	identity := c.Identity()
	tableID := c.TableID()
	if identity == "" || tableID == 0 {
		return nil
	}
	return c.deps.Games.PublishClickDeck(ctx, tableID, &game.ClickDeck{
		Player:    identity,
		Deck:      deckName,
		Selection: selection,
		Right:     right,
	})
}

// ClickTable forwards a felt click likewise.
func (c *Connection) ClickTable(ctx context.Context, x, z float64, selection []int64, right bool) error {
	identity := c.Identity()
	tableID := c.TableID()
	if identity == "" || tableID == 0 {
		return nil
	}
	return c.deps.Games.PublishClickTable(ctx, tableID, &game.ClickTable{
		Player:    identity,
		X:         x,
		Z:         z,
		Selection: selection,
		Right:     right,
	})
}

// Disconnect stops tailing. The identity stays seated and any in-flight
// mutation this connection triggered runs to completion.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

// switchTable repoints the connection at a new table: the tail loop swaps
// its table streams, the client gets a fresh snapshot and the table's game
// (if any) is resumed.
func (c *Connection) switchTable(ctx context.Context, tableID int64) error {
	c.mu.Lock()
	c.tableID = tableID
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		select {
		case c.retarget <- tableID:
		default:
		}
	}

	identity := c.Identity()
	if err := c.announceTable(ctx, tableID, identity); err != nil {
		return err
	}
	name, err := c.deps.Games.ResumeGame(ctx, tableID)
	if err != nil {
		return err
	}
	if name != "" {
		return c.push.Push("resumeGame", name)
	}
	return nil
}

// tail follows the identity's own log plus the current table's event and
// chat logs, forwarding entries in store order. A bounded blocking read is
// simply re-issued; that is the liveness mechanism for idle connections.
func (c *Connection) tail(ctx context.Context, identity string, tableID int64) {
	repo := c.deps.Tables.Repo()

	for {
		next, ok := c.runTail(ctx, repo, identity, tableID)
		if !ok {
			return
		}
		tableID = next
	}
}

// runTail tails until cancelled or until the table changes; it returns the
// next table id and ok=true on a retarget.
func (c *Connection) runTail(ctx context.Context, repo table.Repo, identity string, tableID int64) (int64, bool) {
	streams := []string{
		repo.PlayerEventsStream(identity),
		repo.TableEventsStream(tableID),
		repo.TableChatStream(tableID),
	}
	ids := make([]string, len(streams))
	for i, s := range streams {
		last, err := repo.LastID(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			log.Errorf("conn: %s tail init %s: %v", identity, s, err)
			last = "0-0"
		}
		ids[i] = last
	}
	index := make(map[string]int, len(streams))
	for i, s := range streams {
		index[s] = i
	}

	for {
		select {
		case <-ctx.Done():
			return 0, false
		case next := <-c.retarget:
			return next, true
		default:
		}

		entries, err := repo.Tail(ctx, streams, ids, c.tailBlock)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			log.Errorf("conn: %s tail: %v", identity, err)
			time.Sleep(tailErrSleep)
			continue
		}

		for _, entry := range entries {
			if i, ok := index[entry.Stream]; ok {
				ids[i] = entry.ID
			}
			if entry.Event.Exclude != "" && entry.Event.Exclude == identity {
				continue
			}
			if err := c.push.Push(entry.Event.Name, entry.Event.Args...); err != nil {
				log.Warnf("conn: %s push %q: %v", identity, entry.Event.Name, err)
			}
			// a setTable on the player's own log moves this connection to
			// the new table's streams
			if entry.Stream == streams[0] && entry.Event.Name == "setTable" {
				if next, ok := eventTableID(entry.Event.Args); ok && next != tableID {
					c.followTable(next)
					return next, true
				}
			}
		}

		if len(entries) == 0 {
			// stores with advisory block times degrade to polite polling
			time.Sleep(tailIdleSleep)
		}
	}
}

// followTable records a table switch initiated elsewhere (matchmaking by a
// peer's connection) and resumes that table's game in this process.
func (c *Connection) followTable(tableID int64) {
	c.mu.Lock()
	c.tableID = tableID
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name, err := c.deps.Games.ResumeGame(ctx, tableID)
	if err != nil {
		log.Errorf("conn: %s resume table %d: %v", c.Identity(), tableID, err)
		return
	}
	if name != "" {
		_ = c.push.Push("resumeGame", name)
	}
}

// eventTableID pulls the table id out of a decoded setTable argument list.
func eventTableID(args []any) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
