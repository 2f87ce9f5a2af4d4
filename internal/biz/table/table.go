package table

import (
	"context"
	"time"
)

// SeatUndefined is returned for identities that are not seated.
const SeatUndefined = "undefined"

// Event is one durable log entry. Entries are append-only and never mutated
// by the core; retention is an external concern.
type Event struct {
	Name    string `json:"name"`
	Args    []any  `json:"args"`
	Exclude string `json:"exclude,omitempty"`
}

// Entry is a tailed log entry together with its scope and store id.
type Entry struct {
	Stream string
	ID     string
	Event  Event
}

// Repo is the storage contract for tables, seats and the durable event
// logs. Seat slots are sorted-set scores and stay stable for the lifetime
// of a table; removal never compacts them.
type Repo interface {
	NextTableID(ctx context.Context) (int64, error)
	// SeatPlayers seats the identities in the order given (slot = index) and
	// records the table against each identity, overwriting prior refs.
	SeatPlayers(ctx context.Context, tableID int64, players []string) error
	RemovePlayer(ctx context.Context, tableID int64, identity string) error
	Players(ctx context.Context, tableID int64) ([]string, error)
	PlayerSlot(ctx context.Context, tableID int64, identity string) (int64, bool, error)
	PlayerBySlot(ctx context.Context, tableID int64, slot int64) (string, bool, error)
	PlayerTable(ctx context.Context, identity string) (int64, bool, error)

	SetGameName(ctx context.Context, tableID int64, name string) error
	GameName(ctx context.Context, tableID int64) (string, error)
	// SetTableField/TableField give games a place for small per-table
	// markers (e.g. whose card was played first this round).
	SetTableField(ctx context.Context, tableID int64, field, value string) error
	TableField(ctx context.Context, tableID int64, field string) (string, error)

	SetPlayerName(ctx context.Context, identity, name string) error

	AppendEvent(ctx context.Context, stream string, e *Event) error
	// LastID returns the id of the newest entry of a stream, or "0-0" when
	// the stream is empty. Used to start tailing from "now".
	LastID(ctx context.Context, stream string) (string, error)
	// Tail blocks up to block for new entries past ids on the given
	// streams. An empty result is a normal timeout, not an error.
	Tail(ctx context.Context, streams, ids []string, block time.Duration) ([]Entry, error)

	PlayerEventsStream(identity string) string
	TableEventsStream(tableID int64) string
	TableChatStream(tableID int64) string
}

// Manager exposes the table/seat model and its messaging primitives.
type Manager struct {
	repo Repo
}

func NewManager(repo Repo) *Manager {
	return &Manager{repo: repo}
}

func (m *Manager) Repo() Repo { return m.repo }

// NewTable allocates a fresh table id, seats the identities in call order
// and emits a setTable event to each identity's own event log.
func (m *Manager) NewTable(ctx context.Context, players []string) (int64, error) {
	tableID, err := m.repo.NextTableID(ctx)
	if err != nil {
		return 0, err
	}
	if err := m.repo.SeatPlayers(ctx, tableID, players); err != nil {
		return 0, err
	}
	for slot, identity := range players {
		e := &Event{Name: "setTable", Args: []any{tableID, SeatLetter(int64(slot)), len(players)}}
		if err := m.repo.AppendEvent(ctx, m.repo.PlayerEventsStream(identity), e); err != nil {
			return 0, err
		}
	}
	return tableID, nil
}

// RemovePlayer unseats the identity, clears its table ref and notifies the
// table. The freed slot is never reassigned.
func (m *Manager) RemovePlayer(ctx context.Context, tableID int64, identity string) error {
	if err := m.repo.RemovePlayer(ctx, tableID, identity); err != nil {
		return err
	}
	e := &Event{Name: "playerLeft", Args: []any{identity}}
	return m.repo.AppendEvent(ctx, m.repo.TableEventsStream(tableID), e)
}

func (m *Manager) Players(ctx context.Context, tableID int64) ([]string, error) {
	return m.repo.Players(ctx, tableID)
}

func (m *Manager) NumPlayers(ctx context.Context, tableID int64) (int, error) {
	players, err := m.repo.Players(ctx, tableID)
	if err != nil {
		return 0, err
	}
	return len(players), nil
}

// PlayerSlot returns the identity's seat slot, or ok=false.
func (m *Manager) PlayerSlot(ctx context.Context, tableID int64, identity string) (int64, bool, error) {
	return m.repo.PlayerSlot(ctx, tableID, identity)
}

// PlayerSeat returns the identity's seat letter, or "undefined".
func (m *Manager) PlayerSeat(ctx context.Context, tableID int64, identity string) (string, error) {
	slot, ok, err := m.repo.PlayerSlot(ctx, tableID, identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return SeatUndefined, nil
	}
	return SeatLetter(slot), nil
}

func (m *Manager) PlayerBySlot(ctx context.Context, tableID int64, slot int64) (string, bool, error) {
	return m.repo.PlayerBySlot(ctx, tableID, slot)
}

func (m *Manager) IsPlayerAtTable(ctx context.Context, tableID int64, identity string) (bool, error) {
	_, ok, err := m.repo.PlayerSlot(ctx, tableID, identity)
	return ok, err
}

// PlayerTable returns the table an identity is currently recorded at.
func (m *Manager) PlayerTable(ctx context.Context, identity string) (int64, bool, error) {
	return m.repo.PlayerTable(ctx, identity)
}

// IsTableValid reports whether the table has a game and at least one
// seated player. Stale tables fail both ways and are simply abandoned.
func (m *Manager) IsTableValid(ctx context.Context, tableID int64) (bool, error) {
	name, err := m.repo.GameName(ctx, tableID)
	if err != nil {
		return false, err
	}
	if name == "" {
		return false, nil
	}
	players, err := m.repo.Players(ctx, tableID)
	if err != nil {
		return false, err
	}
	return len(players) > 0, nil
}

// BroadcastMsg appends a chat message to the table's chat log. An excluded
// identity's connection skips the entry (sender already rendered it).
func (m *Manager) BroadcastMsg(ctx context.Context, tableID int64, text string, exclude ...string) error {
	e := &Event{Name: "msg", Args: []any{text}}
	if len(exclude) > 0 {
		e.Exclude = exclude[0]
	}
	return m.repo.AppendEvent(ctx, m.repo.TableChatStream(tableID), e)
}

// SendEventToTable appends a named event to the table's event log.
func (m *Manager) SendEventToTable(ctx context.Context, tableID int64, name string, args ...any) error {
	return m.repo.AppendEvent(ctx, m.repo.TableEventsStream(tableID), &Event{Name: name, Args: args})
}

// SendEventToPlayer appends a named event to one identity's event log.
func (m *Manager) SendEventToPlayer(ctx context.Context, identity, name string, args ...any) error {
	return m.repo.AppendEvent(ctx, m.repo.PlayerEventsStream(identity), &Event{Name: name, Args: args})
}

// RevealCardToPlayer emits a reveal event to one player's log.
func (m *Manager) RevealCardToPlayer(ctx context.Context, identity string, cards ...any) error {
	return m.SendEventToPlayer(ctx, identity, "revealCards", cards...)
}

// RevealCardsToTable emits a reveal event to the whole table. Same
// primitive as the per-player variant, different target log.
func (m *Manager) RevealCardsToTable(ctx context.Context, tableID int64, cards ...any) error {
	return m.SendEventToTable(ctx, tableID, "revealCards", cards...)
}

// SeatLetter renders a slot as a seat letter: 0 -> "A", 1 -> "B", ...
func SeatLetter(slot int64) string {
	return string(rune('A' + slot))
}
