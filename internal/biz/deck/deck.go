package deck

import (
	"context"
)

// Repo is the storage contract for decks and the global card registry.
// Every mutating deck operation is a single atomic round trip: two
// simultaneous clicks for the same table must never observe a half-applied
// move.
type Repo interface {
	// RegisterCards allocates monotonic ids for the given card values and
	// external refs, stores them in the global registry and returns the ids.
	// Cards are immutable once registered.
	RegisterCards(ctx context.Context, values []int32, refs []string) ([]int64, error)
	GetCard(ctx context.Context, id int64) (*Card, error)
	GetCards(ctx context.Context, ids []int64) ([]*Card, error)

	Add(ctx context.Context, tableID int64, name string, cards []int64, atStart bool) error
	// Draw removes the top card of src and appends it to dst. Returns the
	// drawn card id, or ok=false if src is empty.
	Draw(ctx context.Context, tableID int64, src, dst string) (int64, bool, error)
	Move(ctx context.Context, tableID int64, src string, cards []int64, dst string, atStart bool) (int, error)
	MoveAll(ctx context.Context, tableID int64, src, dst string) (int, error)
	ShuffleInto(ctx context.Context, tableID int64, src, dst string) (int, error)
	Flip(ctx context.Context, tableID int64, name string, cards []int64) error
	PeekID(ctx context.Context, tableID int64, name string) (int64, bool, error)
	List(ctx context.Context, tableID int64, name string) ([]int64, error)
	Count(ctx context.Context, tableID int64, name string) (int64, error)
	IsFlipped(ctx context.Context, tableID int64, name string, card int64) (bool, error)
	AreFlipped(ctx context.Context, tableID int64, name string, cards []int64) (bool, error)
	Clear(ctx context.Context, tableID int64, name string) error
}

// Card is an immutable registry entry. Decks reference cards by id only.
type Card struct {
	ID    int64  `json:"id"`
	Value int32  `json:"value"`
	Ref   string `json:"ref"`
}

// Deck is an ordered, optionally face-down collection of card ids scoped to
// one table. The handle itself is stateless; all state lives in the repo.
type Deck struct {
	tableID int64
	name    string
	repo    Repo
}

func New(repo Repo, tableID int64, name string) *Deck {
	return &Deck{tableID: tableID, name: name, repo: repo}
}

func (d *Deck) Name() string   { return d.name }
func (d *Deck) TableID() int64 { return d.tableID }

// Add inserts cards at the tail, or before the current head when atStart is
// set. The block keeps the order it was given. Empty input is a no-op.
func (d *Deck) Add(ctx context.Context, cards []int64, atStart bool) error {
	if len(cards) == 0 {
		return nil
	}
	return d.repo.Add(ctx, d.tableID, d.name, cards, atStart)
}

// DrawCard atomically moves the top card to dst's tail. ok=false means the
// deck was empty; callers use that to detect "can't draw".
func (d *Deck) DrawCard(ctx context.Context, dst *Deck) (int64, bool, error) {
	return d.repo.Draw(ctx, d.tableID, d.name, dst.name)
}

// Move relocates the given cards (those actually present, keeping their
// given order) to dst. Returns how many cards moved.
func (d *Deck) Move(ctx context.Context, cards []int64, dst *Deck, atStart bool) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	return d.repo.Move(ctx, d.tableID, d.name, cards, dst.name, atStart)
}

// MoveAll drains this deck onto dst's tail, preserving order.
func (d *Deck) MoveAll(ctx context.Context, dst *Deck) (int, error) {
	return d.repo.MoveAll(ctx, d.tableID, d.name, dst.name)
}

// MoveAllFrom drains each source in turn onto this deck's tail.
func (d *Deck) MoveAllFrom(ctx context.Context, sources ...*Deck) (int, error) {
	total := 0
	for _, src := range sources {
		n, err := src.MoveAll(ctx, d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ShuffleInto drains this deck, shuffles the drained cards and appends them
// to dst. The source ends empty with its face-up state cleared. No-op when
// the source is already empty.
func (d *Deck) ShuffleInto(ctx context.Context, dst *Deck) (int, error) {
	return d.repo.ShuffleInto(ctx, d.tableID, d.name, dst.name)
}

// Flip toggles face-up membership for each card, independent of position.
func (d *Deck) Flip(ctx context.Context, cards ...int64) error {
	if len(cards) == 0 {
		return nil
	}
	return d.repo.Flip(ctx, d.tableID, d.name, cards)
}

// PeekID returns the top card id without removing it.
func (d *Deck) PeekID(ctx context.Context) (int64, bool, error) {
	return d.repo.PeekID(ctx, d.tableID, d.name)
}

// PeekCard returns the top card's registry entry without removing it.
func (d *Deck) PeekCard(ctx context.Context) (*Card, error) {
	id, ok, err := d.PeekID(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return d.repo.GetCard(ctx, id)
}

// List returns the deck's card ids head to tail.
func (d *Deck) List(ctx context.Context) ([]int64, error) {
	return d.repo.List(ctx, d.tableID, d.name)
}

func (d *Deck) NumCards(ctx context.Context) (int64, error) {
	return d.repo.Count(ctx, d.tableID, d.name)
}

func (d *Deck) IsFlipped(ctx context.Context, card int64) (bool, error) {
	return d.repo.IsFlipped(ctx, d.tableID, d.name, card)
}

// AreFlipped reports whether every given card is face up.
func (d *Deck) AreFlipped(ctx context.Context, cards ...int64) (bool, error) {
	if len(cards) == 0 {
		return true, nil
	}
	return d.repo.AreFlipped(ctx, d.tableID, d.name, cards)
}

// Clear erases the deck's order and face-up set. Caller-driven teardown;
// decks are never deleted implicitly.
func (d *Deck) Clear(ctx context.Context) error {
	return d.repo.Clear(ctx, d.tableID, d.name)
}
