// Package war is the two-player battle game: each round both players flip
// the top card of their draw pile and the higher rank takes both. Matching
// ranks start a war, where the piles stay on the table and the next round
// decides all of it.
package war

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yola1107/kratos/v2/log"

	"github.com/aleiby/cardtable/internal/biz/game"
	"github.com/aleiby/cardtable/internal/games/cards"
)

const Name = "War"

const revealDelay = 2 * time.Second

const opTimeout = 5 * time.Second

func init() {
	game.Register(game.Info{Name: Name, MinPlayers: 2, MaxPlayers: 2}, New)
}

// revealed is the payload of one revealCards argument.
type revealed struct {
	ID    int64  `json:"id"`
	Value int32  `json:"value"`
	Ref   string `json:"ref"`
	Lot   string `json:"lot,omitempty"`
	Deck  string `json:"deck"`
}

type War struct {
	deps    game.Deps
	tableID int64

	mu      sync.Mutex
	seats   map[string]string // identity -> seat letter
	order   []string          // identities in seat order
	played  map[string]bool   // identity played this round
	cancel  func()
	stopped bool
}

func New(deps game.Deps, tableID int64) game.Game {
	return &War{
		deps:    deps,
		tableID: tableID,
		seats:   make(map[string]string),
		played:  make(map[string]bool),
	}
}

func (w *War) Name() string    { return Name }
func (w *War) MinPlayers() int { return 2 }
func (w *War) MaxPlayers() int { return 2 }

func drawDeck(seat string) string   { return "deck-" + seat }
func playedDeck(seat string) string { return "played-" + seat }
func wonDeck(seat string) string    { return "won-" + seat }

// playedField marks in the table hash that a seat has played this round, so
// a resumed instance picks the round up where it stopped.
func playedField(seat string) string { return "played:" + seat }

func (w *War) Begin(ctx context.Context, initial bool) error {
	players, err := w.deps.Tables.Players(ctx, w.tableID)
	if err != nil {
		return err
	}
	if len(players) != 2 {
		return fmt.Errorf("war: table %d seats %d players", w.tableID, len(players))
	}

	w.mu.Lock()
	w.order = players
	for _, p := range players {
		seat, err := w.deps.Tables.PlayerSeat(ctx, w.tableID, p)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		w.seats[p] = seat
	}
	w.mu.Unlock()

	if initial {
		if err := w.deal(ctx); err != nil {
			return err
		}
	} else if err := w.restoreRound(ctx); err != nil {
		return err
	}

	cancel, err := game.SubscribeClicks(w.deps, w.tableID, w.onClickDeck, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.mu.Lock()
	pending := w.played[w.order[0]] && w.played[w.order[1]]
	w.mu.Unlock()
	if pending {
		// both cards were down when the previous instance stopped
		w.deps.Sched.Once(revealDelay, w.resolve)
	}
	return nil
}

// restoreRound rebuilds the round markers a previous instance persisted.
func (w *War) restoreRound(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.order {
		mark, err := w.deps.Tables.Repo().TableField(ctx, w.tableID, playedField(w.seats[p]))
		if err != nil {
			return err
		}
		w.played[p] = mark != ""
	}
	return nil
}

// deal registers a fresh pack, shuffles it and splits it between the two
// draw piles.
func (w *War) deal(ctx context.Context) error {
	values, refs := cards.Standard()
	ids, err := w.deps.Decks.RegisterCards(ctx, values, refs)
	if err != nil {
		return err
	}
	w.deps.Rarity.Prioritize(ctx, ids, 1, 0)

	first := drawDeck(w.seats[w.order[0]])
	second := drawDeck(w.seats[w.order[1]])
	if err := w.deps.Decks.Add(ctx, w.tableID, first, ids, false); err != nil {
		return err
	}
	if _, err := w.deps.Decks.ShuffleInto(ctx, w.tableID, first, first); err != nil {
		return err
	}
	shuffled, err := w.deps.Decks.List(ctx, w.tableID, first)
	if err != nil {
		return err
	}
	if _, err := w.deps.Decks.Move(ctx, w.tableID, first, shuffled[:len(shuffled)/2], second, false); err != nil {
		return err
	}

	for _, name := range []string{first, second} {
		count, err := w.deps.Decks.Count(ctx, w.tableID, name)
		if err != nil {
			return err
		}
		if err := w.deps.Tables.SendEventToTable(ctx, w.tableID, "initDeck", name, count); err != nil {
			return err
		}
	}
	return nil
}

func (w *War) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if w.cancel != nil {
		w.cancel()
	}
}

// onClickDeck plays the clicker's top card. A second click before the round
// resolves is ignored, as are clicks on decks that are not the clicker's
// own draw pile.
func (w *War) onClickDeck(msg *game.ClickDeck) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	seat, ok := w.seats[msg.Player]
	if !ok || msg.Deck != drawDeck(seat) {
		return
	}
	if w.played[msg.Player] {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	canDraw, err := w.ensureCanDraw(ctx, msg.Player, seat)
	if err != nil {
		log.Errorf("war: table %d draw check: %v", w.tableID, err)
		return
	}
	if !canDraw {
		w.finish(ctx, w.opponent(msg.Player))
		return
	}

	card, ok, err := w.deps.Decks.Draw(ctx, w.tableID, drawDeck(seat), playedDeck(seat))
	if err != nil || !ok {
		log.Errorf("war: table %d draw from %s: ok=%v err=%v", w.tableID, drawDeck(seat), ok, err)
		return
	}
	if err := w.deps.Tables.SendEventToTable(ctx, w.tableID, "moveCards", []int64{card}, drawDeck(seat), playedDeck(seat)); err != nil {
		log.Errorf("war: table %d sync: %v", w.tableID, err)
	}
	if err := w.deps.Decks.Flip(ctx, w.tableID, playedDeck(seat), []int64{card}); err != nil {
		log.Errorf("war: table %d flip %d: %v", w.tableID, card, err)
		return
	}
	if err := w.deps.Tables.SendEventToTable(ctx, w.tableID, "facing", playedDeck(seat), []int64{card}, true); err != nil {
		log.Errorf("war: table %d sync: %v", w.tableID, err)
	}
	w.played[msg.Player] = true
	if err := w.deps.Tables.Repo().SetTableField(ctx, w.tableID, playedField(seat), "1"); err != nil {
		log.Errorf("war: table %d mark %s: %v", w.tableID, seat, err)
	}

	if err := w.reveal(ctx, card, playedDeck(seat)); err != nil {
		log.Errorf("war: table %d reveal %d: %v", w.tableID, card, err)
	}

	if w.played[w.opponent(msg.Player)] {
		// dramatic pause between the second reveal and the resolution
		w.deps.Sched.Once(revealDelay, w.resolve)
	}
}

func (w *War) reveal(ctx context.Context, card int64, deckName string) error {
	info, err := w.deps.Decks.GetCard(ctx, card)
	if err != nil {
		return err
	}
	r := revealed{ID: info.ID, Value: info.Value, Ref: info.Ref, Deck: deckName}
	if lot, ok := w.deps.Rarity.GetLotIfCached(ctx, card); ok {
		r.Lot = lot
	}
	return w.deps.Tables.RevealCardsToTable(ctx, w.tableID, r)
}

// ensureCanDraw tops up an empty draw pile from the player's won pile.
// Reports false when both are empty, which ends the game.
func (w *War) ensureCanDraw(ctx context.Context, player, seat string) (bool, error) {
	n, err := w.deps.Decks.Count(ctx, w.tableID, drawDeck(seat))
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	won, err := w.deps.Decks.Count(ctx, w.tableID, wonDeck(seat))
	if err != nil {
		return false, err
	}
	if won == 0 {
		return false, nil
	}
	if _, err := w.deps.Decks.ShuffleInto(ctx, w.tableID, wonDeck(seat), drawDeck(seat)); err != nil {
		return false, err
	}
	w.syncDeck(ctx, drawDeck(seat))
	w.syncDeck(ctx, wonDeck(seat))
	if err := w.deps.Tables.BroadcastMsg(ctx, w.tableID, fmt.Sprintf("%s shuffles their winnings back in.", player)); err != nil {
		return false, err
	}
	return true, nil
}

// syncDeck re-announces a deck's size after a bulk move, so clients drop
// any per-card tracking and just show the count.
func (w *War) syncDeck(ctx context.Context, name string) {
	count, err := w.deps.Decks.Count(ctx, w.tableID, name)
	if err != nil {
		log.Errorf("war: table %d sync %s: %v", w.tableID, name, err)
		return
	}
	if err := w.deps.Tables.SendEventToTable(ctx, w.tableID, "initDeck", name, count); err != nil {
		log.Errorf("war: table %d sync %s: %v", w.tableID, name, err)
	}
}

// resolve compares the newest card of each played pile. Higher rank sweeps
// both piles into the winner's won pile; a tie leaves them on the table and
// reopens the round.
func (w *War) resolve() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tops := make(map[string]int32, 2)
	for _, p := range w.order {
		pile, err := w.deps.Decks.List(ctx, w.tableID, playedDeck(w.seats[p]))
		if err != nil || len(pile) == 0 {
			log.Errorf("war: table %d resolve %s: %v", w.tableID, p, err)
			return
		}
		info, err := w.deps.Decks.GetCard(ctx, pile[len(pile)-1])
		if err != nil {
			log.Errorf("war: table %d resolve %s: %v", w.tableID, p, err)
			return
		}
		tops[p] = cards.Rank(info.Value)
	}

	a, b := w.order[0], w.order[1]
	if tops[a] == tops[b] {
		w.reopenRound(ctx)
		if err := w.deps.Tables.BroadcastMsg(ctx, w.tableID, "War! Play again for the whole pot."); err != nil {
			log.Errorf("war: table %d: %v", w.tableID, err)
		}
		return
	}

	winner := a
	if tops[b] > tops[a] {
		winner = b
	}
	// the sweep reshuffles the pot face down into the won pile
	for _, p := range w.order {
		if _, err := w.deps.Decks.ShuffleInto(ctx, w.tableID, playedDeck(w.seats[p]), wonDeck(w.seats[winner])); err != nil {
			log.Errorf("war: table %d sweep: %v", w.tableID, err)
			return
		}
		w.syncDeck(ctx, playedDeck(w.seats[p]))
	}
	w.syncDeck(ctx, wonDeck(w.seats[winner]))
	w.reopenRound(ctx)
	if err := w.deps.Tables.BroadcastMsg(ctx, w.tableID, fmt.Sprintf("%s takes the round.", winner)); err != nil {
		log.Errorf("war: table %d: %v", w.tableID, err)
	}
}

// reopenRound resets both players' round markers, memory and store alike.
// Caller holds the mutex.
func (w *War) reopenRound(ctx context.Context) {
	for _, p := range w.order {
		w.played[p] = false
		if err := w.deps.Tables.Repo().SetTableField(ctx, w.tableID, playedField(w.seats[p]), ""); err != nil {
			log.Errorf("war: table %d unmark %s: %v", w.tableID, w.seats[p], err)
		}
	}
}

func (w *War) opponent(player string) string {
	if w.order[0] == player {
		return w.order[1]
	}
	return w.order[0]
}

// finish ends the game: the table's game name is cleared so nothing resumes
// it, and everyone learns the winner.
func (w *War) finish(ctx context.Context, winner string) {
	if err := w.deps.Tables.Repo().SetGameName(ctx, w.tableID, ""); err != nil {
		log.Errorf("war: table %d finish: %v", w.tableID, err)
	}
	if err := w.deps.Tables.SendEventToTable(ctx, w.tableID, "gameOver", winner); err != nil {
		log.Errorf("war: table %d finish: %v", w.tableID, err)
	}
	w.stopped = true
	if w.cancel != nil {
		w.cancel()
	}
}

var _ game.Game = (*War)(nil)
