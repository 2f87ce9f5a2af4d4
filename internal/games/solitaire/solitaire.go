// Package solitaire is the single-player pack browser: click the stock to
// turn cards onto the waste, recycle the waste when the stock runs dry, and
// right-click the stock to finish up.
package solitaire

import (
	"context"
	"sync"
	"time"

	"github.com/yola1107/kratos/v2/log"

	"github.com/aleiby/cardtable/internal/biz/game"
	"github.com/aleiby/cardtable/internal/games/cards"
)

const Name = "Solitaire"

const opTimeout = 5 * time.Second

const (
	stock = "stock"
	waste = "waste"
)

func init() {
	game.Register(game.Info{Name: Name, MinPlayers: 1, MaxPlayers: 1}, New)
}

type revealed struct {
	ID    int64  `json:"id"`
	Value int32  `json:"value"`
	Ref   string `json:"ref"`
	Lot   string `json:"lot,omitempty"`
	Deck  string `json:"deck"`
}

type Solitaire struct {
	deps    game.Deps
	tableID int64

	mu      sync.Mutex
	player  string
	cancel  func()
	stopped bool
}

func New(deps game.Deps, tableID int64) game.Game {
	return &Solitaire{deps: deps, tableID: tableID}
}

func (s *Solitaire) Name() string    { return Name }
func (s *Solitaire) MinPlayers() int { return 1 }
func (s *Solitaire) MaxPlayers() int { return 1 }

func (s *Solitaire) Begin(ctx context.Context, initial bool) error {
	players, err := s.deps.Tables.Players(ctx, s.tableID)
	if err != nil {
		return err
	}
	if len(players) > 0 {
		s.mu.Lock()
		s.player = players[0]
		s.mu.Unlock()
	}

	if initial {
		if err := s.deal(ctx); err != nil {
			return err
		}
	}

	cancel, err := game.SubscribeClicks(s.deps, s.tableID, s.onClickDeck, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

func (s *Solitaire) deal(ctx context.Context) error {
	values, refs := cards.Standard()
	ids, err := s.deps.Decks.RegisterCards(ctx, values, refs)
	if err != nil {
		return err
	}
	s.deps.Rarity.Prioritize(ctx, ids, 1, 0)

	if err := s.deps.Decks.Add(ctx, s.tableID, stock, ids, false); err != nil {
		return err
	}
	if _, err := s.deps.Decks.ShuffleInto(ctx, s.tableID, stock, stock); err != nil {
		return err
	}
	return s.deps.Tables.SendEventToTable(ctx, s.tableID, "initDeck", stock, int64(len(ids)))
}

func (s *Solitaire) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Solitaire) onClickDeck(msg *game.ClickDeck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || msg.Player != s.player || msg.Deck != stock {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if msg.Right {
		s.finish(ctx)
		return
	}

	left, err := s.deps.Decks.Count(ctx, s.tableID, stock)
	if err != nil {
		log.Errorf("solitaire: table %d count: %v", s.tableID, err)
		return
	}
	if left == 0 {
		wasted, err := s.deps.Decks.Count(ctx, s.tableID, waste)
		if err != nil {
			log.Errorf("solitaire: table %d count: %v", s.tableID, err)
			return
		}
		if wasted == 0 {
			s.finish(ctx)
			return
		}
		if _, err := s.deps.Decks.ShuffleInto(ctx, s.tableID, waste, stock); err != nil {
			log.Errorf("solitaire: table %d recycle: %v", s.tableID, err)
			return
		}
		if err := s.deps.Tables.SendEventToTable(ctx, s.tableID, "initDeck", stock, wasted); err != nil {
			log.Errorf("solitaire: table %d sync: %v", s.tableID, err)
		}
		if err := s.deps.Tables.BroadcastMsg(ctx, s.tableID, "Recycling the waste pile."); err != nil {
			log.Errorf("solitaire: table %d: %v", s.tableID, err)
		}
		return
	}

	card, ok, err := s.deps.Decks.Draw(ctx, s.tableID, stock, waste)
	if err != nil || !ok {
		log.Errorf("solitaire: table %d draw: ok=%v err=%v", s.tableID, ok, err)
		return
	}
	if err := s.deps.Tables.SendEventToTable(ctx, s.tableID, "addCards", waste, []int64{card}); err != nil {
		log.Errorf("solitaire: table %d sync: %v", s.tableID, err)
	}
	if err := s.deps.Decks.Flip(ctx, s.tableID, waste, []int64{card}); err != nil {
		log.Errorf("solitaire: table %d flip %d: %v", s.tableID, card, err)
		return
	}
	if err := s.deps.Tables.SendEventToTable(ctx, s.tableID, "facing", waste, []int64{card}, true); err != nil {
		log.Errorf("solitaire: table %d sync: %v", s.tableID, err)
	}

	info, err := s.deps.Decks.GetCard(ctx, card)
	if err != nil {
		log.Errorf("solitaire: table %d card %d: %v", s.tableID, card, err)
		return
	}
	r := revealed{ID: info.ID, Value: info.Value, Ref: info.Ref, Deck: waste}
	if lot, ok := s.deps.Rarity.GetLotIfCached(ctx, card); ok {
		r.Lot = lot
	}
	if err := s.deps.Tables.RevealCardToPlayer(ctx, s.player, r); err != nil {
		log.Errorf("solitaire: table %d reveal: %v", s.tableID, err)
	}
}

func (s *Solitaire) finish(ctx context.Context) {
	if err := s.deps.Tables.Repo().SetGameName(ctx, s.tableID, ""); err != nil {
		log.Errorf("solitaire: table %d finish: %v", s.tableID, err)
	}
	if err := s.deps.Tables.SendEventToTable(ctx, s.tableID, "gameOver", nil); err != nil {
		log.Errorf("solitaire: table %d finish: %v", s.tableID, err)
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

var _ game.Game = (*Solitaire)(nil)
