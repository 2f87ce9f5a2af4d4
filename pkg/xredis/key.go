package xredis

import "fmt"

// Counters.
const (
	NextTableIDKey = "next:table:id"
	NextCardIDKey  = "next:card:id"
)

// Hash fields on table:{id}.
const (
	TableGameField = "game"
)

// Hash fields on player:{identity}.
const (
	PlayerTableField   = "table"
	PlayerNameField    = "name"
	PlayerPendingField = "pending"
)

// Hash fields on card:{id}.
const (
	CardValueField = "value"
	CardRefField   = "ref"
)

func TableKey(tableID int64) string {
	return fmt.Sprintf("table:%d", tableID)
}

// TablePlayersKey is a sorted set of identities, score = seat slot.
func TablePlayersKey(tableID int64) string {
	return fmt.Sprintf("table:%d:players", tableID)
}

// TableEventsKey is the table's durable event stream.
func TableEventsKey(tableID int64) string {
	return fmt.Sprintf("table:%d:events", tableID)
}

// TableChatKey is the table's durable chat stream.
func TableChatKey(tableID int64) string {
	return fmt.Sprintf("table:%d:chat", tableID)
}

func PlayerKey(identity string) string {
	return "player:" + identity
}

// PlayerEventsKey is the player's private durable event stream.
func PlayerEventsKey(identity string) string {
	return "player:" + identity + ":events"
}

// DeckKey is a sorted set of card ids, score = position.
func DeckKey(tableID int64, name string) string {
	return fmt.Sprintf("table:%d:%s", tableID, name)
}

// DeckFacingKey is the set of face-up card ids of one deck.
func DeckFacingKey(tableID int64, name string) string {
	return fmt.Sprintf("table:%d:%s:facing", tableID, name)
}

func CardKey(cardID int64) string {
	return fmt.Sprintf("card:%d", cardID)
}

// PendingKey is the waiting list of identities for one game name.
func PendingKey(game string) string {
	return "pending:" + game
}

// ClickDeckChannel carries deck clicks for one table.
func ClickDeckChannel(tableID int64) string {
	return fmt.Sprintf("table:%d:clickDeck", tableID)
}

// ClickTableChannel carries felt clicks for one table.
func ClickTableChannel(tableID int64) string {
	return fmt.Sprintf("table:%d:clickTable", tableID)
}
