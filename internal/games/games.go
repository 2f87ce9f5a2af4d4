// Package games links the bundled game implementations into the binary.
// Each registers itself with the dispatch registry from its init.
package games

import (
	_ "github.com/aleiby/cardtable/internal/games/solitaire"
	_ "github.com/aleiby/cardtable/internal/games/war"
)
