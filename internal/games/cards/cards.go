// Package cards describes the standard 52-card pack shared by the bundled
// games. A card's value is its index in suit-major order; the rank decides
// comparisons.
package cards

var suits = []string{"S", "H", "D", "C"}

var ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

const PerSuit = 13

// Standard returns the values and refs of a fresh 52-card pack.
func Standard() ([]int32, []string) {
	values := make([]int32, 0, len(suits)*len(ranks))
	refs := make([]string, 0, len(suits)*len(ranks))
	for s := range suits {
		for r := range ranks {
			values = append(values, int32(s*PerSuit+r))
			refs = append(refs, ranks[r]+suits[s])
		}
	}
	return values, refs
}

// Rank maps a card value to its rank within the suit, 0 (ace) to 12 (king).
func Rank(value int32) int32 {
	return value % PerSuit
}

// Name renders a value as its ref, e.g. "10H".
func Name(value int32) string {
	return ranks[value%PerSuit] + suits[value/PerSuit%int32(len(suits))]
}
