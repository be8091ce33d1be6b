package command

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Shape is an ordered list of part kinds a command must match position by position.
type Shape []Kind

func (s Shape) String() string {
	names := make([]string, len(s))
	for i, k := range s {
		names[i] = k.String()
	}
	return strings.Join(names, "+")
}

// Shapes lists every accepted command shape in priority order.
//
//	[zones] on|off
//	[zones] <color>
//	[zones] <brightness>
//	[zones] <color> <brightness>
//	[zones] <brightness> <color>
var Shapes = []Shape{
	{KindSwitch},
	{KindColor},
	{KindBrightness},
	{KindColor, KindBrightness},
	{KindBrightness, KindColor},
}

// maxSuggestDistance bounds the edit distance of "did you mean" suggestions.
const maxSuggestDistance = 2

// Match returns the first shape in Shapes that has as many positions as tokens
// and accepts every token at its position.
func (l *Lexicon) Match(tokens []string) (Shape, error) {
	for _, shape := range Shapes {
		if len(shape) != len(tokens) {
			continue
		}
		if l.accepts(shape, tokens) {
			return shape, nil
		}
	}

	err := malformed(tokens, "no command shape matches")
	for _, t := range tokens {
		if !l.known(t) {
			err.Suggestion = l.suggest(t)
			break
		}
	}
	return nil, err
}

func (l *Lexicon) accepts(shape Shape, tokens []string) bool {
	for i, kind := range shape {
		if !l.Valid(kind, tokens[i]) {
			return false
		}
	}
	return true
}

func (l *Lexicon) known(token string) bool {
	if _, ok := ParseBrightness(token); ok {
		return true
	}
	i := sort.SearchStrings(l.words, token)
	return i < len(l.words) && l.words[i] == token
}

// suggest returns the closest known word to token, or "" if nothing is close.
func (l *Lexicon) suggest(token string) string {
	if token == "" {
		return ""
	}

	// Abbreviations first ("liv" -> "living"), then typos.
	ranks := fuzzy.RankFindFold(token, l.words)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, w := range l.words {
		if d := fuzzy.LevenshteinDistance(token, w); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best
}
