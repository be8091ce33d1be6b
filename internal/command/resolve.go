package command

import "sort"

// ResolveZones consumes the leading zone selection from tokens and returns the
// selected zones (sorted) together with the remaining tokens.
//
// A leading NegationKeyword selects every zone except the ones named after it.
// Two-word aliases are tried before single-word ones at every position, so
// "living room" is never truncated to "living". When nothing is selected the
// command applies to every zone.
func (l *Lexicon) ResolveZones(tokens []string) ([]ZoneID, []string, error) {
	selected := make(map[ZoneID]bool)
	inverted := false
	rest := tokens

	if len(rest) > 0 && rest[0] == NegationKeyword {
		inverted = true
		for _, z := range l.zones {
			selected[z] = true
		}
		rest = rest[1:]
	}

	for len(rest) > 0 {
		zone, n := l.leadingZone(rest)
		if n == 0 {
			break
		}
		if inverted {
			delete(selected, zone)
		} else {
			selected[zone] = true
		}
		rest = rest[n:]
	}

	if len(rest) == 0 {
		return nil, nil, malformed(tokens, "no command after zone selection")
	}

	if len(selected) == 0 {
		return l.Zones(), rest, nil
	}

	zones := make([]ZoneID, 0, len(selected))
	for z := range selected {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones, rest, nil
}

// leadingZone matches the longest alias at the start of tokens and reports how
// many tokens it spans (0 when there is no match).
func (l *Lexicon) leadingZone(tokens []string) (ZoneID, int) {
	if len(tokens) >= 2 {
		if z, ok := l.aliases[tokens[0]+" "+tokens[1]]; ok {
			return z, 2
		}
	}
	if z, ok := l.aliases[tokens[0]]; ok {
		return z, 1
	}
	return "", 0
}
