// Package command turns short text commands into a zone selection and a
// validated command shape.
package command

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ZoneID is the canonical name of a lighting zone (the hub group name).
type ZoneID string

// Kind is the kind of a single command part.
type Kind int

const (
	KindSwitch Kind = iota + 1
	KindColor
	KindBrightness
)

func (k Kind) String() string {
	switch k {
	case KindSwitch:
		return "switch"
	case KindColor:
		return "color"
	case KindBrightness:
		return "brightness"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reserved words
const (
	NegationKeyword = "except"
	SwitchOn        = "on"
	SwitchOff       = "off"
)

// MaxBrightness is the largest accepted brightness percentage.
const MaxBrightness = 100

// Color is a named palette entry.
type Color struct {
	Name string
	Hex  string // six lowercase hex digits, no leading '#'
}

// DefaultZoneAliases maps input spellings to the hub group names.
var DefaultZoneAliases = map[string]string{
	"living room": "Living Room",
	"living":      "Living Room",
	"bedroom":     "Bedroom",
	"bathroom":    "Bathroom",
	"office":      "Office",
}

// DefaultPalette holds the colours white spectrum bulbs can actually display.
var DefaultPalette = map[string]string{
	"warm":   "efd275",
	"orange": "efd275",
	"red":    "efd275",

	"normal": "f1e0b5",
	"yellow": "f1e0b5",

	"cool":  "f5faf6",
	"cold":  "f5faf6",
	"white": "f5faf6",
	"blue":  "f5faf6",
}

// Lexicon holds the immutable vocabulary used to parse commands.
// It is safe for concurrent use.
type Lexicon struct {
	aliases map[string]ZoneID
	zones   []ZoneID
	palette map[string]Color
	words   []string
}

// DefaultLexicon returns the lexicon built from DefaultZoneAliases and DefaultPalette.
func DefaultLexicon() *Lexicon {
	l, err := NewLexicon(DefaultZoneAliases, DefaultPalette)
	if err != nil {
		panic(err)
	}
	return l
}

// NewLexicon builds a lexicon from alias -> zone and colour name -> hex tables.
// Aliases and colour names are case-insensitive; aliases may span at most two words.
func NewLexicon(aliases map[string]string, palette map[string]string) (*Lexicon, error) {
	if len(aliases) == 0 {
		return nil, fmt.Errorf("no zone aliases configured")
	}

	l := &Lexicon{
		aliases: make(map[string]ZoneID, len(aliases)),
		palette: make(map[string]Color, len(palette)),
	}

	seen := make(map[ZoneID]bool)
	for alias, zone := range aliases {
		key := strings.ToLower(strings.TrimSpace(alias))
		if key == "" || zone == "" {
			return nil, fmt.Errorf("invalid zone alias %q -> %q", alias, zone)
		}
		words := strings.Split(key, " ")
		if len(words) > 2 {
			return nil, fmt.Errorf("zone alias %q: at most two words are supported", alias)
		}
		for _, w := range words {
			if w == "" {
				return nil, fmt.Errorf("zone alias %q: words must be separated by a single space", alias)
			}
			if w == NegationKeyword {
				return nil, fmt.Errorf("zone alias %q: %q is a reserved word", alias, NegationKeyword)
			}
		}
		l.aliases[key] = ZoneID(zone)
		if !seen[ZoneID(zone)] {
			seen[ZoneID(zone)] = true
			l.zones = append(l.zones, ZoneID(zone))
		}
	}
	sort.Slice(l.zones, func(i, j int) bool { return l.zones[i] < l.zones[j] })

	for name, code := range palette {
		key := strings.ToLower(strings.TrimSpace(name))
		code = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(code), "#"))
		if key == "" || strings.Contains(key, " ") {
			return nil, fmt.Errorf("invalid colour name %q", name)
		}
		if b, err := hex.DecodeString(code); err != nil || len(b) != 3 {
			return nil, fmt.Errorf("colour %q: invalid hex code %q", name, code)
		}
		l.palette[key] = Color{Name: key, Hex: code}
	}

	for alias := range l.aliases {
		l.words = append(l.words, strings.Split(alias, " ")...)
	}
	for name := range l.palette {
		l.words = append(l.words, name)
	}
	l.words = append(l.words, SwitchOn, SwitchOff, NegationKeyword)
	sort.Strings(l.words)

	return l, nil
}

// Zones returns every canonical zone id, sorted.
func (l *Lexicon) Zones() []ZoneID {
	zones := make([]ZoneID, len(l.zones))
	copy(zones, l.zones)
	return zones
}

// Zone looks up a (possibly two-word) alias.
func (l *Lexicon) Zone(alias string) (ZoneID, bool) {
	id, ok := l.aliases[strings.ToLower(alias)]
	return id, ok
}

// Color looks up a palette entry by name.
func (l *Lexicon) Color(name string) (Color, bool) {
	c, ok := l.palette[strings.ToLower(name)]
	return c, ok
}

// Valid reports whether token is an acceptable literal for kind.
func (l *Lexicon) Valid(kind Kind, token string) bool {
	token = strings.ToLower(token)
	switch kind {
	case KindSwitch:
		return token == SwitchOn || token == SwitchOff
	case KindColor:
		_, ok := l.palette[token]
		return ok
	case KindBrightness:
		_, ok := ParseBrightness(token)
		return ok
	}
	return false
}

// ParseBrightness parses a canonical decimal percentage in [0, MaxBrightness].
// "50" is accepted, "050", "+50" and "50.0" are not.
func ParseBrightness(token string) (int, bool) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 || n > MaxBrightness {
		return 0, false
	}
	if strconv.Itoa(n) != token {
		return 0, false
	}
	return n, true
}
