package command

// Part is one command token paired with the kind it was matched as.
type Part struct {
	Kind    Kind
	Literal string
}

// Resolved is a fully parsed command: the zones to act on and the matched shape.
type Resolved struct {
	Zones  []ZoneID
	Tokens []string
	Shape  Shape
}

// Parts pairs each token with the kind of its position in the shape.
func (r Resolved) Parts() []Part {
	parts := make([]Part, len(r.Shape))
	for i, kind := range r.Shape {
		parts[i] = Part{Kind: kind, Literal: r.Tokens[i]}
	}
	return parts
}

// Parse runs the full pipeline: tokenize, resolve zones, match a shape.
// Every failure wraps ErrMalformedCommand.
func (l *Lexicon) Parse(raw string) (Resolved, error) {
	tokens, err := Tokenize(raw)
	if err != nil {
		return Resolved{}, err
	}

	zones, rest, err := l.ResolveZones(tokens)
	if err != nil {
		return Resolved{}, err
	}

	shape, err := l.Match(rest)
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{Zones: zones, Tokens: rest, Shape: shape}, nil
}
