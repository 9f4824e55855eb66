package landmark

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is one of the four fixed landmark categories the extraction
// prompt asks for.
type Kind string

const (
	Forest   Kind = "forest"
	Castle   Kind = "castle"
	Mountain Kind = "mountain"
	Lake     Kind = "lake"
)

func (k Kind) Valid() bool {
	switch k {
	case Forest, Castle, Mountain, Lake:
		return true
	}
	return false
}

// CoordMax bounds both axes so markers land inside the island circle.
const CoordMax = 80.0

// Landmark is a named, typed point of interest placed on the map,
// offset from the map center.
type Landmark struct {
	Name string  `json:"name"`
	Kind Kind    `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Validate checks a single landmark against the schema the prompt
// promises: non-empty name, known kind, coordinates within bounds.
func (l Landmark) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("landmark has no name")
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("landmark %q has unknown type %q", l.Name, l.Kind)
	}
	if l.X < -CoordMax || l.X > CoordMax || l.Y < -CoordMax || l.Y > CoordMax {
		return fmt.Errorf("landmark %q out of bounds (%.1f, %.1f)", l.Name, l.X, l.Y)
	}
	return nil
}

// ParseReply turns a raw model reply into a validated landmark set. The
// model is asked for bare JSON but routinely wraps it in a markdown
// code fence, so the fence is stripped before decoding. The reply is
// untrusted input: every entry must pass Validate or the whole reply is
// rejected.
func ParseReply(raw string) ([]Landmark, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var landmarks []Landmark
	if err := json.Unmarshal([]byte(text), &landmarks); err != nil {
		return nil, fmt.Errorf("parsing landmark JSON: %w", err)
	}
	for _, l := range landmarks {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}
	return landmarks, nil
}
