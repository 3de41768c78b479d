package assign

import (
	"fmt"

	"github.com/metrograph/demandgen/internal/model"
)

// placeValues are the place tag values that qualify as neighborhoods.
var placeValues = map[string]bool{
	"neighbourhood": true,
	"quarter":       true,
	"suburb":        true,
	"hamlet":        true,
	"village":       true,
}

// TerminalSequence issues synthetic sequential ids for airport terminals.
// Terminals need ids distinct from their OSM id so several terminals at one
// airport stay distinguishable. Owned by the per-city processing context
// and reset at the start of each run; never shared across runs.
type TerminalSequence struct {
	next int64
}

// terminalIDBase keeps synthetic ids far away from real OSM place ids.
const terminalIDBase = int64(1) << 40

// NewTerminalSequence returns a fresh sequence for one city run.
func NewTerminalSequence() *TerminalSequence {
	return &TerminalSequence{next: terminalIDBase}
}

// Next returns the next synthetic terminal id.
func (s *TerminalSequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// ExtractNeighborhoods derives the neighborhood list from place features.
// Qualifying places keep their OSM id; airport terminals get synthetic ids
// from seq. Features without a usable location are skipped.
func ExtractNeighborhoods(feats []model.RawFeature, seq *TerminalSequence) []model.Neighborhood {
	var hoods []model.Neighborhood
	terminalCount := 0
	for _, f := range feats {
		center, ok := f.Location()
		if !ok {
			continue
		}

		if placeValues[f.Tags["place"]] {
			name := f.Tags["name"]
			if name == "" {
				name = fmt.Sprintf("place %d", f.ID)
			}
			hoods = append(hoods, model.Neighborhood{
				PlaceID: f.ID,
				Name:    name,
				Center:  center,
			})
			continue
		}

		if f.Tags["aeroway"] == "terminal" {
			terminalCount++
			name := f.Tags["name"]
			if name == "" {
				name = fmt.Sprintf("Terminal %d", terminalCount)
			}
			hoods = append(hoods, model.Neighborhood{
				PlaceID: seq.Next(),
				Name:    name,
				Center:  center,
			})
		}
	}
	return hoods
}
