// Package player holds the canonical player record, the partial
// observations sources produce about a player, and the merge policy that
// folds one into the other.
package player

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Identity systems. Each source that knows a player by its own id
// contributes one entry to Player.ExternalIDs.
const (
	SystemPGATour   = "pga_tour"
	SystemKornFerry = "korn_ferry"
	SystemChampions = "champions"
	SystemESPN      = "espn"
	SystemLPGA      = "lpga"
)

// ErrConflict marks a write that lost a race: an identity key taken by
// another player, or a row changed since it was read.
var ErrConflict = eris.New("player: identity key conflict")

// Player is the canonical record for one golfer.
type Player struct {
	ID          int64
	FirstName   string
	LastName    string
	ExternalIDs map[string]string
	Bio
	BioSource  BioSource
	Provenance map[Field]Provenance
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Version counts committed writes. An update applies only while the
	// stored version still equals the one that was read.
	Version int64
}

// BioSource records the source of the most recent bio write.
type BioSource struct {
	Name      string
	URL       string
	UpdatedAt *time.Time
}

// Provenance records which source last supplied a field and when.
type Provenance struct {
	Source     string    `json:"source"`
	SourceURL  string    `json:"source_url,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FullName returns "First Last".
func (p *Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ExternalID returns the player's id in system, or "".
func (p *Player) ExternalID(system string) string {
	if p.ExternalIDs == nil {
		return ""
	}
	return p.ExternalIDs[system]
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	c.Bio = p.Bio.Clone()
	if p.BioSource.UpdatedAt != nil {
		t := *p.BioSource.UpdatedAt
		c.BioSource.UpdatedAt = &t
	}
	if p.ExternalIDs != nil {
		c.ExternalIDs = make(map[string]string, len(p.ExternalIDs))
		for k, v := range p.ExternalIDs {
			c.ExternalIDs[k] = v
		}
	}
	if p.Provenance != nil {
		c.Provenance = make(map[Field]Provenance, len(p.Provenance))
		for k, v := range p.Provenance {
			c.Provenance[k] = v
		}
	}
	return &c
}

// SplitName splits a display name into first and last name on the first
// space.
func SplitName(full string) (first, last string) {
	full = strings.Join(strings.Fields(full), " ")
	first, last, _ = strings.Cut(full, " ")
	return first, last
}
