package player

import (
	"sort"
	"strings"
	"time"
)

// Observation is one source's partial view of a player. Adapters build
// it and hand it to the resolver; nothing mutates it afterwards.
type Observation struct {
	Source      string
	SourceURL   string
	ExternalIDs map[string]string
	FirstName   string
	LastName    string
	Bio         Bio
	ObservedAt  time.Time
}

// HasName reports whether both name parts are present.
func (o Observation) HasName() bool {
	return strings.TrimSpace(o.FirstName) != "" && strings.TrimSpace(o.LastName) != ""
}

// HasIdentity reports whether the observation can be matched to a player.
func (o Observation) HasIdentity() bool {
	return len(o.IdentityKeys()) > 0 || o.HasName()
}

// IdentityKey is one (system, id) pair.
type IdentityKey struct {
	System string
	ID     string
}

// IdentityKeys returns the non-empty external ids in lookup order: the
// observing source's own system first, the rest sorted by system.
func (o Observation) IdentityKeys() []IdentityKey {
	keys := make([]IdentityKey, 0, len(o.ExternalIDs))
	for sys, id := range o.ExternalIDs {
		id = strings.TrimSpace(id)
		if sys == "" || id == "" {
			continue
		}
		keys = append(keys, IdentityKey{System: sys, ID: id})
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keys[i].System == o.Source, keys[j].System == o.Source
		if ki != kj {
			return ki
		}
		return keys[i].System < keys[j].System
	})
	return keys
}
