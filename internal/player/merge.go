package player

import (
	"strings"
	"time"
)

// MergeOptions controls Merge.
type MergeOptions struct {
	// Force lets observed bio values replace populated ones. Identity
	// keys and names are never replaced.
	Force bool
	// Now stamps provenance. Defaults to time.Now.
	Now func() time.Time
}

// Merge folds obs into p and returns the fields written. Bio fields are
// only filled when empty unless opts.Force is set. External ids and
// names are always fill-if-empty. Merging the same observation twice
// writes nothing the second time.
func Merge(p *Player, obs Observation, opts MergeOptions) []Field {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	for _, k := range obs.IdentityKeys() {
		if p.ExternalIDs == nil {
			p.ExternalIDs = make(map[string]string)
		}
		if p.ExternalIDs[k.System] == "" {
			p.ExternalIDs[k.System] = k.ID
		}
	}
	if p.FirstName == "" {
		p.FirstName = strings.TrimSpace(obs.FirstName)
	}
	if p.LastName == "" {
		p.LastName = strings.TrimSpace(obs.LastName)
	}

	var written []Field
	for _, bd := range bindings {
		if bd.merge(&p.Bio, &obs.Bio, opts.Force) {
			written = append(written, bd.field)
		}
	}
	if len(written) == 0 {
		return nil
	}

	ts := now().UTC()
	if p.Provenance == nil {
		p.Provenance = make(map[Field]Provenance, len(written))
	}
	for _, f := range written {
		p.Provenance[f] = Provenance{Source: obs.Source, SourceURL: obs.SourceURL, RecordedAt: ts}
	}
	p.BioSource = BioSource{Name: obs.Source, URL: obs.SourceURL, UpdatedAt: &ts}
	return written
}

// FromObservation seeds a new player with every value in obs.
func FromObservation(obs Observation, now time.Time) *Player {
	p := &Player{}
	Merge(p, obs, MergeOptions{Now: func() time.Time { return now }})
	return p
}

// IdentityChanged reports whether before and after differ in names or
// external ids.
func IdentityChanged(before, after *Player) bool {
	if before.FirstName != after.FirstName || before.LastName != after.LastName {
		return true
	}
	if len(before.ExternalIDs) != len(after.ExternalIDs) {
		return true
	}
	for k, v := range after.ExternalIDs {
		if before.ExternalIDs[k] != v {
			return true
		}
	}
	return false
}
