package waterfall

import (
	"context"
	"strings"

	"github.com/benashkar/golf-tracker/internal/player"
)

// Subject is the player a waterfall run is looking for.
type Subject struct {
	PlayerID    int64
	FirstName   string
	LastName    string
	ExternalIDs map[string]string
	Known       player.Bio
}

// SubjectFromPlayer builds a Subject from a stored player.
func SubjectFromPlayer(p *player.Player) Subject {
	ids := make(map[string]string, len(p.ExternalIDs))
	for k, v := range p.ExternalIDs {
		ids[k] = v
	}
	return Subject{
		PlayerID:    p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		ExternalIDs: ids,
		Known:       p.Bio.Clone(),
	}
}

// FullName returns "First Last".
func (s Subject) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Document is what a source found: free text for the extractor and any
// fields the source could read from structured markup.
type Document struct {
	URL  string
	Text []string
	Bio  player.Bio
}

// Source is one step of the waterfall. A nil document with a nil error
// means the source had nothing on the subject.
type Source interface {
	Name() string
	Lookup(ctx context.Context, subject Subject, needs []player.Field) (*Document, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, subject Subject, needs []player.Field) (*Document, error)
}

// Name implements Source.
func (f SourceFunc) Name() string { return f.SourceName }

// Lookup implements Source.
func (f SourceFunc) Lookup(ctx context.Context, subject Subject, needs []player.Field) (*Document, error) {
	return f.Fn(ctx, subject, needs)
}

// Hit is the first source result that covered a needed field.
type Hit struct {
	Source      string
	URL         string
	Found       []player.Field
	Observation player.Observation
}
