package player

import "context"

// Store is the canonical player store. Lookups return (nil, nil) when
// nothing matches.
type Store interface {
	// InTx runs fn as one unit of work. A non-nil error from fn rolls
	// the unit back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetPlayer(ctx context.Context, id int64) (*Player, error)
	ListNeedingBio(ctx context.Context, f ListFilter) ([]*Player, error)
}

// Tx is the view of the store inside a unit of work.
type Tx interface {
	FindByExternalID(ctx context.Context, system, id string) (*Player, error)
	// FindByName matches the exact first and last name. When several
	// players share the name the oldest wins.
	FindByName(ctx context.Context, first, last string) (*Player, error)
	// Create assigns p.ID. It returns an error wrapping ErrConflict when
	// an identity key is already taken.
	Create(ctx context.Context, p *Player) error
	Update(ctx context.Context, p *Player) error
}

// ListFilter selects players for enrichment.
type ListFilter struct {
	// Fields lists the bio fields of interest; a player qualifies when
	// any of them is empty.
	Fields []Field
	// All selects every player regardless of Fields.
	All   bool
	Limit int
}
