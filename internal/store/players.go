package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/player"
)

// bioColumns follows player.AllFields order.
var bioColumns = func() []string {
	fields := player.AllFields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = string(f)
	}
	return cols
}()

var playerColumns = "id, first_name, last_name, " + strings.Join(bioColumns, ", ") +
	", bio_source_name, bio_source_url, bio_last_updated, created_at, updated_at, version"

func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// bioTargets returns pointers to every bio slot in column order.
func bioTargets(b *player.Bio) []any {
	return []any{
		&b.BirthDate, &b.Country,
		&b.HighSchoolName, &b.HighSchoolCity, &b.HighSchoolState, &b.HighSchoolGradYear,
		&b.HometownCity, &b.HometownState, &b.HometownCountry,
		&b.BirthplaceCity, &b.BirthplaceState, &b.BirthplaceCountry,
		&b.CollegeName, &b.CollegeGradYear, &b.WikipediaURL,
	}
}

// bioArgs returns the bio values in column order, nil for unset.
func bioArgs(b *player.Bio) []any {
	return []any{
		b.BirthDate, b.Country,
		b.HighSchoolName, b.HighSchoolCity, b.HighSchoolState, b.HighSchoolGradYear,
		b.HometownCity, b.HometownState, b.HometownCountry,
		b.BirthplaceCity, b.BirthplaceState, b.BirthplaceCountry,
		b.CollegeName, b.CollegeGradYear, b.WikipediaURL,
	}
}

func scanPlayer(r scannable) (*player.Player, error) {
	var p player.Player
	var srcName, srcURL *string
	dest := []any{&p.ID, &p.FirstName, &p.LastName}
	dest = append(dest, bioTargets(&p.Bio)...)
	dest = append(dest, &srcName, &srcURL, &p.BioSource.UpdatedAt, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}
	if srcName != nil {
		p.BioSource.Name = *srcName
	}
	if srcURL != nil {
		p.BioSource.URL = *srcURL
	}
	if p.BirthDate != nil {
		d := p.BirthDate.UTC()
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		p.BirthDate = &d
	}
	return &p, nil
}

// loadPlayer runs a single-row player query and attaches identifiers and
// provenance. It returns (nil, nil) when no row matches.
func loadPlayer(ctx context.Context, c conn, op, q string, args ...any) (*player.Player, error) {
	p, err := scanPlayer(c.queryRow(ctx, q, args...))
	if err != nil {
		if c.noRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: %s", op)
	}
	if err := loadExtras(ctx, c, p); err != nil {
		return nil, err
	}
	return p, nil
}

func loadExtras(ctx context.Context, c conn, p *player.Player) error {
	p.ExternalIDs = make(map[string]string)
	err := c.query(ctx,
		`SELECT system, identifier FROM player_identifiers WHERE player_id = $1`,
		[]any{p.ID},
		func(r scannable) error {
			var sys, id string
			if err := r.Scan(&sys, &id); err != nil {
				return err
			}
			p.ExternalIDs[sys] = id
			return nil
		})
	if err != nil {
		return eris.Wrapf(err, "store: load identifiers for player %d", p.ID)
	}

	p.Provenance = make(map[player.Field]player.Provenance)
	err = c.query(ctx,
		`SELECT field, source, source_url, recorded_at FROM player_field_provenance WHERE player_id = $1`,
		[]any{p.ID},
		func(r scannable) error {
			var field string
			var url *string
			var pv player.Provenance
			if err := r.Scan(&field, &pv.Source, &url, &pv.RecordedAt); err != nil {
				return err
			}
			if url != nil {
				pv.SourceURL = *url
			}
			pv.RecordedAt = pv.RecordedAt.UTC()
			p.Provenance[player.Field(field)] = pv
			return nil
		})
	return eris.Wrapf(err, "store: load provenance for player %d", p.ID)
}

func getPlayer(ctx context.Context, c conn, id int64) (*player.Player, error) {
	return loadPlayer(ctx, c, fmt.Sprintf("get player %d", id),
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
}

func findByExternalID(ctx context.Context, c conn, system, id string) (*player.Player, error) {
	return loadPlayer(ctx, c, fmt.Sprintf("find player by %s=%s", system, id),
		`SELECT `+prefixed("p", playerColumns)+` FROM players p
		 JOIN player_identifiers i ON i.player_id = p.id
		 WHERE i.system = $1 AND i.identifier = $2`,
		system, id)
}

func findByName(ctx context.Context, c conn, first, last string) (*player.Player, error) {
	return loadPlayer(ctx, c, fmt.Sprintf("find player %s %s", first, last),
		`SELECT `+playerColumns+` FROM players
		 WHERE first_name = $1 AND last_name = $2
		 ORDER BY id LIMIT 1`,
		first, last)
}

func createPlayer(ctx context.Context, c conn, p *player.Player, now time.Time) error {
	cols := "first_name, last_name, " + strings.Join(bioColumns, ", ") +
		", bio_source_name, bio_source_url, bio_last_updated, created_at, updated_at"
	args := []any{p.FirstName, p.LastName}
	args = append(args, bioArgs(&p.Bio)...)
	args = append(args, nullable(p.BioSource.Name), nullable(p.BioSource.URL), p.BioSource.UpdatedAt, now, now)

	err := c.queryRow(ctx,
		`INSERT INTO players (`+cols+`) VALUES (`+placeholders(1, len(args))+`) RETURNING id`,
		args...,
	).Scan(&p.ID)
	if err != nil {
		return eris.Wrapf(err, "store: insert player %s", p.FullName())
	}
	p.CreatedAt, p.UpdatedAt, p.Version = now, now, 0

	if err := saveIdentifiers(ctx, c, p); err != nil {
		return err
	}
	return saveProvenance(ctx, c, p)
}

func updatePlayer(ctx context.Context, c conn, p *player.Player, now time.Time) error {
	sets := []string{"first_name = $1", "last_name = $2"}
	args := []any{p.FirstName, p.LastName}
	for _, col := range bioColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(sets)+1))
	}
	args = append(args, bioArgs(&p.Bio)...)
	for _, col := range []string{"bio_source_name", "bio_source_url", "bio_last_updated", "updated_at"} {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(sets)+1))
	}
	args = append(args, nullable(p.BioSource.Name), nullable(p.BioSource.URL), p.BioSource.UpdatedAt, now)
	sets = append(sets, "version = version + 1")
	args = append(args, p.ID, p.Version)

	n, err := c.exec(ctx,
		`UPDATE players SET `+strings.Join(sets, ", ")+
			fmt.Sprintf(` WHERE id = $%d AND version = $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return eris.Wrapf(err, "store: update player %d", p.ID)
	}
	if n == 0 {
		return staleOrMissing(ctx, c, p)
	}
	p.UpdatedAt = now
	p.Version++

	if err := saveIdentifiers(ctx, c, p); err != nil {
		return err
	}
	return saveProvenance(ctx, c, p)
}

// staleOrMissing explains an update that matched no row.
func staleOrMissing(ctx context.Context, c conn, p *player.Player) error {
	var current int64
	err := c.queryRow(ctx, `SELECT version FROM players WHERE id = $1`, p.ID).Scan(&current)
	switch {
	case err == nil:
		return eris.Wrapf(player.ErrConflict, "store: player %d changed (version %d, read %d)", p.ID, current, p.Version)
	case c.noRows(err):
		return eris.Errorf("store: player not found: %d", p.ID)
	default:
		return eris.Wrapf(err, "store: update player %d", p.ID)
	}
}

func saveIdentifiers(ctx context.Context, c conn, p *player.Player) error {
	systems := make([]string, 0, len(p.ExternalIDs))
	for sys := range p.ExternalIDs {
		systems = append(systems, sys)
	}
	sort.Strings(systems)

	for _, sys := range systems {
		id := p.ExternalIDs[sys]
		if id == "" {
			continue
		}
		_, err := c.exec(ctx,
			`INSERT INTO player_identifiers (player_id, system, identifier) VALUES ($1, $2, $3)
			 ON CONFLICT (player_id, system) DO NOTHING`,
			p.ID, sys, id)
		if err != nil {
			if c.unique(err) {
				return eris.Wrapf(player.ErrConflict, "store: %s id %s already assigned", sys, id)
			}
			return eris.Wrapf(err, "store: save identifier %s for player %d", sys, p.ID)
		}
	}
	return nil
}

func saveProvenance(ctx context.Context, c conn, p *player.Player) error {
	fields := make([]string, 0, len(p.Provenance))
	for f := range p.Provenance {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	for _, f := range fields {
		pv := p.Provenance[player.Field(f)]
		_, err := c.exec(ctx,
			`INSERT INTO player_field_provenance (player_id, field, source, source_url, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (player_id, field) DO UPDATE
			 SET source = excluded.source, source_url = excluded.source_url, recorded_at = excluded.recorded_at`,
			p.ID, f, pv.Source, nullable(pv.SourceURL), pv.RecordedAt)
		if err != nil {
			return eris.Wrapf(err, "store: save provenance %s for player %d", f, p.ID)
		}
	}
	return nil
}

func listNeedingBio(ctx context.Context, c conn, f player.ListFilter) ([]*player.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players`
	if !f.All {
		if len(f.Fields) == 0 {
			return nil, nil
		}
		var conds []string
		for _, field := range f.Fields {
			if _, err := player.ParseField(string(field)); err != nil {
				return nil, eris.Wrap(err, "store: list needing bio")
			}
			conds = append(conds, string(field)+" IS NULL")
		}
		q += ` WHERE ` + strings.Join(conds, " OR ")
	}
	q += ` ORDER BY id`
	var args []any
	if f.Limit > 0 {
		q += ` LIMIT $1`
		args = append(args, f.Limit)
	}

	var players []*player.Player
	err := c.query(ctx, q, args, func(r scannable) error {
		p, err := scanPlayer(r)
		if err != nil {
			return err
		}
		players = append(players, p)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: list needing bio")
	}
	for _, p := range players {
		if err := loadExtras(ctx, c, p); err != nil {
			return nil, err
		}
	}
	return players, nil
}

// playerTx adapts a conn to player.Tx.
type playerTx struct {
	c   conn
	now func() time.Time
}

func (t *playerTx) FindByExternalID(ctx context.Context, system, id string) (*player.Player, error) {
	return findByExternalID(ctx, t.c, system, id)
}

func (t *playerTx) FindByName(ctx context.Context, first, last string) (*player.Player, error) {
	return findByName(ctx, t.c, first, last)
}

func (t *playerTx) Create(ctx context.Context, p *player.Player) error {
	return createPlayer(ctx, t.c, p, t.now().UTC())
}

func (t *playerTx) Update(ctx context.Context, p *player.Player) error {
	return updatePlayer(ctx, t.c, p, t.now().UTC())
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
