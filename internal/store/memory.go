package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// Memory is an in-process Store. Transactions work on a private copy of
// the players they touch. At commit they are checked again against
// identity constraints and row versions, so concurrent units of work
// behave like they would against the SQL stores.
type Memory struct {
	mu      sync.RWMutex
	players map[int64]*player.Player
	nextID  int64
	runs    map[string]runlog.Record
	now     func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		players: make(map[int64]*player.Player),
		runs:    make(map[string]runlog.Record),
		now:     time.Now,
	}
}

func (m *Memory) Ping(context.Context) error    { return nil }
func (m *Memory) Migrate(context.Context) error { return nil }
func (m *Memory) Close() error                  { return nil }

// Len returns the number of players.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// InTx runs fn against a private view and applies its writes on success.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx player.Tx) error) error {
	tx := &memTx{m: m, dirty: make(map[int64]*player.Player), read: make(map[int64]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range tx.dirty {
		read, updated := tx.read[id]
		if cur, ok := m.players[id]; ok && updated && cur.Version != read {
			return eris.Wrapf(player.ErrConflict, "store: player %d changed (version %d, read %d)", id, cur.Version, read)
		}
		if err := m.checkIdentity(p); err != nil {
			return err
		}
	}
	for id, p := range tx.dirty {
		m.players[id] = p.Clone()
	}
	return nil
}

// checkIdentity fails when another player already holds one of p's
// external ids. Callers hold m.mu.
func (m *Memory) checkIdentity(p *player.Player) error {
	for sys, id := range p.ExternalIDs {
		if id == "" {
			continue
		}
		for _, other := range m.players {
			if other.ID != p.ID && other.ExternalIDs[sys] == id {
				return eris.Wrapf(player.ErrConflict, "store: %s id %s already assigned", sys, id)
			}
		}
	}
	return nil
}

func (m *Memory) GetPlayer(_ context.Context, id int64) (*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[id].Clone(), nil
}

func (m *Memory) ListNeedingBio(_ context.Context, f player.ListFilter) ([]*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*player.Player
	for _, id := range ids {
		p := m.players[id]
		if !f.All && len(p.Missing(f.Fields)) == 0 {
			continue
		}
		out = append(out, p.Clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) InsertRun(_ context.Context, r *runlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; ok {
		return eris.Errorf("store: run %s already exists", r.ID)
	}
	m.runs[r.ID] = copyRun(*r)
	return nil
}

func (m *Memory) FinishRun(_ context.Context, r *runlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return eris.Errorf("store: run not found: %s", r.ID)
	}
	m.runs[r.ID] = copyRun(*r)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*runlog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	r = copyRun(r)
	return &r, nil
}

func (m *Memory) ListRuns(_ context.Context, f runlog.Filter) ([]runlog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []runlog.Record
	for _, r := range m.runs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if !f.Since.IsZero() && r.StartedAt.Before(f.Since) {
			continue
		}
		out = append(out, copyRun(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRun(r runlog.Record) runlog.Record {
	r.Errors = append([]string(nil), r.Errors...)
	return r
}

// memTx sees committed players plus its own uncommitted writes.
type memTx struct {
	m     *Memory
	dirty map[int64]*player.Player
	// read holds the version each updated player had when first written.
	read map[int64]int64
}

func (t *memTx) view() []*player.Player {
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	out := make([]*player.Player, 0, len(t.m.players)+len(t.dirty))
	for id, p := range t.m.players {
		if _, ok := t.dirty[id]; !ok {
			out = append(out, p)
		}
	}
	for _, p := range t.dirty {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *memTx) FindByExternalID(_ context.Context, system, id string) (*player.Player, error) {
	for _, p := range t.view() {
		if p.ExternalIDs[system] == id {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memTx) FindByName(_ context.Context, first, last string) (*player.Player, error) {
	for _, p := range t.view() {
		if p.FirstName == first && p.LastName == last {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memTx) Create(_ context.Context, p *player.Player) error {
	t.m.mu.Lock()
	t.m.nextID++
	p.ID = t.m.nextID
	t.m.mu.Unlock()
	return t.write(p, true)
}

func (t *memTx) Update(_ context.Context, p *player.Player) error {
	t.m.mu.RLock()
	_, committed := t.m.players[p.ID]
	t.m.mu.RUnlock()
	if _, pending := t.dirty[p.ID]; !committed && !pending {
		return eris.Errorf("store: player not found: %d", p.ID)
	}
	return t.write(p, false)
}

func (t *memTx) write(p *player.Player, created bool) error {
	for _, other := range t.view() {
		if other.ID == p.ID {
			continue
		}
		for sys, id := range p.ExternalIDs {
			if id != "" && other.ExternalIDs[sys] == id {
				return eris.Wrapf(player.ErrConflict, "store: %s id %s already assigned", sys, id)
			}
		}
	}
	now := t.m.now().UTC()
	if created {
		p.CreatedAt = now
		p.Version = 0
	} else {
		if _, ok := t.read[p.ID]; !ok {
			t.read[p.ID] = p.Version
		}
		p.Version = t.read[p.ID] + 1
	}
	p.UpdatedAt = now
	t.dirty[p.ID] = p.Clone()
	return nil
}
