package ingest

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func rosterItem(n int) Item {
	return Static(fmt.Sprintf("player-%d", n), player.Observation{
		Source:      player.SystemPGATour,
		ExternalIDs: map[string]string{player.SystemPGATour: fmt.Sprint(1000 + n)},
		FirstName:   "Player",
		LastName:    fmt.Sprintf("Number%d", n),
	})
}

func notFoundItem(n int) Item {
	return Item{
		Label: fmt.Sprintf("player-%d", n),
		Load: func(context.Context) (player.Observation, error) {
			return player.Observation{}, &fetcher.Failure{
				Kind:   fetcher.FailureHTTP,
				Status: http.StatusNotFound,
				URL:    fmt.Sprintf("https://example.test/players/%d", n),
			}
		},
	}
}

func TestRun_PartialWhenSomeItemsFail(t *testing.T) {
	mem := store.NewMemory()
	tracker := runlog.NewTracker(mem)

	var items []Item
	for n := 1; n <= 10; n++ {
		if n == 3 || n == 7 {
			items = append(items, notFoundItem(n))
			continue
		}
		items = append(items, rosterItem(n))
	}

	sum, err := tracker.Do(context.Background(), "roster", runlog.Scope{LeagueCode: "PGA"},
		func(ctx context.Context, run *runlog.Run) error {
			return Run(ctx, run, resolve.NewResolver(mem), items, resolve.Options{})
		})
	require.NoError(t, err)

	assert.Equal(t, runlog.StatusPartial, sum.Status)
	assert.Equal(t, 8, sum.RecordsProcessed)
	assert.Equal(t, 8, sum.RecordsCreated)
	assert.Equal(t, 0, sum.RecordsUpdated)
	require.Len(t, sum.Errors, 2)
	assert.Contains(t, sum.Errors[0], "player-3")
	assert.Contains(t, sum.Errors[0], "HTTP 404")
	assert.Contains(t, sum.Errors[1], "player-7")
	assert.Equal(t, 8, mem.Len())

	rec, err := mem.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusPartial, rec.Status)
}

func TestRun_SecondPassUpdates(t *testing.T) {
	mem := store.NewMemory()
	r := resolve.NewResolver(mem)
	tracker := runlog.NewTracker(mem)
	ctx := context.Background()

	obs := player.Observation{
		Source:      player.SystemPGATour,
		ExternalIDs: map[string]string{player.SystemPGATour: "46046"},
		FirstName:   "Scottie",
		LastName:    "Scheffler",
	}
	job := func(items ...Item) runlog.Summary {
		sum, err := tracker.Do(ctx, "roster", runlog.Scope{}, func(ctx context.Context, run *runlog.Run) error {
			return Run(ctx, run, r, items, resolve.Options{})
		})
		require.NoError(t, err)
		return sum
	}

	sum := job(Static("scheffler", obs))
	assert.Equal(t, 1, sum.RecordsCreated)

	obs.Bio.Country = player.Str("USA")
	sum = job(Static("scheffler", obs))
	assert.Equal(t, runlog.StatusSuccess, sum.Status)
	assert.Equal(t, 0, sum.RecordsCreated)
	assert.Equal(t, 1, sum.RecordsUpdated)

	sum = job(Static("scheffler", obs))
	assert.Equal(t, 1, sum.RecordsProcessed)
	assert.Equal(t, 0, sum.RecordsUpdated)
}

type failingResolver struct{}

func (failingResolver) ResolveAndMerge(context.Context, player.Observation, resolve.Options) (resolve.Result, error) {
	return resolve.Result{}, eris.New("resolve: store unavailable")
}

func TestRun_AllFailIsFailed(t *testing.T) {
	tracker := runlog.NewTracker(store.NewMemory())

	sum, err := tracker.Do(context.Background(), "roster", runlog.Scope{}, func(ctx context.Context, run *runlog.Run) error {
		return Run(ctx, run, failingResolver{}, []Item{rosterItem(1), rosterItem(2)}, resolve.Options{})
	})
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusFailed, sum.Status)
	assert.Equal(t, 0, sum.RecordsProcessed)
	assert.Len(t, sum.Errors, 2)
}

func TestRun_StopsOnCancel(t *testing.T) {
	mem := store.NewMemory()
	tracker := runlog.NewTracker(mem)
	ctx, cancel := context.WithCancel(context.Background())

	cancelling := Item{
		Label: "cancel",
		Load: func(context.Context) (player.Observation, error) {
			cancel()
			return rosterItem(1).Load(ctx)
		},
	}

	sum, err := tracker.Do(ctx, "roster", runlog.Scope{}, func(ctx context.Context, run *runlog.Run) error {
		return Run(ctx, run, resolve.NewResolver(mem), []Item{cancelling, rosterItem(2)}, resolve.Options{})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, runlog.StatusFailed, sum.Status)
	assert.Equal(t, 1, mem.Len())
}
