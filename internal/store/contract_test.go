package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("CreateAndFind", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		recorded := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

		p := &player.Player{
			FirstName:   "Scottie",
			LastName:    "Scheffler",
			ExternalIDs: map[string]string{player.SystemPGATour: "46046"},
			Bio: player.Bio{
				BirthDate:      player.Date(1996, time.June, 21),
				HighSchoolName: player.Str("Highland Park High School"),
				HometownCity:   player.Str("Dallas"),
				HometownState:  player.Str("TX"),
				CollegeName:    player.Str("University of Texas"),
			},
			BioSource: player.BioSource{Name: "wikipedia", URL: "https://en.wikipedia.org/wiki/Scottie_Scheffler", UpdatedAt: &recorded},
			Provenance: map[player.Field]player.Provenance{
				player.FieldHometownCity: {Source: "wikipedia", SourceURL: "https://en.wikipedia.org/wiki/Scottie_Scheffler", RecordedAt: recorded},
			},
		}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			return tx.Create(ctx, p)
		}))
		require.NotZero(t, p.ID)

		var byID, byName *player.Player
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			var err error
			if byID, err = tx.FindByExternalID(ctx, player.SystemPGATour, "46046"); err != nil {
				return err
			}
			byName, err = tx.FindByName(ctx, "Scottie", "Scheffler")
			return err
		}))
		require.NotNil(t, byID)
		require.NotNil(t, byName)
		assert.Equal(t, p.ID, byID.ID)
		assert.Equal(t, p.ID, byName.ID)
		assert.Equal(t, "Dallas", *byID.HometownCity)
		assert.Equal(t, "Highland Park High School", *byID.HighSchoolName)
		require.NotNil(t, byID.BirthDate)
		assert.Equal(t, "1996-06-21", byID.BirthDate.Format(time.DateOnly))
		assert.Nil(t, byID.HighSchoolGradYear)
		assert.Equal(t, "46046", byID.ExternalID(player.SystemPGATour))
		assert.Equal(t, "wikipedia", byID.BioSource.Name)
		assert.Equal(t, "wikipedia", byID.Provenance[player.FieldHometownCity].Source)
		assert.True(t, recorded.Equal(byID.Provenance[player.FieldHometownCity].RecordedAt))
	})

	t.Run("MissingReturnsNil", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			p, err := tx.FindByExternalID(ctx, player.SystemESPN, "nope")
			assert.Nil(t, p)
			if err != nil {
				return err
			}
			p, err = tx.FindByName(ctx, "No", "Body")
			assert.Nil(t, p)
			return err
		}))
		p, err := st.GetPlayer(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("UpdateAddsIdentifierAndFields", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		p := &player.Player{FirstName: "Jane", LastName: "Doe", ExternalIDs: map[string]string{"A": "7"}}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Create(ctx, p) }))

		p.ExternalIDs[player.SystemESPN] = "99"
		p.HometownCity = player.Str("Austin")
		p.HighSchoolGradYear = player.Int(2014)
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Update(ctx, p) }))

		got, err := st.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Austin", *got.HometownCity)
		assert.Equal(t, 2014, *got.HighSchoolGradYear)
		assert.Equal(t, map[string]string{"A": "7", player.SystemESPN: "99"}, got.ExternalIDs)
	})

	t.Run("IdentifierConflict", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		first := &player.Player{FirstName: "Jane", LastName: "Doe", ExternalIDs: map[string]string{"A": "7"}}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Create(ctx, first) }))

		second := &player.Player{FirstName: "Jane", LastName: "Doe", ExternalIDs: map[string]string{"A": "7"}}
		err := st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Create(ctx, second) })
		require.ErrorIs(t, err, player.ErrConflict)

		all, err := st.ListNeedingBio(ctx, player.ListFilter{All: true})
		require.NoError(t, err)
		assert.Len(t, all, 1, "failed unit of work must leave nothing behind")
	})

	t.Run("StaleUpdateConflicts", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		p := &player.Player{FirstName: "Jane", LastName: "Doe", ExternalIDs: map[string]string{"A": "7"}}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Create(ctx, p) }))

		stale, err := st.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		fresh, err := st.GetPlayer(ctx, p.ID)
		require.NoError(t, err)

		fresh.HometownCity = player.Str("Austin")
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Update(ctx, fresh) }))

		stale.HighSchoolName = player.Str("Westlake High School")
		err = st.InTx(ctx, func(ctx context.Context, tx player.Tx) error { return tx.Update(ctx, stale) })
		require.ErrorIs(t, err, player.ErrConflict)

		got, err := st.GetPlayer(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got.HometownCity)
		assert.Equal(t, "Austin", *got.HometownCity)
		assert.Nil(t, got.HighSchoolName)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		boom := assert.AnError
		err := st.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			if err := tx.Create(ctx, &player.Player{FirstName: "Ghost", LastName: "Player"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		all, err := st.ListNeedingBio(ctx, player.ListFilter{All: true})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ListNeedingBio", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		complete := &player.Player{FirstName: "A", LastName: "One", Bio: player.Bio{
			HighSchoolName: player.Str("X High School"), HometownCity: player.Str("Austin"),
		}}
		noSchool := &player.Player{FirstName: "B", LastName: "Two", Bio: player.Bio{HometownCity: player.Str("Tulsa")}}
		empty := &player.Player{FirstName: "C", LastName: "Three"}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			for _, p := range []*player.Player{complete, noSchool, empty} {
				if err := tx.Create(ctx, p); err != nil {
					return err
				}
			}
			return nil
		}))

		targets := []player.Field{player.FieldHighSchoolName, player.FieldHometownCity}
		got, err := st.ListNeedingBio(ctx, player.ListFilter{Fields: targets})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, noSchool.ID, got[0].ID)
		assert.Equal(t, empty.ID, got[1].ID)

		got, err = st.ListNeedingBio(ctx, player.ListFilter{Fields: targets, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = st.ListNeedingBio(ctx, player.ListFilter{All: true})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("Runs", func(t *testing.T) {
		st := open(t)
		ctx := context.Background()
		started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		pid := int64(12)
		r := &runlog.Record{
			ID:        "run-1",
			Kind:      "enrich",
			Scope:     runlog.Scope{LeagueCode: "PGA", PlayerID: &pid},
			Status:    runlog.StatusStarted,
			StartedAt: started,
		}
		require.NoError(t, st.InsertRun(ctx, r))

		done := started.Add(time.Minute)
		dur := 60.0
		r.Status = runlog.StatusPartial
		r.RecordsProcessed = 8
		r.Errors = []string{"HTTP 404: a", "HTTP 404: b"}
		r.CompletedAt = &done
		r.DurationSeconds = &dur
		require.NoError(t, st.FinishRun(ctx, r))

		got, err := st.GetRun(ctx, "run-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, runlog.StatusPartial, got.Status)
		assert.Equal(t, 8, got.RecordsProcessed)
		assert.Equal(t, []string{"HTTP 404: a", "HTTP 404: b"}, got.Errors)
		assert.Equal(t, "PGA", got.Scope.LeagueCode)
		require.NotNil(t, got.Scope.PlayerID)
		assert.Equal(t, int64(12), *got.Scope.PlayerID)
		require.NotNil(t, got.DurationSeconds)
		assert.InDelta(t, 60.0, *got.DurationSeconds, 0.001)

		require.NoError(t, st.InsertRun(ctx, &runlog.Record{ID: "run-2", Kind: "roster", Status: runlog.StatusStarted, StartedAt: started.Add(time.Hour)}))
		runs, err := st.ListRuns(ctx, runlog.Filter{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)

		runs, err = st.ListRuns(ctx, runlog.Filter{Kind: "enrich", Status: runlog.StatusPartial})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0].ID)

		missing, err := st.GetRun(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		assert.Error(t, st.FinishRun(ctx, &runlog.Record{ID: "nope", Status: runlog.StatusFailed}))
	})
}
