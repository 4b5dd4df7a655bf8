package waterfall

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benashkar/golf-tracker/internal/metrics"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resilience"
)

// mockSource implements Source for testing.
type mockSource struct {
	name  string
	doc   *Document
	err   error
	calls atomic.Int32
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Lookup(_ context.Context, _ Subject, _ []player.Field) (*Document, error) {
	m.calls.Add(1)
	return m.doc, m.err
}

func testConfig(names ...string) *Config {
	cfg := &Config{Targets: DefaultTargets}
	for _, n := range names {
		cfg.Sources = append(cfg.Sources, SourceConfig{Name: n})
	}
	return cfg
}

func testSubject() Subject {
	return Subject{
		PlayerID:    42,
		FirstName:   "Jane",
		LastName:    "Doe",
		ExternalIDs: map[string]string{player.SystemPGATour: "7"},
	}
}

var needs = []player.Field{player.FieldHighSchoolName, player.FieldHometownCity}

func TestExecutor_StopsAtFirstSourceWithNeededField(t *testing.T) {
	s1 := &mockSource{name: "one"}
	s2 := &mockSource{name: "two", doc: &Document{
		URL:  "https://two.test/jane",
		Text: []string{"Doe attended Lincoln High School before turning pro."},
	}}
	s3 := &mockSource{name: "three", doc: &Document{Text: []string{"She grew up in Austin, Texas."}}}

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	exec := NewExecutor(testConfig("one", "two", "three"), NewRegistry(s1, s2, s3), WithNow(func() time.Time { return now }))

	hit, err := exec.Enrich(context.Background(), testSubject(), needs)
	require.NoError(t, err)
	require.NotNil(t, hit)

	assert.Equal(t, "two", hit.Source)
	assert.Equal(t, "https://two.test/jane", hit.URL)
	assert.Equal(t, []player.Field{player.FieldHighSchoolName}, hit.Found)
	assert.Equal(t, "Lincoln High School", *hit.Observation.Bio.HighSchoolName)
	assert.Nil(t, hit.Observation.Bio.HometownCity)

	obs := hit.Observation
	assert.Equal(t, "two", obs.Source)
	assert.Equal(t, "https://two.test/jane", obs.SourceURL)
	assert.Equal(t, "7", obs.ExternalIDs[player.SystemPGATour])
	assert.Equal(t, "Jane", obs.FirstName)
	assert.Equal(t, now, obs.ObservedAt)

	assert.Equal(t, int32(1), s1.calls.Load())
	assert.Equal(t, int32(1), s2.calls.Load())
	assert.Equal(t, int32(0), s3.calls.Load(), "later sources must not be consulted after a hit")

	st := exec.Stats()
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 1, st.Enriched)
	assert.Equal(t, 0, st.NotFound)
	assert.Equal(t, map[string]int{"two": 1}, st.SourcesUsed)
}

func TestExecutor_FailuresAreNoInformation(t *testing.T) {
	failing := &mockSource{name: "failing", err: eris.New("HTTP 503")}
	empty := &mockSource{name: "empty", doc: &Document{Text: []string{"Four birdies on the back nine."}}}
	m := metrics.New(prometheus.NewRegistry())

	exec := NewExecutor(testConfig("failing", "empty"), NewRegistry(failing, empty), WithMetrics(m))

	hit, err := exec.Enrich(context.Background(), testSubject(), needs)
	require.NoError(t, err)
	assert.Nil(t, hit)

	st := exec.Stats()
	assert.Equal(t, 1, st.NotFound)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 0, st.Enriched)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceLookups.WithLabelValues("failing", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceLookups.WithLabelValues("empty", "miss")))
}

func TestExecutor_StructuredFieldsWinOverText(t *testing.T) {
	src := &mockSource{name: "wiki", doc: &Document{
		Bio:  player.Bio{CollegeName: player.Str("Stanford University")},
		Text: []string{"He played college golf at Duke University.", "He grew up in Dallas, Texas."},
	}}
	exec := NewExecutor(testConfig("wiki"), NewRegistry(src))

	hit, err := exec.Enrich(context.Background(), testSubject(), []player.Field{player.FieldHometownCity})
	require.NoError(t, err)
	require.NotNil(t, hit)

	bio := hit.Observation.Bio
	assert.Equal(t, "Stanford University", *bio.CollegeName)
	assert.Equal(t, "Dallas", *bio.HometownCity)
	assert.Equal(t, "Texas", *bio.HometownState)
}

func TestExecutor_SkipsDisabledAndUnregisteredSources(t *testing.T) {
	off := false
	disabled := &mockSource{name: "disabled", doc: &Document{Text: []string{"She grew up in Austin, Texas."}}}
	live := &mockSource{name: "live", doc: &Document{Text: []string{"She grew up in Dallas, Texas."}}}

	cfg := &Config{Sources: []SourceConfig{
		{Name: "disabled", Enabled: &off},
		{Name: "missing"},
		{Name: "live"},
	}}
	exec := NewExecutor(cfg, NewRegistry(disabled, live))

	hit, err := exec.Enrich(context.Background(), testSubject(), needs)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "live", hit.Source)
	assert.Equal(t, int32(0), disabled.calls.Load())
}

func TestExecutor_OpenCircuitSkipsSource(t *testing.T) {
	flaky := &mockSource{name: "flaky", err: eris.New("connection reset")}
	backup := &mockSource{name: "backup"}
	cfg := testConfig("flaky", "backup")
	cfg.Breaker = BreakerConfig{FailureThreshold: 1, ResetTimeoutSecs: 3600}
	m := metrics.New(prometheus.NewRegistry())

	exec := NewExecutor(cfg, NewRegistry(flaky, backup), WithMetrics(m))

	for range 3 {
		hit, err := exec.Enrich(context.Background(), testSubject(), needs)
		require.NoError(t, err)
		assert.Nil(t, hit)
	}

	assert.Equal(t, int32(1), flaky.calls.Load())
	assert.Equal(t, int32(3), backup.calls.Load())
	assert.Equal(t, resilience.CircuitOpen, exec.Breakers().Get("flaky").State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SourceLookups.WithLabelValues("flaky", "open")))
	assert.Equal(t, 3, exec.Stats().NotFound)
}

func TestExecutor_NothingNeeded(t *testing.T) {
	src := &mockSource{name: "one"}
	exec := NewExecutor(testConfig("one"), NewRegistry(src))

	hit, err := exec.Enrich(context.Background(), testSubject(), nil)
	require.NoError(t, err)
	assert.Nil(t, hit)
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Equal(t, 1, exec.Stats().Skipped)
}

func TestExecutor_CancelledContext(t *testing.T) {
	src := &mockSource{name: "one"}
	exec := NewExecutor(testConfig("one"), NewRegistry(src))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Enrich(ctx, testSubject(), needs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestExecutor_SourceFunc(t *testing.T) {
	var seen Subject
	fn := SourceFunc{SourceName: "fn", Fn: func(_ context.Context, s Subject, _ []player.Field) (*Document, error) {
		seen = s
		return &Document{Bio: player.Bio{HometownCity: player.Str("Austin")}}, nil
	}}
	exec := NewExecutor(testConfig("fn"), NewRegistry(fn))

	hit, err := exec.Enrich(context.Background(), testSubject(), needs)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Jane Doe", seen.FullName())
	assert.Equal(t, []player.Field{player.FieldHometownCity}, hit.Found)
}

func TestSubjectFromPlayer(t *testing.T) {
	p := &player.Player{
		ID: 9, FirstName: "Scottie", LastName: "Scheffler",
		ExternalIDs: map[string]string{player.SystemPGATour: "46046"},
		Bio:         player.Bio{CollegeName: player.Str("University of Texas")},
	}
	s := SubjectFromPlayer(p)
	p.ExternalIDs[player.SystemPGATour] = "changed"

	assert.Equal(t, int64(9), s.PlayerID)
	assert.Equal(t, "46046", s.ExternalIDs[player.SystemPGATour])
	assert.Equal(t, "University of Texas", *s.Known.CollegeName)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&mockSource{name: "b"}, &mockSource{name: "a"})
	assert.Equal(t, []string{"a", "b"}, r.List())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("c"))

	r.Register(&mockSource{name: "c"})
	assert.NotNil(t, r.Get("c"))
}
