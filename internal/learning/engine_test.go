package learning

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

func sug(id string, t suggest.SuggestionType, p suggest.Priority, conf float64) suggest.Suggestion {
	return suggest.Suggestion{ID: id, Type: t, Priority: p, Confidence: conf}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, DefaultProfileName, e.ActiveProfile())

	p := e.Active()
	assert.Equal(t, DefaultConfidenceThreshold, p.ConfidenceThreshold)
	for _, typ := range suggest.AllTypes {
		assert.Equal(t, 1.0, p.TypeWeight(typ), typ)
	}
	for _, pr := range suggest.AllPriorities {
		assert.Equal(t, 1.0, p.PriorityWeight(pr), pr.String())
	}
	assert.Empty(t, p.DisabledTypes)
}

func TestRecordFeedback_AppliedAndDismissedMoveWeights(t *testing.T) {
	e := NewEngine()
	before := e.Active()

	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("sec-%d", i), suggest.TypeSecurity, suggest.PriorityCritical, 0.9), true, "applied"))
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("doc-%d", i), suggest.TypeDocumentation, suggest.PriorityLow, 0.5), false, "dismissed"))
	}

	after := e.Active()
	sec := after.TypeWeight(suggest.TypeSecurity)
	doc := after.TypeWeight(suggest.TypeDocumentation)

	assert.Greater(t, sec, before.TypeWeight(suggest.TypeSecurity))
	assert.Less(t, doc, before.TypeWeight(suggest.TypeDocumentation))
	assert.InDelta(t, 1.5, sec, 1e-9)
	assert.InDelta(t, 0.75, doc, 1e-9)
	assert.InDelta(t, 1.5, after.PriorityWeight(suggest.PriorityCritical), 1e-9)
	assert.InDelta(t, 0.75, after.PriorityWeight(suggest.PriorityLow), 1e-9)

	assert.Equal(t, 10, after.TotalSuggestions)
	assert.Equal(t, 5, after.AppliedSuggestions)
	assert.Equal(t, 5, after.DismissedSuggestions)
	assert.Len(t, e.Feedback(), 10)
}

func TestRecordFeedback_WeightsStayClamped(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 100; i++ {
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("a-%d", i), suggest.TypeSecurity, suggest.PriorityCritical, 0.9), true, ""))
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("d-%d", i), suggest.TypeTodo, suggest.PriorityLow, 0.9), false, "dismissed"))

		p := e.Active()
		for _, typ := range suggest.AllTypes {
			w := p.TypeWeight(typ)
			assert.True(t, w >= MinTypeWeight && w <= MaxTypeWeight, "type weight %s=%v", typ, w)
		}
		for _, pr := range suggest.AllPriorities {
			w := p.PriorityWeight(pr)
			assert.True(t, w >= MinPriorityWeight && w <= MaxPriorityWeight, "priority weight %s=%v", pr, w)
		}
		assert.True(t, p.ConfidenceThreshold >= MinAdaptiveThreshold && p.ConfidenceThreshold <= MaxAdaptiveThreshold)
	}

	p := e.Active()
	assert.Equal(t, MaxTypeWeight, p.TypeWeight(suggest.TypeSecurity))
	assert.Equal(t, MinTypeWeight, p.TypeWeight(suggest.TypeTodo))
	assert.Equal(t, MaxPriorityWeight, p.PriorityWeight(suggest.PriorityCritical))
	assert.Equal(t, MinPriorityWeight, p.PriorityWeight(suggest.PriorityLow))
}

func TestRecordFeedback_ThresholdHillClimb(t *testing.T) {
	e := NewEngine()

	// Dismissing high-confidence items tightens the gate.
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeTodo, suggest.PriorityLow, 0.8), false, "dismissed"))
	assert.InDelta(t, 0.52, e.Active().ConfidenceThreshold, 1e-9)

	// Dismissing below the threshold leaves it alone.
	require.NoError(t, e.RecordFeedback(sug("b", suggest.TypeTodo, suggest.PriorityLow, 0.3), false, "dismissed"))
	assert.InDelta(t, 0.52, e.Active().ConfidenceThreshold, 1e-9)

	// Accepting low-confidence items loosens it.
	require.NoError(t, e.RecordFeedback(sug("c", suggest.TypeTodo, suggest.PriorityLow, 0.3), true, "applied"))
	assert.InDelta(t, 0.50, e.Active().ConfidenceThreshold, 1e-9)

	for i := 0; i < 50; i++ {
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("hi-%d", i), suggest.TypeTodo, suggest.PriorityLow, 1.0), false, "dismissed"))
	}
	assert.InDelta(t, MaxAdaptiveThreshold, e.Active().ConfidenceThreshold, 1e-9)

	for i := 0; i < 50; i++ {
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("lo-%d", i), suggest.TypeTodo, suggest.PriorityLow, 0.0), true, "applied"))
	}
	assert.InDelta(t, MinAdaptiveThreshold, e.Active().ConfidenceThreshold, 1e-9)
}

func TestRecordFeedback_AlreadyJudged(t *testing.T) {
	e := NewEngine()
	s := sug("once", suggest.TypeRefactor, suggest.PriorityMedium, 0.7)

	require.NoError(t, e.RecordFeedback(s, true, "applied"))
	assert.True(t, e.IsJudged("once"))

	err := e.RecordFeedback(s, false, "dismissed")
	assert.ErrorIs(t, err, ErrAlreadyJudged)
	assert.Equal(t, 1, e.Active().TotalSuggestions)
}

func TestRecordFeedback_RejectsUnknownTypeAndPriority(t *testing.T) {
	e := NewEngine()
	assert.ErrorIs(t, e.RecordFeedback(sug("x", "NOPE", suggest.PriorityLow, 0.5), true, ""), suggest.ErrUnknownType)
	assert.ErrorIs(t, e.RecordFeedback(sug("y", suggest.TypeTodo, 0, 0.5), true, ""), suggest.ErrUnknownPriority)
	assert.Equal(t, 0, e.Active().TotalSuggestions)
}

func TestRecordFeedback_ConcurrentEventsAreNotLost(t *testing.T) {
	e := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = e.RecordFeedback(sug(fmt.Sprintf("todo-%d", i), suggest.TypeTodo, suggest.PriorityMedium, 0.7), true, "")
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = e.RecordFeedback(sug(fmt.Sprintf("fixme-%d", i), suggest.TypeFixme, suggest.PriorityMedium, 0.7), true, "")
		}(i)
	}
	wg.Wait()

	p := e.Active()
	assert.Equal(t, 10, p.TotalSuggestions)
	assert.InDelta(t, 1.5, p.TypeWeight(suggest.TypeTodo), 1e-9)
	assert.InDelta(t, 1.5, p.TypeWeight(suggest.TypeFixme), 1e-9)
	assert.InDelta(t, 2.0, p.PriorityWeight(suggest.PriorityMedium), 1e-9)
	assert.Len(t, e.Feedback(), 10)
}

// --- Optimize ---

func TestOptimize_FiltersAndRanks(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.DisableType(suggest.TypeTodo))

	raw := []suggest.Suggestion{
		sug("low-conf", suggest.TypeDocumentation, suggest.PriorityLow, 0.4),
		sug("refactor", suggest.TypeRefactor, suggest.PriorityMedium, 0.7),
		sug("todo", suggest.TypeTodo, suggest.PriorityMedium, 0.9),
		sug("security", suggest.TypeSecurity, suggest.PriorityCritical, 0.9),
	}

	got := e.Optimize(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "security", got[0].ID)
	assert.Equal(t, "refactor", got[1].ID)
	assert.InDelta(t, 0.9, got[0].AdjustedScore, 1e-9)
	assert.InDelta(t, 0.7, got[1].AdjustedScore, 1e-9)

	for _, s := range raw {
		assert.Zero(t, s.AdjustedScore, "input must not be modified")
	}

	// Learning that REFACTOR suggestions are useful moves them to the top.
	for i := 0; i < 3; i++ {
		require.NoError(t, e.RecordFeedback(sug(fmt.Sprintf("r-%d", i), suggest.TypeRefactor, suggest.PriorityMedium, 0.7), true, "applied"))
	}
	got = e.Optimize(raw)
	require.Len(t, got, 2)
	assert.Equal(t, "refactor", got[0].ID)
}

func TestOptimize_NeverReturnsFilteredSuggestions(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.DisableType(suggest.TypeSecurity))
	require.NoError(t, e.SetConfidenceThreshold(0.6))

	var raw []suggest.Suggestion
	for i, typ := range suggest.AllTypes {
		for j, pr := range suggest.AllPriorities {
			raw = append(raw, sug(fmt.Sprintf("%d-%d", i, j), typ, pr, float64(i*len(suggest.AllPriorities)+j)/40))
		}
	}

	for _, s := range e.Optimize(raw) {
		assert.NotEqual(t, suggest.TypeSecurity, s.Type)
		assert.GreaterOrEqual(t, s.Confidence, 0.6)
		assert.False(t, math.IsNaN(s.AdjustedScore))
		assert.GreaterOrEqual(t, s.AdjustedScore, 0.0)
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RecordFeedback(sug("seed", suggest.TypeSecurity, suggest.PriorityHigh, 0.8), true, ""))

	raw := []suggest.Suggestion{
		sug("a", suggest.TypeRefactor, suggest.PriorityMedium, 0.7),
		sug("b", suggest.TypeSecurity, suggest.PriorityHigh, 0.6),
		sug("c", suggest.TypeRefactor, suggest.PriorityMedium, 0.7),
		sug("d", suggest.TypeCodeSmell, suggest.PriorityLow, 0.8),
	}
	first := e.Optimize(raw)
	second := e.Optimize(raw)
	assert.Equal(t, first, second)
}

func TestOptimize_MonotonicInConfidence(t *testing.T) {
	e := NewEngine()
	lo := e.Optimize([]suggest.Suggestion{sug("lo", suggest.TypeRefactor, suggest.PriorityHigh, 0.6)})
	hi := e.Optimize([]suggest.Suggestion{sug("hi", suggest.TypeRefactor, suggest.PriorityHigh, 0.8)})
	require.Len(t, lo, 1)
	require.Len(t, hi, 1)
	assert.GreaterOrEqual(t, hi[0].AdjustedScore, lo[0].AdjustedScore)
}

// --- Profile management ---

func TestSetConfidenceThreshold(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.SetConfidenceThreshold(0.95))
	assert.Equal(t, 0.95, e.Active().ConfidenceThreshold)

	require.NoError(t, e.SetConfidenceThreshold(-1))
	assert.Equal(t, 0.0, e.Active().ConfidenceThreshold)

	require.NoError(t, e.SetConfidenceThreshold(7))
	assert.Equal(t, 1.0, e.Active().ConfidenceThreshold)

	assert.ErrorIs(t, e.SetConfidenceThreshold(math.NaN()), ErrInvalidThreshold)
}

func TestDisableEnableType(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.DisableType(suggest.TypeDeprecated))
	assert.Equal(t, []suggest.SuggestionType{suggest.TypeDeprecated}, e.Stats().DisabledTypes)

	require.NoError(t, e.EnableType(suggest.TypeDeprecated))
	assert.Empty(t, e.Stats().DisabledTypes)

	assert.ErrorIs(t, e.DisableType("BOGUS"), suggest.ErrUnknownType)
}

func TestReset(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""))
	require.NoError(t, e.DisableType(suggest.TypeTodo))

	e.Reset()

	stats := e.Stats()
	assert.Equal(t, 0, stats.TotalSuggestions)
	assert.Equal(t, 0, stats.FeedbackEvents)
	assert.Empty(t, stats.DisabledTypes)
	assert.Equal(t, 1.0, stats.TypeWeights[suggest.TypeSecurity])
	assert.False(t, e.IsJudged("a"))
}

func TestStats(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""))
	require.NoError(t, e.RecordFeedback(sug("b", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""))
	require.NoError(t, e.RecordFeedback(sug("c", suggest.TypeTodo, suggest.PriorityLow, 0.4), false, "dismissed"))
	require.NoError(t, e.RecordFeedback(sug("d", suggest.TypeTodo, suggest.PriorityLow, 0.4), false, "dismissed"))

	s := e.Stats()
	assert.Equal(t, DefaultProfileName, s.Profile)
	assert.Equal(t, 4, s.TotalSuggestions)
	assert.Equal(t, 2, s.AppliedSuggestions)
	assert.Equal(t, 2, s.DismissedSuggestions)
	assert.InDelta(t, 0.5, s.AcceptanceRate, 1e-9)
	assert.Len(t, s.TypeWeights, len(suggest.AllTypes))
	assert.Contains(t, s.PriorityWeights, "HIGH")
}

func TestUseProfile_IsolatesProfiles(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""))

	require.NoError(t, e.UseProfile("strict"))
	assert.Equal(t, "strict", e.ActiveProfile())
	assert.Equal(t, 1.0, e.Active().TypeWeight(suggest.TypeSecurity))

	def, ok := e.Profile(DefaultProfileName)
	require.True(t, ok)
	assert.InDelta(t, 1.1, def.TypeWeight(suggest.TypeSecurity), 1e-9)

	assert.ErrorIs(t, e.UseProfile("../etc"), ErrInvalidProfileName)
	_, ok = e.Profile("missing")
	assert.False(t, ok)
}

// --- Persistence ---

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	clock := func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	e := NewEngine(WithRepository(repo), WithClock(clock))
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, "applied"))
	require.NoError(t, e.RecordFeedback(sug("b", suggest.TypeTodo, suggest.PriorityLow, 0.6), false, "dismissed"))
	require.NoError(t, e.DisableType(suggest.TypeDeprecated))
	require.NoError(t, e.Save(ctx))
	// A second save must not duplicate feedback.
	require.NoError(t, e.Save(ctx))

	loaded := NewEngine(WithRepository(repo))
	require.NoError(t, loaded.Load(ctx))

	assert.Equal(t, e.Active().Record(), loaded.Active().Record())
	assert.Len(t, loaded.Feedback(), 2)
	assert.True(t, loaded.IsJudged("a"))
	assert.ErrorIs(t, loaded.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""), ErrAlreadyJudged)
}

func TestLoad_MissingProfileUsesDefaults(t *testing.T) {
	e := NewEngine(WithRepository(NewMemoryRepository()))
	require.NoError(t, e.Load(context.Background()))
	assert.Equal(t, NewProfile(DefaultProfileName).Record(), e.Active().Record())
}

func TestLoad_CorruptProfileFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.SaveProfile(ctx, Record{
		Name:        DefaultProfileName,
		TypeWeights: map[string]float64{"SECURITY": math.NaN()},
	}))

	core, logs := observer.New(zap.WarnLevel)
	e := NewEngine(WithRepository(repo), WithLogger(zap.New(core)))
	require.NoError(t, e.Load(ctx))

	assert.Equal(t, 1.0, e.Active().TypeWeight(suggest.TypeSecurity))
	assert.Equal(t, 1, logs.FilterMessage("discarding corrupt profile").Len())
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(WithRepository(failingRepo{}))
	assert.ErrorIs(t, e.Load(ctx), context.Canceled)
}

func TestReset_SaveDropsPersistedFeedback(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	e := NewEngine(WithRepository(repo))
	require.NoError(t, e.RecordFeedback(sug("a", suggest.TypeSecurity, suggest.PriorityHigh, 0.9), true, ""))
	require.NoError(t, e.Save(ctx))

	e.Reset()
	require.NoError(t, e.Save(ctx))

	events, err := repo.ListFeedback(ctx, DefaultProfileName)
	require.NoError(t, err)
	assert.Empty(t, events)

	rec, err := repo.LoadProfile(ctx, DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TotalSuggestions)
}

type failingRepo struct{}

func (failingRepo) LoadProfile(ctx context.Context, _ string) (Record, error) {
	return Record{}, ctx.Err()
}
func (failingRepo) SaveProfile(context.Context, Record) error { return nil }
func (failingRepo) AppendFeedback(context.Context, string, []Feedback) error {
	return nil
}
func (failingRepo) ListFeedback(ctx context.Context, _ string) ([]Feedback, error) {
	return nil, ctx.Err()
}
func (failingRepo) DeleteProfile(context.Context, string) error { return nil }
