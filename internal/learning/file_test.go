package learning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/codehint/internal/suggest"
)

func sampleRecord() Record {
	p := NewProfile(DefaultProfileName)
	p.TypeWeights[suggest.TypeSecurity] = 1.7
	p.PriorityWeights[suggest.PriorityCritical] = 2.4
	p.ConfidenceThreshold = 0.58
	p.DisabledTypes[suggest.TypeTodo] = true
	p.TotalSuggestions = 12
	p.AppliedSuggestions = 7
	p.DismissedSuggestions = 5
	p.UpdatedAt = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return p.Record()
}

func TestFileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "profiles"))

	want := sampleRecord()
	require.NoError(t, repo.SaveProfile(ctx, want))

	got, err := repo.LoadProfile(ctx, DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.TypeWeights, got.TypeWeights)
	assert.Equal(t, want.PriorityWeights, got.PriorityWeights)
	assert.Equal(t, want.ConfidenceThreshold, got.ConfidenceThreshold)
	assert.Equal(t, want.DisabledTypes, got.DisabledTypes)
	assert.Equal(t, want.TotalSuggestions, got.TotalSuggestions)
	assert.Equal(t, want.AppliedSuggestions, got.AppliedSuggestions)
	assert.Equal(t, want.DismissedSuggestions, got.DismissedSuggestions)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	p, err := ProfileFromRecord(got)
	require.NoError(t, err)
	assert.True(t, p.IsDisabled(suggest.TypeTodo))
	assert.Equal(t, 1.7, p.TypeWeight(suggest.TypeSecurity))
}

func TestFileRepository_Feedback(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(t.TempDir())

	events := []Feedback{
		{SuggestionID: "a", Type: suggest.TypeSecurity, Priority: suggest.PriorityHigh, Applied: true, OriginalConfidence: 0.9},
		{SuggestionID: "b", Type: suggest.TypeTodo, Priority: suggest.PriorityLow, Reason: "dismissed", OriginalConfidence: 0.4},
	}
	require.NoError(t, repo.AppendFeedback(ctx, "team", events[:1]))
	require.NoError(t, repo.AppendFeedback(ctx, "team", events[1:]))

	got, err := repo.ListFeedback(ctx, "team")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SuggestionID)
	assert.Equal(t, suggest.PriorityHigh, got[0].Priority)
	assert.Equal(t, "dismissed", got[1].Reason)

	// Saving the profile keeps the feedback already in the file.
	rec := NewProfile("team").Record()
	require.NoError(t, repo.SaveProfile(ctx, rec))
	got, err = repo.ListFeedback(ctx, "team")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(t.TempDir())

	_, err := repo.LoadProfile(ctx, "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	events, err := repo.ListFeedback(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.NoError(t, repo.DeleteProfile(ctx, "nobody"))
}

func TestFileRepository_RejectsUnsafeNames(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	_, err := repo.LoadProfile(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrInvalidProfileName)
}

func TestFileRepository_CorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("profile: [not: a: record"), 0o644))
	repo := NewFileRepository(dir)

	_, err := repo.LoadProfile(ctx, DefaultProfileName)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	// The engine still starts with defaults.
	e := NewEngine(WithRepository(repo))
	require.NoError(t, e.Load(ctx))
	assert.Equal(t, DefaultConfidenceThreshold, e.Active().ConfidenceThreshold)

	// Saving replaces the corrupt file.
	require.NoError(t, e.Save(ctx))
	_, err = repo.LoadProfile(ctx, DefaultProfileName)
	assert.NoError(t, err)
}

func TestFileRepository_MissingThresholdUsesDefault(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := "profile:\n  name: default\n  type_weights:\n    SECURITY: 1.4\n  total_suggestions: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(doc), 0o644))
	repo := NewFileRepository(dir)

	r, err := repo.LoadProfile(ctx, DefaultProfileName)
	require.NoError(t, err)
	assert.Nil(t, r.ConfidenceThreshold)
	assert.Equal(t, DefaultConfidenceThreshold, r.Threshold())

	e := NewEngine(WithRepository(repo))
	require.NoError(t, e.Load(ctx))
	assert.Equal(t, DefaultConfidenceThreshold, e.Active().ConfidenceThreshold)
	assert.Equal(t, 1.4, e.Active().TypeWeight(suggest.TypeSecurity))

	// An explicit zero is kept.
	zero := 0.0
	p, err := ProfileFromRecord(Record{Name: DefaultProfileName, ConfidenceThreshold: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.ConfidenceThreshold)
}

func TestFileRepository_EngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(t.TempDir())

	e := NewEngine(WithRepository(repo))
	require.NoError(t, e.RecordFeedback(sug("x", suggest.TypeComplexity, suggest.PriorityHigh, 0.9), true, "applied"))
	require.NoError(t, e.SetConfidenceThreshold(0.65))
	require.NoError(t, e.Save(ctx))

	loaded := NewEngine(WithRepository(repo))
	require.NoError(t, loaded.Load(ctx))
	assert.InDelta(t, 1.1, loaded.Active().TypeWeight(suggest.TypeComplexity), 1e-9)
	assert.Equal(t, 0.65, loaded.Active().ConfidenceThreshold)
	assert.True(t, loaded.IsJudged("x"))
}
