package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/mediascribe/internal/domain"
)

var testRequest = domain.ProcessingRequest{Operation: domain.OperationTranscribe, Format: domain.FormatSummary}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(10, 100)

	run, err := r.Create(testRequest, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusIdle, run.Status)
	assert.NotEmpty(t, run.ID)

	require.NoError(t, r.Start(run.ID))
	r.Progress(run.ID, Progress{Source: "a.wav", Completed: 1, Total: 2, Fraction: 0.5})
	r.Progress(run.ID, Progress{Source: "b.wav", Completed: 2, Total: 2, Fraction: 1})

	outcome := Outcome{
		Results: []domain.ProcessingResult{{SourceName: "a.wav", Text: "hi", FormatLabel: "Summary", Sentiment: domain.SentimentNeutral}},
		Notices: []domain.Notice{{SourceName: "b.wav", Kind: domain.NoticeProvider, Cause: "boom"}},
	}
	require.NoError(t, r.Complete(run.ID, outcome, domain.ExportPaths{Table: "Results_01_02_24.xlsx"}))

	got, err := r.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, outcome.Results, got.Results)
	assert.Equal(t, "Results_01_02_24.xlsx", got.Exports.Table)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))

	events, err := r.Events(run.ID, 0)
	require.NoError(t, err)
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventTypeStatus, EventTypeProgress, EventTypeProgress,
		EventTypeNotice, EventTypeResult, EventTypeStatus,
	}, types)
}

func TestRegistryRejectsInvalidTransition(t *testing.T) {
	r := NewRegistry(10, 100)
	run, err := r.Create(testRequest, 1)
	require.NoError(t, err)

	assert.Error(t, r.Complete(run.ID, Outcome{}, domain.ExportPaths{}))

	require.NoError(t, r.Start(run.ID))
	assert.Error(t, r.Start(run.ID))

	require.NoError(t, r.Complete(run.ID, Outcome{}, domain.ExportPaths{}))
	assert.Error(t, r.Start(run.ID))
}

func TestRegistryUnknownRun(t *testing.T) {
	r := NewRegistry(10, 100)

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = r.Events("missing", 0)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, r.Start("missing"), ErrRunNotFound)
}

func TestRegistryEvictsOldestCompleted(t *testing.T) {
	r := NewRegistry(2, 10)

	first, err := r.Create(testRequest, 1)
	require.NoError(t, err)
	second, err := r.Create(testRequest, 1)
	require.NoError(t, err)

	_, err = r.Create(testRequest, 1)
	assert.ErrorIs(t, err, ErrRegistryFull)

	require.NoError(t, r.Start(first.ID))
	require.NoError(t, r.Complete(first.ID, Outcome{}, domain.ExportPaths{}))

	third, err := r.Create(testRequest, 1)
	require.NoError(t, err)

	_, err = r.Get(first.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = r.Get(second.ID)
	assert.NoError(t, err)
	_, err = r.Get(third.ID)
	assert.NoError(t, err)
}
