package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/batch"
	"github.com/your-org/mediascribe/internal/domain"
	"github.com/your-org/mediascribe/internal/export"
	"github.com/your-org/mediascribe/internal/provider"
	"github.com/your-org/mediascribe/internal/sentiment"
	"github.com/your-org/mediascribe/internal/staging"
	"github.com/your-org/mediascribe/pkg/storage/objectstore"
)

// scriptedProvider answers by file content; unknown content is unsupported.
type scriptedProvider struct {
	answers map[string]string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Process(ctx context.Context, call provider.Call) (string, error) {
	data, err := os.ReadFile(call.Path)
	if err != nil {
		return "", err
	}
	text, ok := p.answers[string(data)]
	if !ok {
		return "", fmt.Errorf("scripted: %w", provider.ErrUnsupportedFormat)
	}
	return text, nil
}

// gatedProvider blocks every call until release is closed or ctx ends.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedProvider) Name() string { return "gated" }

func (p *gatedProvider) Process(ctx context.Context, call provider.Call) (string, error) {
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
		return "A good result.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

func (m *MockPublisher) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Save(ctx context.Context, runID string, op domain.Operation, results []domain.ProcessingResult) error {
	args := m.Called(ctx, runID, op, results)
	return args.Error(0)
}

type recordingStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *recordingStore) PutFile(ctx context.Context, key, path, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingStore) Close() error { return nil }

type testDeps struct {
	publisher Publisher
	history   HistoryStore
	store     objectstore.Client
}

func newTestService(t *testing.T, answers map[string]string, deps testDeps) *Service {
	t.Helper()
	return newServiceWithProvider(t, &scriptedProvider{answers: answers}, deps)
}

func newServiceWithProvider(t *testing.T, prov provider.Provider, deps testDeps) *Service {
	t.Helper()
	orch := batch.NewOrchestrator(batch.Params{
		Stager:     staging.NewStager(t.TempDir()),
		Provider:   prov,
		Classifier: sentiment.NewClassifier(),
		Workers:    2,
		Logger:     zap.NewNop(),
	})
	return NewService(Params{
		Orchestrator: orch,
		Registry:     batch.NewRegistry(10, 100),
		Exporter:     export.NewExporter(t.TempDir(), zap.NewNop()),
		Store:        deps.store,
		Publisher:    deps.publisher,
		History:      deps.history,
		Logger:       zap.NewNop(),
	})
}

var summaryRequest = domain.ProcessingRequest{Operation: domain.OperationTranslate, Format: domain.FormatSummary}

func TestServiceRunCompletesAndFansOut(t *testing.T) {
	pub := new(MockPublisher)
	hist := new(MockHistory)
	store := &recordingStore{}

	var published RunCompletedEvent
	pub.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
		return h["event_type"] == "run.completed"
	})).Run(func(args mock.Arguments) {
		assert.NoError(t, json.Unmarshal(args.Get(2).([]byte), &published))
	}).Return(nil)
	hist.On("Save", mock.Anything, mock.AnythingOfType("string"), domain.OperationTranslate, mock.MatchedBy(func(r []domain.ProcessingResult) bool {
		return len(r) == 1 && r[0].SourceName == "meeting.wav"
	})).Return(nil)

	svc := newTestService(t, map[string]string{"m": "This is a great summary."}, testDeps{publisher: pub, history: hist, store: store})

	run, err := svc.StartRun(StartOptions{
		Request: summaryRequest,
		Items: []domain.MediaItem{
			{Name: "meeting.wav", Data: []byte("m")},
			{Name: "noise.flac", Data: []byte("?")},
		},
		Individual: true,
		Rejected:   []domain.Notice{{SourceName: "notes.pdf", Kind: domain.NoticeRejectedUpload, Cause: "extension"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	svc.Wait()

	got, err := svc.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, []domain.ProcessingResult{{
		SourceName: "meeting.wav", Text: "This is a great summary.", FormatLabel: "Summary", Sentiment: domain.SentimentPositive,
	}}, got.Results)

	require.Len(t, got.Notices, 2)
	assert.Equal(t, domain.NoticeRejectedUpload, got.Notices[0].Kind)
	assert.Equal(t, "noise.flac", got.Notices[1].SourceName)
	assert.Equal(t, domain.NoticeUnsupportedFormat, got.Notices[1].Kind)

	assert.NotEmpty(t, got.Exports.Table)
	assert.NotEmpty(t, got.Exports.Text)
	assert.NotEmpty(t, got.Exports.Individual)
	assert.Len(t, store.keys, 3)
	for _, key := range store.keys {
		assert.Contains(t, key, run.ID)
	}

	pub.AssertExpectations(t)
	hist.AssertExpectations(t)
	assert.Equal(t, run.ID, published.ID)
	assert.Len(t, published.ObjectKeys, 3)
}

func TestServiceFanOutFailuresDoNotFailRun(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	hist := new(MockHistory)
	hist.On("Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	svc := newTestService(t, map[string]string{"a": "fine"}, testDeps{
		publisher: pub,
		history:   hist,
		store:     &recordingStore{err: errors.New("bucket missing")},
	})

	run, err := svc.StartRun(StartOptions{Request: summaryRequest, Items: []domain.MediaItem{{Name: "a.wav", Data: []byte("a")}}})
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Len(t, got.Results, 1)
	assert.Empty(t, got.Exports.Individual)
}

func TestServiceAllItemsFailedSkipsExports(t *testing.T) {
	svc := newTestService(t, nil, testDeps{})

	run, err := svc.StartRun(StartOptions{Request: summaryRequest, Items: []domain.MediaItem{{Name: "a.wav", Data: []byte("a")}}})
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.Run(run.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Results)
	assert.Len(t, got.Notices, 1)
	assert.Equal(t, domain.ExportPaths{}, got.Exports)
}

func TestServiceRejectsEmptyRun(t *testing.T) {
	svc := newTestService(t, nil, testDeps{})

	_, err := svc.StartRun(StartOptions{Request: summaryRequest})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.StartRun(StartOptions{Request: domain.ProcessingRequest{Operation: "dance", Format: domain.FormatSummary}, Items: []domain.MediaItem{{Name: "a.wav"}}})
	assert.Error(t, err)
}

func TestServiceCloseClosesPublisher(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Close", mock.Anything).Return(nil)

	svc := newTestService(t, nil, testDeps{publisher: pub, store: &recordingStore{}})
	require.NoError(t, svc.Close(context.Background()))
	pub.AssertExpectations(t)
}

func TestServiceCloseWaitsForRunningRun(t *testing.T) {
	prov := newGatedProvider()
	svc := newServiceWithProvider(t, prov, testDeps{})

	run, err := svc.StartRun(StartOptions{Request: summaryRequest, Items: []domain.MediaItem{{Name: "long.wav", Data: []byte("x")}}})
	require.NoError(t, err)
	<-prov.started

	closed := make(chan error, 1)
	go func() { closed <- svc.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned while a run was still in the provider")
	case <-time.After(100 * time.Millisecond):
	}

	close(prov.release)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the run finished")
	}

	got, err := svc.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "A good result.", got.Results[0].Text)
	assert.Empty(t, got.Notices)
}

func TestServiceCloseCancelsRunsAfterDeadline(t *testing.T) {
	prov := newGatedProvider()
	svc := newServiceWithProvider(t, prov, testDeps{})

	run, err := svc.StartRun(StartOptions{Request: summaryRequest, Items: []domain.MediaItem{{Name: "stuck.wav", Data: []byte("x")}}})
	require.NoError(t, err)
	<-prov.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	got, err := svc.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Empty(t, got.Results)
	require.Len(t, got.Notices, 1)
	assert.Equal(t, domain.NoticeProvider, got.Notices[0].Kind)
	assert.Equal(t, "stuck.wav", got.Notices[0].SourceName)
}

func TestEventsReportProgressPerItem(t *testing.T) {
	svc := newTestService(t, map[string]string{"a": "one", "b": "two"}, testDeps{})

	run, err := svc.StartRun(StartOptions{Request: summaryRequest, Items: []domain.MediaItem{
		{Name: "a.wav", Data: []byte("a")},
		{Name: "b.wav", Data: []byte("b")},
	}})
	require.NoError(t, err)
	svc.Wait()

	events, err := svc.Events(run.ID, 0)
	require.NoError(t, err)

	var fractions []float64
	for _, e := range events {
		if e.Type == batch.EventTypeProgress {
			fractions = append(fractions, e.Progress)
		}
	}
	assert.Equal(t, []float64{0.5, 1}, fractions)
	assert.Equal(t, domain.RunStatusCompleted, events[len(events)-1].Status)
}
