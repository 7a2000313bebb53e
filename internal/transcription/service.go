// Package transcription exposes batch runs over HTTP and fans completed
// runs out to storage, messaging and history.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/batch"
	"github.com/your-org/mediascribe/internal/domain"
	"github.com/your-org/mediascribe/internal/export"
	"github.com/your-org/mediascribe/pkg/metrics"
	"github.com/your-org/mediascribe/pkg/storage/objectstore"
)

// ErrNoItems is returned when a run is requested without any media.
var ErrNoItems = errors.New("no media items to process")

// Publisher sends run events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// HistoryStore persists completed results.
type HistoryStore interface {
	Save(ctx context.Context, runID string, op domain.Operation, results []domain.ProcessingResult) error
}

// Service wires the orchestrator, exports and fan-out targets together.
type Service struct {
	orchestrator *batch.Orchestrator
	registry     *batch.Registry
	exporter     *export.Exporter
	store        objectstore.Client
	publisher    Publisher
	history      HistoryStore
	logger       *zap.Logger
	baseCtx      context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// Params configures a Service. Store, Publisher and History are optional.
type Params struct {
	Orchestrator *batch.Orchestrator
	Registry     *batch.Registry
	Exporter     *export.Exporter
	Store        objectstore.Client
	Publisher    Publisher
	History      HistoryStore
	Logger       *zap.Logger
	// BaseContext is the parent of background runs. Close cancels the
	// derived context only when its drain deadline expires, so this should
	// not be a signal context.
	BaseContext context.Context
}

// StartOptions describe one requested run.
type StartOptions struct {
	Request    domain.ProcessingRequest
	Items      []domain.MediaItem
	Individual bool
	// Rejected are uploads dropped before the run; they are reported as notices.
	Rejected []domain.Notice
}

// NewService constructs a transcription Service.
func NewService(p Params) *Service {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.BaseContext == nil {
		p.BaseContext = context.Background()
	}
	baseCtx, cancel := context.WithCancel(p.BaseContext)
	return &Service{
		orchestrator: p.Orchestrator,
		registry:     p.Registry,
		exporter:     p.Exporter,
		store:        p.Store,
		publisher:    p.Publisher,
		history:      p.History,
		logger:       p.Logger,
		baseCtx:      baseCtx,
		cancel:       cancel,
	}
}

// StartRun registers a run and processes it in the background.
func (s *Service) StartRun(opts StartOptions) (domain.Run, error) {
	if err := opts.Request.Validate(); err != nil {
		return domain.Run{}, err
	}
	if len(opts.Items) == 0 {
		return domain.Run{}, ErrNoItems
	}

	run, err := s.registry.Create(opts.Request, len(opts.Items))
	if err != nil {
		return domain.Run{}, err
	}
	if err := s.registry.Start(run.ID); err != nil {
		return domain.Run{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, run.ID, opts)
	}()

	return s.registry.Get(run.ID)
}

// Run returns a snapshot of one run.
func (s *Service) Run(id string) (domain.Run, error) {
	return s.registry.Get(id)
}

// Events returns events of a run after since.
func (s *Service) Events(id string, since int64) ([]batch.Event, error) {
	return s.registry.Events(id, since)
}

func (s *Service) execute(ctx context.Context, runID string, opts StartOptions) {
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("run started",
		zap.Int("items", len(opts.Items)),
		zap.String("operation", string(opts.Request.Operation)),
		zap.String("format", string(opts.Request.Format)),
	)

	outcome := s.orchestrator.Run(ctx, opts.Request, opts.Items, func(p batch.Progress) {
		s.registry.Progress(runID, p)
	})
	outcome.Notices = append(append([]domain.Notice(nil), opts.Rejected...), outcome.Notices...)

	exports := s.export(logger, outcome.Results, opts.Individual)
	if err := s.registry.Complete(runID, outcome, exports); err != nil {
		logger.Error("complete run failed", zap.Error(err))
		return
	}
	metrics.RunsCompleted.Inc()

	run, err := s.registry.Get(runID)
	if err != nil {
		logger.Warn("run evicted before fan-out", zap.Error(err))
		return
	}
	logger.Info("run completed",
		zap.Int("results", len(run.Results)),
		zap.Int("notices", len(run.Notices)),
	)

	s.fanOut(ctx, logger, run)
}

// export writes the table and text report, plus the zip when requested.
// Export failures are logged and leave the corresponding path empty.
func (s *Service) export(logger *zap.Logger, results []domain.ProcessingResult, individual bool) domain.ExportPaths {
	var paths domain.ExportPaths
	if len(results) == 0 {
		return paths
	}

	var err error
	if paths.Table, err = s.exporter.ExportTable(results); err != nil {
		metrics.ExportFailures.WithLabelValues("table").Inc()
		logger.Error("table export failed", zap.Error(err))
	}
	if paths.Text, err = s.exporter.ExportText(results); err != nil {
		metrics.ExportFailures.WithLabelValues("text").Inc()
		logger.Error("text export failed", zap.Error(err))
	}
	if individual {
		if paths.Individual, err = s.exporter.ExportIndividual(results); err != nil {
			metrics.ExportFailures.WithLabelValues("zip").Inc()
			logger.Error("individual export failed", zap.Error(err))
		}
	}
	return paths
}

var exportContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain; charset=utf-8",
	".zip":  "application/zip",
}

// fanOut archives exports, publishes the completion event and records
// history. Each step only logs on failure.
func (s *Service) fanOut(ctx context.Context, logger *zap.Logger, run domain.Run) {
	var keys []string
	if s.store != nil {
		for _, path := range []string{run.Exports.Table, run.Exports.Text, run.Exports.Individual} {
			if path == "" {
				continue
			}
			key := fmt.Sprintf("%s/%s/%s", run.FinishedAt.Format("2006/01/02"), run.ID, filepath.Base(path))
			if err := s.store.PutFile(ctx, key, path, exportContentTypes[filepath.Ext(path)]); err != nil {
				metrics.ExportFailures.WithLabelValues("object_store").Inc()
				logger.Error("archive export failed", zap.String("key", key), zap.Error(err))
				continue
			}
			keys = append(keys, key)
		}
	}

	if s.publisher != nil {
		if err := s.publish(ctx, run, keys); err != nil {
			metrics.ExportFailures.WithLabelValues("events").Inc()
			logger.Error("publish run event failed", zap.Error(err))
		}
	}

	if s.history != nil {
		if err := s.history.Save(ctx, run.ID, run.Request.Operation, run.Results); err != nil {
			metrics.ExportFailures.WithLabelValues("history").Inc()
			logger.Error("save run history failed", zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, run domain.Run, keys []string) error {
	event := RunCompletedEvent{
		ID:          run.ID,
		Operation:   run.Request.Operation,
		Format:      run.Request.Format,
		Language:    run.Request.SourceLanguage,
		Total:       run.Total,
		Results:     run.Results,
		Notices:     run.Notices,
		Exports:     run.Exports,
		ObjectKeys:  keys,
		StartedAt:   run.StartedAt,
		CompletedAt: run.FinishedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	headers := map[string]string{
		"run_id":     run.ID,
		"event_type": eventTypeRunCompleted,
	}
	if err := s.publisher.Publish(ctx, run.ID, payload, headers); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

// Wait blocks until every background run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close lets in-flight runs finish until ctx is done. Runs still going at
// that point are cancelled and awaited, so their items end as failures
// and the runs still complete. Publisher and store are closed last.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("drain deadline reached, cancelling runs", zap.Error(ctx.Err()))
		s.cancel()
		<-done
	}
	s.cancel()

	// ctx may already be expired; closing still gets a short window.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close(closeCtx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
