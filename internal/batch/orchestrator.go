// Package batch runs a set of uploaded media items through staging, the
// configured provider and sentiment classification, and tracks runs.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/domain"
	"github.com/your-org/mediascribe/internal/prompt"
	"github.com/your-org/mediascribe/internal/provider"
	"github.com/your-org/mediascribe/internal/staging"
	"github.com/your-org/mediascribe/pkg/metrics"
)

const tracerName = "github.com/your-org/mediascribe/internal/batch"

// Classifier labels provider output.
type Classifier interface {
	Classify(text string) domain.Sentiment
}

// Progress is emitted once per attempted item.
type Progress struct {
	Source    string
	Completed int
	Total     int
	Fraction  float64
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Outcome is the result of one run. Results keep input order and omit
// items that failed hard; every failed or soft-failed item has a Notice.
type Outcome struct {
	Results []domain.ProcessingResult
	Notices []domain.Notice
}

// Orchestrator processes batches of media items.
type Orchestrator struct {
	stager     *staging.Stager
	provider   provider.Provider
	classifier Classifier
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
	tracer     trace.Tracer
}

type Params struct {
	Stager     *staging.Stager
	Provider   provider.Provider
	Classifier Classifier
	Workers    int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. Workers below 1 run sequentially.
func NewOrchestrator(p Params) *Orchestrator {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Orchestrator{
		stager:     p.Stager,
		provider:   p.Provider,
		classifier: p.Classifier,
		workers:    p.Workers,
		timeout:    p.Timeout,
		logger:     p.Logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// itemOutcome is what one item contributes to the run.
type itemOutcome struct {
	result *domain.ProcessingResult
	notice *domain.Notice
}

// Run attempts every item exactly once. One item's failure never stops the
// others. onProgress may be nil.
func (o *Orchestrator) Run(ctx context.Context, req domain.ProcessingRequest, items []domain.MediaItem, onProgress ProgressFunc) Outcome {
	ctx, span := o.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("operation", string(req.Operation)),
		attribute.String("format", string(req.Format)),
		attribute.Int("items", len(items)),
	))
	defer span.End()

	total := len(items)
	slots := make([]itemOutcome, total)
	if total == 0 {
		return Outcome{}
	}

	var (
		mu        sync.Mutex
		completed int
	)
	report := func(source string) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(Progress{
				Source:    source,
				Completed: completed,
				Total:     total,
				Fraction:  float64(completed) / float64(total),
			})
		}
	}

	promptText := prompt.Build(req.Operation, req.Format, req.SourceLanguage)

	if o.workers == 1 {
		for i, item := range items {
			slots[i] = o.processItem(ctx, req, promptText, item)
			report(item.Name)
		}
	} else {
		queue := make(chan struct{}, o.workers)
		var wg sync.WaitGroup
		for i, item := range items {
			queue <- struct{}{}
			wg.Add(1)
			go func(i int, item domain.MediaItem) {
				defer func() {
					<-queue
					wg.Done()
				}()
				slots[i] = o.processItem(ctx, req, promptText, item)
				report(item.Name)
			}(i, item)
		}
		wg.Wait()
	}

	var out Outcome
	for _, slot := range slots {
		if slot.result != nil {
			out.Results = append(out.Results, *slot.result)
		}
		if slot.notice != nil {
			out.Notices = append(out.Notices, *slot.notice)
		}
	}

	span.SetAttributes(
		attribute.Int("results", len(out.Results)),
		attribute.Int("notices", len(out.Notices)),
	)
	return out
}

func (o *Orchestrator) processItem(ctx context.Context, req domain.ProcessingRequest, promptText string, item domain.MediaItem) itemOutcome {
	ctx, span := o.tracer.Start(ctx, "batch.item", trace.WithAttributes(
		attribute.String("source", item.Name),
		attribute.Int("bytes", len(item.Data)),
	))
	defer span.End()

	start := time.Now()
	out, outcome := o.attempt(ctx, req, promptText, item)

	metrics.ItemDuration.WithLabelValues(o.provider.Name(), outcome).Observe(time.Since(start).Seconds())
	metrics.ItemsProcessed.WithLabelValues(o.provider.Name(), outcome).Inc()

	span.SetAttributes(attribute.String("outcome", outcome))
	if out.notice != nil {
		if out.result == nil {
			span.SetStatus(codes.Error, out.notice.Cause)
		}
		o.logger.Warn("media item not fully processed",
			zap.String("source", item.Name),
			zap.String("kind", string(out.notice.Kind)),
			zap.String("cause", out.notice.Cause),
		)
	} else {
		o.logger.Info("media item processed",
			zap.String("source", item.Name),
			zap.String("sentiment", string(out.result.Sentiment)),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return out
}

// attempt runs stage -> provider -> classify for one item and converts any
// failure into a notice. The returned string is the metrics outcome label.
func (o *Orchestrator) attempt(ctx context.Context, req domain.ProcessingRequest, promptText string, item domain.MediaItem) (itemOutcome, string) {
	var (
		text    string
		callErr error
		called  bool
	)
	err := o.stager.With(item, func(staged *staging.StagedMedia) error {
		callCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		called = true
		text, callErr = o.provider.Process(callCtx, provider.Call{
			Path:      staged.Path,
			MimeType:  staged.MimeType,
			Prompt:    promptText,
			Operation: req.Operation,
			Language:  req.SourceLanguage,
		})
		return callErr
	})

	var stageErr *staging.StagingError
	if errors.As(err, &stageErr) {
		if !called || callErr != nil {
			return noticeOnly(item.Name, domain.NoticeStaging, err), "staging_error"
		}
		// The provider already answered; a leftover temp file does not
		// invalidate the text.
		o.logger.Warn("staged file cleanup failed", zap.String("source", item.Name), zap.Error(err))
	}

	switch {
	case errors.Is(callErr, provider.ErrEmptyResult):
		return itemOutcome{
			result: &domain.ProcessingResult{
				SourceName:  item.Name,
				FormatLabel: req.Format.Label(),
				Sentiment:   domain.SentimentUnavailable,
			},
			notice: &domain.Notice{SourceName: item.Name, Kind: domain.NoticeEmptyResult, Cause: callErr.Error()},
		}, "empty"
	case errors.Is(callErr, provider.ErrUnsupportedFormat):
		return noticeOnly(item.Name, domain.NoticeUnsupportedFormat, callErr), "unsupported_format"
	case callErr != nil:
		return noticeOnly(item.Name, domain.NoticeProvider, callErr), "provider_error"
	}

	return itemOutcome{
		result: &domain.ProcessingResult{
			SourceName:  item.Name,
			Text:        text,
			FormatLabel: req.Format.Label(),
			Sentiment:   o.classifier.Classify(text),
		},
	}, "success"
}

func noticeOnly(source string, kind domain.NoticeKind, err error) itemOutcome {
	return itemOutcome{notice: &domain.Notice{SourceName: source, Kind: kind, Cause: err.Error()}}
}
