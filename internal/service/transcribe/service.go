// Package transcribe builds and stores the final transcript of a
// pipeline run.
//
// Assembly and saving are split deliberately: Assemble is a pure function
// of the run state, so when the store rejects a save the assembled
// transcript survives in memory and the save step alone can be retried.
package transcribe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
	"github.com/ashita-ai/sekkei/internal/telemetry"
	"github.com/ashita-ai/sekkei/internal/title"
)

// Store is the slice of transcript storage the persister needs.
type Store interface {
	SaveTranscript(ctx context.Context, t model.Transcript) error
}

// Service implements pipeline.Persister on top of a transcript store.
type Service struct {
	store  Store
	logger *slog.Logger

	saveDuration metric.Float64Histogram
	savedTotal   metric.Int64Counter
}

// New creates a transcript persister.
func New(store Store, logger *slog.Logger) *Service {
	meter := telemetry.Meter("sekkei/transcribe")
	saveDur, _ := meter.Float64Histogram("sekkei.transcript.save.duration",
		metric.WithDescription("Time to save a transcript (ms)"),
		metric.WithUnit("ms"),
	)
	saved, _ := meter.Int64Counter("sekkei.transcript.saved",
		metric.WithDescription("Transcripts saved, by outcome"),
	)
	return &Service{
		store:        store,
		logger:       logger,
		saveDuration: saveDur,
		savedTotal:   saved,
	}
}

// Assemble builds the transcript record from the finished run. Pure: no
// store access, no clock reads beyond the input timestamps, so the same
// input always yields the same transcript.
func (s *Service) Assemble(input pipeline.FinalizeInput) model.Transcript {
	t := model.Transcript{
		ID:               input.SessionID,
		Prompt:           input.Prompt,
		DatabaseType:     input.DatabaseType,
		Title:            title.Derive(input.Prompt, input.DatabaseType),
		GeneratedContent: input.Content,
		Insights:         input.Insights,
		Tasks:            input.Tasks,
		Status:           model.TranscriptCompleted,
		OwnerID:          input.OwnerID,
		CreatedAt:        input.FinishedAt,
		UpdatedAt:        input.FinishedAt,
	}
	t.Metadata = model.TranscriptMetadata{
		DurationMS:    input.FinishedAt.Sub(input.StartedAt).Milliseconds(),
		ContentLength: t.ContentLength(),
		InsightCount:  len(input.Insights),
		Mode:          input.Mode,
		Partial:       input.Partial,
	}
	return t
}

// Save stores the assembled transcript. Store failures propagate to the
// caller; the pipeline reports them distinctly from generation failures.
func (s *Service) Save(ctx context.Context, t model.Transcript) error {
	start := time.Now()
	err := s.store.SaveTranscript(ctx, t)
	s.saveDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Error("transcribe: save failed", "transcript_id", t.ID, "error", err)
	}
	s.savedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return err
}
