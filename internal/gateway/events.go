package gateway

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/teasru/Secure-LLM-Gateway/internal/models"
)

// Events emits the gateway's structured event vocabulary. Every pipeline
// transition produces exactly one event.
type Events struct {
	logger *slog.Logger
}

func NewEvents(logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{logger: logger}
}

func (e *Events) emit(ctx context.Context, level slog.Level, event string, identity models.Identity, requestID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("event", event),
		slog.String("subject", identity.Subject),
		slog.String("role", string(identity.Role)),
		slog.String("request_id", requestID),
	}
	attrs = append(attrs, extra...)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	e.logger.LogAttrs(ctx, level, event, attrs...)
}

// Transition records one pipeline state change at debug level; terminal
// outcomes additionally get their own named events below.
func (e *Events) Transition(ctx context.Context, identity models.Identity, requestID, from, to string) {
	e.emit(ctx, slog.LevelDebug, "pipeline_transition", identity, requestID,
		slog.String("from", from),
		slog.String("to", to))
}

func (e *Events) CacheHit(ctx context.Context, identity models.Identity, requestID, promptPreview string) {
	e.emit(ctx, slog.LevelInfo, "cache_hit", identity, requestID,
		slog.String("prompt_preview", promptPreview))
}

func (e *Events) BlockedPrompt(ctx context.Context, identity models.Identity, requestID, reason string) {
	e.emit(ctx, slog.LevelWarn, "blocked_prompt", identity, requestID,
		slog.String("reason", reason))
}

func (e *Events) RateLimited(ctx context.Context, identity models.Identity, requestID string) {
	e.emit(ctx, slog.LevelWarn, "rate_limited", identity, requestID)
}

func (e *Events) Rejected(ctx context.Context, identity models.Identity, requestID, reason string) {
	e.emit(ctx, slog.LevelWarn, "request_rejected", identity, requestID,
		slog.String("reason", reason))
}

func (e *Events) BackendDegraded(ctx context.Context, identity models.Identity, requestID, backend string, err error) {
	e.emit(ctx, slog.LevelError, "backend_degraded", identity, requestID,
		slog.String("backend", backend),
		slog.String("error", err.Error()))
}

func (e *Events) ProviderFallback(ctx context.Context, identity models.Identity, requestID, reason string) {
	e.emit(ctx, slog.LevelWarn, "provider_fallback", identity, requestID,
		slog.String("reason", reason))
}

func (e *Events) RequestComplete(ctx context.Context, identity models.Identity, requestID string, result *models.MediationResult, promptPreview string) {
	e.emit(ctx, slog.LevelInfo, "request_complete", identity, requestID,
		slog.Float64("latency_seconds", result.LatencySeconds),
		slog.String("prompt_preview", promptPreview),
		slog.String("llm_provider", result.Provider),
		slog.Bool("cache_hit", result.CacheHit))
}

func (e *Events) PolicyUpdated(ctx context.Context, identity models.Identity, requestID string, keywords, patterns int) {
	e.emit(ctx, slog.LevelInfo, "policy_updated", identity, requestID,
		slog.Int("blocked_keywords", keywords),
		slog.Int("blocked_patterns", patterns))
}
