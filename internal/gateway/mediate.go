// Package gateway implements the request mediation pipeline: the ordered
// admission checks, cache lookup, provider invocation with fallback, and
// output sanitization every generation request passes through.
package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teasru/Secure-LLM-Gateway/internal/audit"
	"github.com/teasru/Secure-LLM-Gateway/internal/cache"
	"github.com/teasru/Secure-LLM-Gateway/internal/inspect"
	"github.com/teasru/Secure-LLM-Gateway/internal/llm"
	"github.com/teasru/Secure-LLM-Gateway/internal/models"
	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
	"github.com/teasru/Secure-LLM-Gateway/internal/ratelimit"
	"github.com/teasru/Secure-LLM-Gateway/internal/sanitize"
	"github.com/teasru/Secure-LLM-Gateway/internal/telemetry"
)

// state names one stop of the mediation pipeline. Rejected and Failed are
// terminal and short-circuit every remaining transition.
type state string

const (
	stateReceived        state = "received"
	stateRbacChecked     state = "rbac_checked"
	stateRateLimited     state = "rate_limited"
	stateCacheChecked    state = "cache_checked"
	statePromptInspected state = "prompt_inspected"
	stateGenerated       state = "generated"
	stateSanitized       state = "sanitized"
	stateCacheStored     state = "cache_stored"
	stateCompleted       state = "completed"
	stateRejected        state = "rejected"
	stateFailed          state = "failed"
)

// Request is one admitted mediation request. Immutable once admitted.
type Request struct {
	Identity  models.Identity
	Prompt    string
	MaxTokens int
	RequestID string
}

// Orchestrator composes the policy store, rate limiter, response cache,
// prompt inspector, providers, and output sanitizer into one deterministic
// pipeline per request.
type Orchestrator struct {
	policies *policy.Store
	limiter  *ratelimit.RateLimiter
	cache    *cache.ResponseCache
	primary  llm.Provider
	fallback llm.Provider

	providerTimeout time.Duration
	auditor         audit.Recorder // nil disables persistence
	events          *Events
	tracer          trace.Tracer
}

func NewOrchestrator(
	policies *policy.Store,
	limiter *ratelimit.RateLimiter,
	responseCache *cache.ResponseCache,
	primary, fallback llm.Provider,
	providerTimeout time.Duration,
	auditor audit.Recorder,
	events *Events,
) *Orchestrator {
	if events == nil {
		events = NewEvents(nil)
	}
	return &Orchestrator{
		policies:        policies,
		limiter:         limiter,
		cache:           responseCache,
		primary:         primary,
		fallback:        fallback,
		providerTimeout: providerTimeout,
		auditor:         auditor,
		events:          events,
		tracer:          otel.Tracer("gateway"),
	}
}

// Mediate runs the pipeline for one request. It returns either a result or
// a typed Error; only the four stable error kinds ever reach the caller.
func (o *Orchestrator) Mediate(ctx context.Context, req Request) (*models.MediationResult, *Error) {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "generate_request", trace.WithAttributes(
		attribute.String("user.id", req.Identity.Subject),
		attribute.String("user.role", string(req.Identity.Role)),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	// One consistent policy snapshot serves the whole request.
	pol := o.policies.Load()

	// Received → RbacChecked
	if !req.Identity.Role.Valid() {
		o.events.Rejected(ctx, req.Identity, req.RequestID, "Insufficient permissions")
		return nil, o.reject(ctx, span, req, forbidden("Insufficient permissions"))
	}
	o.transition(ctx, span, req, stateReceived, stateRbacChecked)

	// RbacChecked → RateLimited
	allowed, err := o.limiter.Allow(ctx, req.Identity.Subject)
	if err != nil {
		o.degraded(ctx, req, "ratelimit", err)
	}
	if !allowed {
		telemetry.RateLimitDeniedTotal.Inc()
		o.events.RateLimited(ctx, req.Identity, req.RequestID)
		return nil, o.reject(ctx, span, req, &Error{Kind: KindQuotaExceeded, Reason: "Rate limit exceeded"})
	}
	o.transition(ctx, span, req, stateRbacChecked, stateRateLimited)

	// RateLimited → CacheChecked
	fingerprint := cache.Fingerprint(req.Prompt, req.MaxTokens)
	cached, hit, err := o.cache.Get(ctx, fingerprint)
	if err != nil {
		o.degraded(ctx, req, "cache", err)
	}
	if hit {
		// A policy replaced after the entry was written must still apply,
		// so cached text is re-sanitized before it is served.
		result := &models.MediationResult{
			ResponseText:   sanitize.Sanitize(cached, pol),
			Provider:       "cache",
			CacheHit:       true,
			LatencySeconds: time.Since(start).Seconds(),
		}
		span.SetAttributes(attribute.Bool("cache.hit", true))
		telemetry.CacheLookupsTotal.WithLabelValues("hit").Inc()
		o.events.CacheHit(ctx, req.Identity, req.RequestID, preview(req.Prompt))
		o.complete(ctx, span, req, result)
		return result, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	telemetry.CacheLookupsTotal.WithLabelValues("miss").Inc()
	o.transition(ctx, span, req, stateRateLimited, stateCacheChecked)

	// CacheChecked → PromptInspected
	decision := inspect.Inspect(req.Prompt, pol)
	if !decision.Allowed {
		o.events.BlockedPrompt(ctx, req.Identity, req.RequestID, decision.Reason)
		return nil, o.reject(ctx, span, req, forbidden(decision.Reason))
	}
	o.transition(ctx, span, req, stateCacheChecked, statePromptInspected)

	// PromptInspected → Generated
	response, provider, genErr := o.generate(ctx, span, req)
	if genErr != nil {
		span.SetStatus(codes.Error, "both providers failed")
		o.events.Rejected(ctx, req.Identity, req.RequestID, genErr.Error())
		return nil, o.reject(ctx, span, req, &Error{Kind: KindServiceUnavailable, Reason: "Generation unavailable"})
	}
	span.SetAttributes(attribute.String("llm.provider", provider))
	o.transition(ctx, span, req, statePromptInspected, stateGenerated)

	// Generated → Sanitized
	response = sanitize.Sanitize(response, pol)
	o.transition(ctx, span, req, stateGenerated, stateSanitized)

	// Sanitized → CacheStored. A cancelled request must not publish a
	// result it never delivered.
	if ctx.Err() == nil {
		if err := o.cache.Put(ctx, fingerprint, response); err != nil {
			o.degraded(ctx, req, "cache", err)
		}
	}
	o.transition(ctx, span, req, stateSanitized, stateCacheStored)

	// CacheStored → Completed
	result := &models.MediationResult{
		ResponseText:   response,
		Provider:       provider,
		CacheHit:       false,
		LatencySeconds: time.Since(start).Seconds(),
	}
	o.complete(ctx, span, req, result)
	return result, nil
}

// generate invokes the primary provider; any primary error triggers one
// synchronous fallback substitution. No further retry happens at this layer.
func (o *Orchestrator) generate(ctx context.Context, span trace.Span, req Request) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	primaryCtx, primarySpan := o.tracer.Start(callCtx, "openai_call")
	response, err := o.primary.Generate(primaryCtx, req.Prompt, req.MaxTokens)
	primarySpan.End()
	cancel()
	if err == nil {
		return response, o.primary.Name(), nil
	}

	span.SetAttributes(attribute.String("fallback_reason", err.Error()))
	telemetry.ProviderFallbacksTotal.Inc()
	o.events.ProviderFallback(ctx, req.Identity, req.RequestID, err.Error())

	callCtx, cancel = context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()
	fallbackCtx, fallbackSpan := o.tracer.Start(callCtx, "local_fallback")
	response, err = o.fallback.Generate(fallbackCtx, req.Prompt, req.MaxTokens)
	fallbackSpan.End()
	if err != nil {
		return "", "", err
	}
	return response, o.fallback.Name(), nil
}

func (o *Orchestrator) transition(ctx context.Context, span trace.Span, req Request, from, to state) {
	span.SetAttributes(attribute.String("pipeline.state", string(to)))
	o.events.Transition(ctx, req.Identity, req.RequestID, string(from), string(to))
}

func (o *Orchestrator) reject(ctx context.Context, span trace.Span, req Request, err *Error) *Error {
	terminal := stateRejected
	if err.Kind == KindServiceUnavailable {
		terminal = stateFailed
	}
	span.SetAttributes(attribute.String("pipeline.state", string(terminal)))
	span.SetStatus(codes.Error, err.Reason)
	telemetry.RequestsTotal.WithLabelValues(string(err.Kind)).Inc()
	o.record(req, string(err.Kind), err.Reason, nil)
	return err
}

func (o *Orchestrator) complete(ctx context.Context, span trace.Span, req Request, result *models.MediationResult) {
	span.SetAttributes(
		attribute.String("pipeline.state", string(stateCompleted)),
		attribute.Float64("request.latency_seconds", result.LatencySeconds),
	)
	telemetry.RequestsTotal.WithLabelValues("completed").Inc()
	telemetry.RequestLatency.Observe(result.LatencySeconds)
	o.events.RequestComplete(ctx, req.Identity, req.RequestID, result, preview(req.Prompt))
	o.record(req, "completed", "", result)
}

func (o *Orchestrator) degraded(ctx context.Context, req Request, backend string, err error) {
	telemetry.BackendDegradedTotal.WithLabelValues(backend).Inc()
	o.events.BackendDegraded(ctx, req.Identity, req.RequestID, backend, err)
}

// record writes the audit row off the request path so persistence latency
// and failures cannot affect the response.
func (o *Orchestrator) record(req Request, decision, reason string, result *models.MediationResult) {
	if o.auditor == nil {
		return
	}

	rec := &models.AuditRecord{
		RequestID: req.RequestID,
		Subject:   req.Identity.Subject,
		Role:      string(req.Identity.Role),
		Decision:  decision,
		Reason:    reason,
	}
	if result != nil {
		rec.Provider = result.Provider
		rec.CacheHit = result.CacheHit
		rec.LatencySeconds = result.LatencySeconds
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.auditor.Record(ctx, rec)
	}()
}

func preview(prompt string) string {
	if len(prompt) > 50 {
		return prompt[:50]
	}
	return prompt
}
