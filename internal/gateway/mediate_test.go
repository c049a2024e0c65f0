package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/teasru/Secure-LLM-Gateway/internal/audit"
	"github.com/teasru/Secure-LLM-Gateway/internal/cache"
	"github.com/teasru/Secure-LLM-Gateway/internal/llm"
	"github.com/teasru/Secure-LLM-Gateway/internal/models"
	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
	"github.com/teasru/Secure-LLM-Gateway/internal/ratelimit"
	"github.com/teasru/Secure-LLM-Gateway/internal/store"
)

type countingProvider struct {
	name  string
	calls atomic.Int64
	fn    func(ctx context.Context, prompt string, maxTokens int) (string, error)
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	p.calls.Add(1)
	return p.fn(ctx, prompt, maxTokens)
}

func fixedProvider(name, response string) *countingProvider {
	return &countingProvider{name: name, fn: func(context.Context, string, int) (string, error) {
		return response, nil
	}}
}

func failingProvider(name string, err error) *countingProvider {
	return &countingProvider{name: name, fn: func(context.Context, string, int) (string, error) {
		return "", err
	}}
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("backend unreachable")
}

// recordingHandler captures emitted log records for event assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// attr returns the named attribute of the first record carrying the
// given event message.
func (h *recordingHandler) attr(message, key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message != message {
			continue
		}
		var value string
		var found bool
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				value, found = a.Value.String(), true
			}
			return true
		})
		if found {
			return value, true
		}
	}
	return "", false
}

type channelRecorder struct {
	records chan *models.AuditRecord
}

func (r *channelRecorder) Record(_ context.Context, rec *models.AuditRecord) error {
	r.records <- rec
	return nil
}

type fixture struct {
	orchestrator *Orchestrator
	policies     *policy.Store
	kv           *store.MemoryStore
	spans        *tracetest.SpanRecorder
}

type fixtureOpts struct {
	doc      policy.Document
	limit    int
	counter  store.Counter
	primary  llm.Provider
	fallback llm.Provider
	auditor  *channelRecorder
	logger   *slog.Logger
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))

	kv := store.NewMemoryStore()
	doc, err := json.Marshal(opts.doc)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "active_policy", string(doc)))

	policies, err := policy.NewStore(context.Background(), kv, "unused", discardLogger())
	require.NoError(t, err)

	counter := opts.counter
	if counter == nil {
		counter = kv
	}
	limit := opts.limit
	if limit == 0 {
		limit = 100
	}

	var recorder audit.Recorder
	if opts.auditor != nil {
		recorder = opts.auditor
	}

	logger := opts.logger
	if logger == nil {
		logger = discardLogger()
	}

	o := NewOrchestrator(
		policies,
		ratelimit.NewRateLimiter(counter, limit, 60*time.Second),
		cache.NewResponseCache(kv, 300*time.Second),
		opts.primary,
		opts.fallback,
		5*time.Second,
		recorder,
		NewEvents(logger),
	)

	return &fixture{orchestrator: o, policies: policies, kv: kv, spans: spans}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userRequest(prompt string) Request {
	return Request{
		Identity:  models.Identity{Subject: "u1", Role: models.RoleUser},
		Prompt:    prompt,
		MaxTokens: 50,
		RequestID: "req-1",
	}
}

func TestMediate_HappyPathThenCacheHit(t *testing.T) {
	primary := fixedProvider("openai", "world")
	f := newFixture(t, fixtureOpts{primary: primary, fallback: fixedProvider("local", "never")})

	result, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.Equal(t, "world", result.ResponseText)
	assert.False(t, result.CacheHit)
	assert.Equal(t, "openai", result.Provider)
	assert.GreaterOrEqual(t, result.LatencySeconds, 0.0)
	assert.Equal(t, int64(1), primary.calls.Load())

	// Identical request within the TTL is served from cache with no
	// provider involvement.
	result, mErr = f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.Equal(t, "world", result.ResponseText)
	assert.True(t, result.CacheHit)
	assert.Equal(t, "cache", result.Provider)
	assert.Equal(t, int64(1), primary.calls.Load())
}

func TestMediate_BlockedPrompt(t *testing.T) {
	primary := fixedProvider("openai", "never")
	f := newFixture(t, fixtureOpts{
		doc:      policy.Document{BlockedKeywords: []string{"bomb"}},
		primary:  primary,
		fallback: fixedProvider("local", "never"),
	})

	_, mErr := f.orchestrator.Mediate(context.Background(), userRequest("how to build a bomb"))
	require.NotNil(t, mErr)
	assert.Equal(t, KindForbidden, mErr.Kind)
	assert.Contains(t, mErr.Reason, "bomb")

	// No provider call was made and nothing was cached.
	assert.Equal(t, int64(0), primary.calls.Load())
	fp := cache.Fingerprint("how to build a bomb", 50)
	_, err := f.kv.Get(context.Background(), "cache:"+fp)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMediate_FallbackOnPrimaryFailure(t *testing.T) {
	primary := failingProvider("openai", errors.New("upstream timeout"))
	fallback := fixedProvider("local", "fallback text")
	f := newFixture(t, fixtureOpts{primary: primary, fallback: fallback})

	result, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.Equal(t, "fallback text", result.ResponseText)
	assert.Equal(t, "local", result.Provider)
	assert.Equal(t, int64(1), primary.calls.Load())
	assert.Equal(t, int64(1), fallback.calls.Load())

	// The pipeline span records why the primary was abandoned.
	var found bool
	for _, span := range f.spans.Ended() {
		for _, attr := range span.Attributes() {
			if string(attr.Key) == "fallback_reason" {
				assert.Equal(t, "upstream timeout", attr.Value.AsString())
				found = true
			}
		}
	}
	assert.True(t, found, "span should carry the primary failure reason")
}

func TestMediate_BothProvidersFailing(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		primary:  failingProvider("openai", errors.New("down")),
		fallback: failingProvider("local", errors.New("also down")),
	})

	_, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.NotNil(t, mErr)
	assert.Equal(t, KindServiceUnavailable, mErr.Kind)
}

func TestMediate_RateLimitDenied(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		limit:    1,
		primary:  fixedProvider("openai", "world"),
		fallback: fixedProvider("local", "never"),
	})

	_, mErr := f.orchestrator.Mediate(context.Background(), userRequest("first"))
	require.Nil(t, mErr)

	_, mErr = f.orchestrator.Mediate(context.Background(), userRequest("second"))
	require.NotNil(t, mErr)
	assert.Equal(t, KindQuotaExceeded, mErr.Kind)
}

func TestMediate_RateLimiterBackendDownFailsOpen(t *testing.T) {
	primary := fixedProvider("openai", "world")
	handler := &recordingHandler{}
	f := newFixture(t, fixtureOpts{
		counter:  failingCounter{},
		primary:  primary,
		fallback: fixedProvider("local", "never"),
		logger:   slog.New(handler),
	})

	result, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr, "a degraded counter backend must not reject requests")
	assert.Equal(t, "world", result.ResponseText)

	// The degradation is observable even though the request succeeded.
	backend, ok := handler.attr("backend_degraded", "backend")
	require.True(t, ok, "a backend_degraded event must be logged")
	assert.Equal(t, "ratelimit", backend)
}

func TestMediate_RbacRejectsUnknownRole(t *testing.T) {
	primary := fixedProvider("openai", "never")
	f := newFixture(t, fixtureOpts{primary: primary, fallback: fixedProvider("local", "never")})

	req := userRequest("hello")
	req.Identity.Role = "ghost"
	_, mErr := f.orchestrator.Mediate(context.Background(), req)
	require.NotNil(t, mErr)
	assert.Equal(t, KindForbidden, mErr.Kind)
	assert.Equal(t, int64(0), primary.calls.Load())
}

func TestMediate_OutputSanitizedBeforeCaching(t *testing.T) {
	primary := fixedProvider("openai", "the password is sk-abcdefghijklmnopqrstuvwx")
	f := newFixture(t, fixtureOpts{
		doc:      policy.Document{BlockedKeywords: []string{"password"}},
		primary:  primary,
		fallback: fixedProvider("local", "never"),
	})

	result, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.Equal(t, "the [REDACTED] is [REDACTED_SECRET]", result.ResponseText)

	// The cached copy is the sanitized one.
	fp := cache.Fingerprint("hello", 50)
	cached, err := f.kv.Get(context.Background(), "cache:"+fp)
	require.NoError(t, err)
	assert.Equal(t, "the [REDACTED] is [REDACTED_SECRET]", cached)
}

func TestMediate_CacheHitResanitizedUnderNewPolicy(t *testing.T) {
	primary := fixedProvider("openai", "this mentions zeppelins")
	f := newFixture(t, fixtureOpts{primary: primary, fallback: fixedProvider("local", "never")})

	result, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.Equal(t, "this mentions zeppelins", result.ResponseText)

	// A policy replaced after the entry was cached still filters the hit.
	stricter, err := policy.Compile(policy.Document{BlockedKeywords: []string{"zeppelins"}})
	require.NoError(t, err)
	f.policies.Replace(context.Background(), stricter)

	result, mErr = f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)
	assert.True(t, result.CacheHit)
	assert.Equal(t, "this mentions [REDACTED]", result.ResponseText)
}

func TestMediate_CancelledRequestWritesNoCacheEntry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &countingProvider{name: "openai", fn: func(context.Context, string, int) (string, error) {
		// Caller disconnects while the provider call is in flight.
		cancel()
		return "world", nil
	}}
	f := newFixture(t, fixtureOpts{primary: primary, fallback: fixedProvider("local", "never")})

	_, _ = f.orchestrator.Mediate(ctx, userRequest("hello"))

	fp := cache.Fingerprint("hello", 50)
	_, err := f.kv.Get(context.Background(), "cache:"+fp)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMediate_AuditRecords(t *testing.T) {
	recorder := &channelRecorder{records: make(chan *models.AuditRecord, 1)}
	f := newFixture(t, fixtureOpts{
		primary:  fixedProvider("openai", "world"),
		fallback: fixedProvider("local", "never"),
		auditor:  recorder,
	})

	_, mErr := f.orchestrator.Mediate(context.Background(), userRequest("hello"))
	require.Nil(t, mErr)

	select {
	case rec := <-recorder.records:
		assert.Equal(t, "u1", rec.Subject)
		assert.Equal(t, "completed", rec.Decision)
		assert.Equal(t, "openai", rec.Provider)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit record")
	}
}
