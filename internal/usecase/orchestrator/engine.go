package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/metrics"
	"quorum-ai/internal/infra/tracer"
)

// defaultTopK is how many chunks retrieval contributes when unconfigured.
const defaultTopK = 3

// contextTruncate is the per-chunk excerpt length in the rendered RAG
// context, in runes.
const contextTruncate = 200

// selfVerifyThreshold is the minimum CriticalReview contribution count
// that triggers the SelfVerify phase.
const selfVerifyThreshold = 2

// ProviderLookup resolves a named provider for per-alter overrides.
type ProviderLookup interface {
	Get(name string) (domain.LLMProvider, error)
}

// Options configures a new Engine.
type Options struct {
	// Alters is the explicit participant list; may be empty.
	Alters []domain.AlterDescriptor
	// Teams routes questions and, absent explicit alters, defines them.
	Teams domain.TeamRegistry
	// DefaultProvider answers for every alter without an override.
	DefaultProvider domain.LLMProvider
	// Moderator synthesizes the final decision.
	Moderator domain.LLMProvider
	// Providers resolves per-alter provider overrides; may be nil.
	Providers ProviderLookup
	// Retriever supplies RAG context; nil disables retrieval.
	Retriever domain.Retriever
	// TopK is the number of chunks retrieved per question.
	TopK int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Engine runs discussion rounds. It is immutable after construction and
// safe for concurrent rounds: each round owns its own state, and the
// alter set, team registry and providers are read-only.
type Engine struct {
	alters    map[int]*Alter
	teams     domain.TeamRegistry
	moderator domain.LLMProvider
	retriever domain.Retriever
	topK      int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewEngine builds the alter set from configuration and binds each alter
// to its provider.
func NewEngine(opts Options) (*Engine, error) {
	if opts.DefaultProvider == nil {
		return nil, domain.NewDomainError("NewEngine", domain.ErrInvalidInput, "default provider required")
	}
	if opts.Moderator == nil {
		return nil, domain.NewDomainError("NewEngine", domain.ErrInvalidInput, "moderator provider required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}

	descriptors := BuildAlterSet(opts.Alters, opts.Teams)
	if len(descriptors) == 0 {
		return nil, domain.NewDomainError("NewEngine", domain.ErrNoAlters, "no alters resolvable from configuration")
	}

	alters := make(map[int]*Alter, len(descriptors))
	for id, desc := range descriptors {
		provider := opts.DefaultProvider
		if desc.Provider != "" && opts.Providers != nil {
			override, err := opts.Providers.Get(desc.Provider)
			if err != nil {
				return nil, fmt.Errorf("alter %d: %w", id, err)
			}
			provider = override
		}
		alters[id] = NewAlter(desc, provider)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	return &Engine{
		alters:    alters,
		teams:     opts.Teams,
		moderator: opts.Moderator,
		retriever: opts.Retriever,
		topK:      topK,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// AlterCount reports the size of the configured alter set.
func (e *Engine) AlterCount() int { return len(e.alters) }

// RunRound executes one full discussion round and returns its transcript.
// Per-alter failures surface as placeholder contributions, and a failed
// decision synthesis surfaces in the decision text, so a started round
// always produces a complete transcript. Context cancellation is the one
// exception: it is checked between phases and aborts the round.
func (e *Engine) RunRound(ctx context.Context, question string, useRAG bool) (*domain.Transcript, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.round")
	defer span.End()

	state := &domain.RoundState{
		ID:        ulid.Make().String(),
		Question:  question,
		UseRAG:    useRAG,
		StartedAt: time.Now(),
	}
	span.SetAttributes(
		tracer.StringAttr("round.id", state.ID),
		tracer.BoolAttr("round.use_rag", useRAG),
	)

	if useRAG {
		state.RetrievedContext = e.retrieveContext(ctx, question)
	}

	state.AssignedTeams = AssignTeams(question, e.teams)
	roster := e.resolveRoster(state.AssignedTeams)
	if len(roster) == 0 {
		e.metrics.RoundsTotal.WithLabelValues("error").Inc()
		return nil, domain.NewDomainError("RunRound", domain.ErrNoAlters, "no participating alters")
	}
	for _, alter := range roster {
		state.ParticipatingAlters = append(state.ParticipatingAlters, alter.Descriptor)
	}

	e.logger.Info("round started",
		"round", state.ID,
		"teams", state.AssignedTeams,
		"alters", len(roster),
		"use_rag", useRAG,
	)

	if err := ctx.Err(); err != nil {
		return nil, e.abortRound(span, state, err)
	}
	e.runPhase(ctx, state, domain.PhaseBrainstorm, roster)

	if err := ctx.Err(); err != nil {
		return nil, e.abortRound(span, state, err)
	}
	e.runPhase(ctx, state, domain.PhaseCriticalReview, roster)

	// SelfVerify only runs when CriticalReview produced enough material
	// to cross-check. Placeholder contributions count: the check gates on
	// discussion size, not quality.
	review := state.Phases[len(state.Phases)-1]
	if len(review.Contributions) >= selfVerifyThreshold {
		if err := ctx.Err(); err != nil {
			return nil, e.abortRound(span, state, err)
		}
		e.runPhase(ctx, state, domain.PhaseSelfVerify, roster)
	}

	if err := ctx.Err(); err != nil {
		return nil, e.abortRound(span, state, err)
	}
	e.runPhase(ctx, state, domain.PhaseVote, roster)

	if err := ctx.Err(); err != nil {
		return nil, e.abortRound(span, state, err)
	}
	e.synthesizeDecision(ctx, state)

	elapsed := time.Since(state.StartedAt)
	e.metrics.RoundsTotal.WithLabelValues("ok").Inc()
	e.metrics.RoundDuration.Observe(elapsed.Seconds())

	e.logger.Info("round completed",
		"round", state.ID,
		"phases", len(state.Phases),
		"duration", elapsed,
	)
	tracer.SetOK(span)
	return assembleTranscript(state), nil
}

// abortRound records an early exit from a cancelled round. Whatever was
// produced before the cancellation is discarded; the caller gets the
// cancellation cause, not a partial transcript.
func (e *Engine) abortRound(span trace.Span, state *domain.RoundState, cause error) error {
	err := domain.NewDomainError("RunRound", cause,
		fmt.Sprintf("round cancelled after %d phase(s)", len(state.Phases)))
	e.metrics.RoundsTotal.WithLabelValues("cancelled").Inc()
	tracer.RecordError(span, err)
	e.logger.Warn("round cancelled",
		"round", state.ID,
		"phases", len(state.Phases),
	)
	return err
}

// resolveRoster maps the assigned teams to live alters.
func (e *Engine) resolveRoster(assignedTeams []string) []*Alter {
	descriptors := make(map[int]domain.AlterDescriptor, len(e.alters))
	for id, alter := range e.alters {
		descriptors[id] = alter.Descriptor
	}
	resolved := ResolveRoster(assignedTeams, e.teams, descriptors)

	roster := make([]*Alter, 0, len(resolved))
	for _, desc := range resolved {
		roster = append(roster, e.alters[desc.ID])
	}
	return roster
}

// retrieveContext fetches and renders RAG context for the question.
// Retrieval failures degrade to an empty context; the round proceeds
// without it.
func (e *Engine) retrieveContext(ctx context.Context, question string) string {
	if e.retriever == nil {
		return ""
	}

	results, err := e.retriever.Retrieve(ctx, question, e.topK)
	if err != nil {
		e.logger.Warn("context retrieval failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[RAG Context]\n")
	for i, res := range results {
		chunk := res.Chunk
		if len([]rune(chunk)) > contextTruncate {
			chunk = truncateRunes(chunk, contextTruncate) + "..."
		}
		fmt.Fprintf(&b, "- Chunk %d: \"%s\" [score: %.3f]\n", i+1, chunk, res.Score)
	}
	return b.String()
}
