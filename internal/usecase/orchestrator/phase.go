package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/tracer"
)

// runPhase invokes every rostered alter once for the named phase. Alters
// run concurrently but contributions are recorded in roster order so the
// phase record is deterministic. A failed invocation becomes an error
// placeholder contribution; it never aborts the phase.
//
// The conversation history each alter sees is the history accumulated
// from prior phases only. New entries are appended after all invocations
// finish, so within a phase no alter observes another's response.
func (e *Engine) runPhase(ctx context.Context, state *domain.RoundState, phase domain.Phase, roster []*Alter) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.phase")
	span.SetAttributes(
		tracer.StringAttr("phase", string(phase)),
		tracer.IntAttr("alters", len(roster)),
	)
	defer span.End()

	start := time.Now()
	history := state.ConversationHistory

	type result struct {
		response string
		failed   bool
	}
	results := make([]result, len(roster))

	var wg sync.WaitGroup
	for i, alter := range roster {
		wg.Add(1)
		go func(i int, alter *Alter) {
			defer wg.Done()
			response, err := alter.Respond(ctx, phase, state.Question, state.RetrievedContext, history)
			if err != nil {
				e.logger.Warn("alter invocation failed",
					"round", state.ID,
					"phase", phase,
					"alter", alter.Descriptor.Name,
					"error", err,
				)
				results[i] = result{
					response: fmt.Sprintf("Error: Could not generate response (%s)", err),
					failed:   true,
				}
				return
			}
			results[i] = result{response: response}
		}(i, alter)
	}
	wg.Wait()

	record := domain.PhaseRecord{PhaseName: phase}
	for i, alter := range roster {
		record.Contributions = append(record.Contributions, domain.Contribution{
			AlterID:   alter.Descriptor.ID,
			AlterName: alter.Descriptor.Name,
			Response:  results[i].response,
		})
		status := "ok"
		if results[i].failed {
			status = "error"
		}
		e.metrics.ContributionsTotal.WithLabelValues(status).Inc()
	}
	state.Phases = append(state.Phases, record)

	// Only successful responses enter the shared history.
	for i, alter := range roster {
		if results[i].failed {
			continue
		}
		state.ConversationHistory = append(state.ConversationHistory, domain.HistoryEntry{
			Phase:     phase,
			AlterName: alter.Descriptor.Name,
			AlterID:   alter.Descriptor.ID,
			Response:  results[i].response,
		})
	}

	e.metrics.PhaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
	e.logger.Info("phase completed",
		"round", state.ID,
		"phase", phase,
		"contributions", len(record.Contributions),
		"duration", time.Since(start),
	)
	tracer.SetOK(span)
}
