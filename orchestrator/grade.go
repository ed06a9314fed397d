package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuroleaf/neuroleaf/message"
)

// gradeAndCompose judges whether the retrieved corpus context suffices and,
// when it does, composes the grounded answer. Empty context short-circuits
// to insufficient without calling the model at all.
func (o *Orchestrator) gradeAndCompose(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()

	if len(state.RetrievedDocs) == 0 {
		next.EnoughInfo = boolPtr(false)
		o.logger.Info("no corpus evidence, grading skipped", "sufficient", false)
		return next, nil
	}

	evidence := strings.Join(state.RetrievedDocs, "\n\n")

	verdict, err := o.generate(ctx, []*message.Message{
		message.NewMessage(message.RoleUser, fmt.Sprintf(graderTemplate, state.Question, evidence)),
	}, nil)
	if err != nil {
		// a grading failure is indistinguishable from insufficiency
		o.logger.Warn("grading call failed, treating as insufficient", "error", err)
		next.EnoughInfo = boolPtr(false)
		return next, nil
	}

	// Strict equality: "yes" and nothing else. Ambiguity is failure.
	sufficient := strings.ToLower(strings.TrimSpace(verdict.Text())) == "yes"
	next.EnoughInfo = boolPtr(sufficient)
	o.logger.Info("context graded", "sufficient", sufficient)

	if !sufficient {
		return next, nil
	}

	answer, err := o.generate(ctx, []*message.Message{
		message.NewMessage(message.RoleUser, fmt.Sprintf(ragComposerTemplate, evidence, state.Question)),
	}, nil)
	if err != nil {
		return next, fmt.Errorf("compose answer: %w", err)
	}

	next.FinalAnswer = strings.TrimSpace(answer.Text())
	return next, nil
}

// composeFromWeb produces the final answer from web results. There is no
// sufficiency gate on this path; if the web node already set a terminal
// answer (empty results) this is a pass-through.
func (o *Orchestrator) composeFromWeb(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()
	if next.FinalAnswer != "" {
		return next, nil
	}

	evidence := strings.Join(state.WebRetrievals, "\n\n")

	answer, err := o.generate(ctx, []*message.Message{
		message.NewMessage(message.RoleUser, fmt.Sprintf(webComposerTemplate, evidence, state.Question)),
	}, nil)
	if err != nil {
		return next, fmt.Errorf("compose web answer: %w", err)
	}

	next.FinalAnswer = strings.TrimSpace(answer.Text())
	return next, nil
}
