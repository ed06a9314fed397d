package orchestrator

import (
	"context"
	"strings"

	"github.com/neuroleaf/neuroleaf/message"
)

const toolRetrieveKnowledge = "retrieve_knowledge"

// invalidToolResult is fed back as the tool result when the model requests
// a tool that is not bound, so the exchange degrades instead of aborting.
const invalidToolResult = "Invalid tool"

// retrieveDocs runs the two-phase tool protocol against the knowledge base:
// first ask the model whether to search (and with what query), then execute
// the requested calls and feed the results back. The model declining to
// call the tool is a legitimate "no evidence" outcome: RetrievedDocs
// becomes empty (not nil) and the grader will report insufficiency.
func (o *Orchestrator) retrieveDocs(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()
	next.RetrievedDocs = []string{}

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, retrieverInstruction),
		message.NewMessage(message.RoleUser, state.Question),
	}

	reply, err := o.generate(ctx, msgs, o.tools.ToJSONSchemas())
	if err != nil {
		o.logger.Warn("retrieval call failed, treating as no evidence", "error", err)
		return next, nil
	}
	if len(reply.ToolCalls) == 0 {
		o.logger.Debug("model declined retrieval tool")
		return next, nil
	}

	msgs = append(msgs, reply)
	for _, call := range reply.ToolCalls {
		if call.Name != toolRetrieveKnowledge || !o.tools.Has(call.Name) {
			o.logger.Warn("model requested unknown tool", "tool", call.Name)
			msgs = append(msgs, message.NewToolResponseMessage(call.ID, invalidToolResult))
			continue
		}

		query := state.Question
		if q, ok := call.Args["query"].(string); ok && q != "" {
			query = q
		}

		passages, err := o.knowledge.Search(ctx, query)
		if err != nil {
			o.logger.Warn("knowledge search failed, treating as no evidence", "error", err, "query", query)
			msgs = append(msgs, message.NewToolResponseMessage(call.ID, "Search failed: "+err.Error()))
			continue
		}
		next.RetrievedDocs = append(next.RetrievedDocs, passages...)
		msgs = append(msgs, message.NewToolResponseMessage(call.ID, strings.Join(passages, "\n\n")))
	}

	// Second phase: hand the tool results back so the model closes the
	// exchange. The grader decides what happens to the passages, so the
	// reply text itself is not used.
	if _, err := o.generate(ctx, msgs, nil); err != nil {
		o.logger.Debug("post-retrieval pass failed", "error", err)
	}

	o.logger.Debug("retrieval done", "passages", len(next.RetrievedDocs))
	return next, nil
}
