package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuroleaf/neuroleaf/message"
	"github.com/neuroleaf/neuroleaf/websearch"
)

const toolWebSearch = "web_search"

// answerNoWebInfo is the fixed terminal answer when web search comes back
// empty. No composition call is made in that case.
const answerNoWebInfo = "No relevant web information found."

// searchWeb runs the same two-phase tool protocol as retrieval, against
// the web source. Only the bare question is presented: the full history is
// deliberately withheld so unrelated chat context cannot skew the search.
// Setting Route here makes a rag fallback terminal, since the transition
// table routes web straight to composition and never back into grading.
// The composer is the second pass of the exchange, so no closing
// generation call happens here.
func (o *Orchestrator) searchWeb(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()
	next.Route = RouteWeb
	next.WebRetrievals = []string{}

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, webSearchInstruction),
		message.NewMessage(message.RoleUser, state.Question),
	}

	reply, err := o.generate(ctx, msgs, o.webTools.ToJSONSchemas())
	if err != nil {
		o.logger.Warn("web call failed, treating as no results", "error", err)
		next.FinalAnswer = answerNoWebInfo
		return next, nil
	}
	if len(reply.ToolCalls) == 0 {
		o.logger.Debug("model declined web search tool")
		next.FinalAnswer = answerNoWebInfo
		return next, nil
	}

	for _, call := range reply.ToolCalls {
		if call.Name != toolWebSearch || !o.webTools.Has(call.Name) {
			// an unknown tool yields no evidence; the composer must not
			// see the report as if it were a search result
			o.logger.Warn("model requested unknown tool", "tool", call.Name)
			continue
		}

		query := state.Question
		if q, ok := call.Args["query"].(string); ok && q != "" {
			query = q
		}

		results, err := o.web.Search(ctx, query)
		if err != nil {
			// provider failures travel the normal data path as a readable
			// string, never as a raised error
			o.logger.Warn("web search failed", "error", err, "query", query)
			next.WebRetrievals = append(next.WebRetrievals, "Web search failed: "+err.Error())
			continue
		}
		for _, r := range results {
			next.WebRetrievals = append(next.WebRetrievals, formatWebResult(r))
		}
	}

	if len(next.WebRetrievals) == 0 {
		next.FinalAnswer = answerNoWebInfo
		return next, nil
	}

	o.logger.Debug("web search done", "results", len(next.WebRetrievals))
	return next, nil
}

func formatWebResult(r websearch.Result) string {
	entry := r.Content
	if r.Title != "" || r.URL != "" {
		entry = fmt.Sprintf("%s (%s)\n%s", r.Title, r.URL, r.Content)
	}
	return strings.TrimSpace(entry)
}
