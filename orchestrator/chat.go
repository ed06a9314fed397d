package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuroleaf/neuroleaf/message"
)

// chatReply answers conversationally from the full transcript. No tools,
// no retrieval; the system message carrying any detection context is
// already part of the history.
func (o *Orchestrator) chatReply(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()

	msgs := make([]*message.Message, 0, len(state.Messages)+1)
	msgs = append(msgs, message.NewMessage(message.RoleSystem, chatInstruction))
	msgs = append(msgs, state.Messages...)

	reply, err := o.generate(ctx, msgs, nil)
	if err != nil {
		return next, fmt.Errorf("chat reply: %w", err)
	}

	next.FinalAnswer = strings.TrimSpace(reply.Text())
	return next, nil
}
