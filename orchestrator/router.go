package orchestrator

import (
	"context"
	"strings"

	"github.com/neuroleaf/neuroleaf/message"
)

// routeTurn classifies the turn into chat, rag or web. The classifier sees
// the whole transcript so prior turns (including the detection system
// message) bias the decision. Anything but an exact label falls open to the
// configured default route; there are no retries.
func (o *Orchestrator) routeTurn(ctx context.Context, state TurnState) (TurnState, error) {
	next := state.Clone()

	msgs := make([]*message.Message, 0, len(state.Messages)+1)
	msgs = append(msgs, message.NewMessage(message.RoleSystem, routerInstruction))
	msgs = append(msgs, state.Messages...)

	reply, err := o.generate(ctx, msgs, nil)
	if err != nil {
		o.logger.Warn("router call failed, using default route", "error", err, "route", o.defaultRoute)
		next.Route = o.defaultRoute
		return next, nil
	}

	next.Route = parseRoute(reply.Text(), o.defaultRoute)
	o.logger.Info("route chosen", "route", next.Route)
	return next, nil
}

// parseRoute accepts only the three exact labels after trimming and
// lower-casing; everything else resolves to the default.
func parseRoute(raw string, fallback Route) Route {
	switch Route(strings.ToLower(strings.TrimSpace(raw))) {
	case RouteChat:
		return RouteChat
	case RouteRAG:
		return RouteRAG
	case RouteWeb:
		return RouteWeb
	default:
		return fallback
	}
}
