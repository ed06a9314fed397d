// Package orchestrator drives one conversational turn through the routing,
// retrieval, grading and composition state machine. A turn is classified
// into chat, rag or web; rag context is graded for sufficiency and falls
// back to web search at most once; every terminal path yields a non-empty
// answer.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errs "github.com/neuroleaf/neuroleaf/errors"
	"github.com/neuroleaf/neuroleaf/graph"
	"github.com/neuroleaf/neuroleaf/llm"
	"github.com/neuroleaf/neuroleaf/message"
	"github.com/neuroleaf/neuroleaf/pkg/logging"
	"github.com/neuroleaf/neuroleaf/pkg/telemetry"
	"github.com/neuroleaf/neuroleaf/tool"
	"github.com/neuroleaf/neuroleaf/websearch"
)

// KnowledgeSearcher is the document-retrieval capability: top-k passages
// from the fixed disease corpus.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

const stateKey = "turn"

// Graph node and branch names.
const (
	nodeRouter     = "router"
	nodeDispatch   = "dispatch"
	nodeChat       = "chat"
	nodeRetrieve   = "retrieve"
	nodeGrade      = "grade"
	nodeWeb        = "web"
	nodeComposeWeb = "compose_web"
	nodeDecide     = "decide"
	nodeEnd        = "end"

	branchTerminal = "terminal"
	branchFallback = "fallback"
)

// Orchestrator owns the turn graph and the capabilities its nodes call.
type Orchestrator struct {
	llm          llm.Client
	knowledge    KnowledgeSearcher
	web          websearch.Searcher
	tools        *tool.Registry
	webTools     *tool.Registry
	graph        *graph.Graph
	defaultRoute Route
	callTimeout  time.Duration
	logger       *slog.Logger
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithDefaultRoute sets the route used when the classifier reply is not an
// exact label. The shipped default is rag: when in doubt, prefer the
// knowledge base over small talk.
func WithDefaultRoute(route Route) Option {
	return func(o *Orchestrator) {
		switch route {
		case RouteChat, RouteRAG, RouteWeb:
			o.defaultRoute = route
		}
	}
}

// WithCallTimeout bounds each generation and search call. Zero disables
// the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.callTimeout = d
		}
	}
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wires an orchestrator over the given generation, corpus and web
// capabilities.
func New(client llm.Client, knowledge KnowledgeSearcher, web websearch.Searcher, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if knowledge == nil {
		return nil, fmt.Errorf("knowledge searcher is required")
	}
	if web == nil {
		return nil, fmt.Errorf("web searcher is required")
	}

	o := &Orchestrator{
		llm:          client,
		knowledge:    knowledge,
		web:          web,
		tools:        tool.NewRegistry(),
		webTools:     tool.NewRegistry(),
		defaultRoute: RouteRAG,
		logger:       logging.WithComponent("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	// Handler-less registrations: the registries are the schema catalog
	// presented to the model, while the nodes invoke the capabilities
	// directly so passages and results land in their TurnState slots.
	if err := o.tools.Register(&tool.Tool{
		Name:        toolRetrieveKnowledge,
		Description: "Search the tomato-disease knowledge base for passages relevant to a query.",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
		},
	}); err != nil {
		return nil, fmt.Errorf("register retrieval tool: %w", err)
	}

	if err := o.webTools.Register(&tool.Tool{
		Name:        toolWebSearch,
		Description: "Search the web for current information about tomato plants and their diseases.",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
		},
	}); err != nil {
		return nil, fmt.Errorf("register web tool: %w", err)
	}

	o.graph = o.buildGraph()
	return o, nil
}

// buildGraph wires the turn state machine. All routing decisions live in
// two condition nodes: dispatch fans out on the classified route and decide
// implements the full (route, enough_info) transition table, so the rag
// fallback runs at most once and web results are never graded.
func (o *Orchestrator) buildGraph() *graph.Graph {
	b := graph.NewBuilder()

	b.AddNode(nodeRouter, graph.NodeTypeLLM, o.node(o.routeTurn))
	b.AddConditionNode(nodeDispatch, o.condition(dispatch), map[string]string{
		string(RouteChat): nodeChat,
		string(RouteRAG):  nodeRetrieve,
		string(RouteWeb):  nodeWeb,
	})
	b.AddNode(nodeChat, graph.NodeTypeLLM, o.node(o.chatReply))
	b.AddNode(nodeRetrieve, graph.NodeTypeTool, o.node(o.retrieveDocs))
	b.AddNode(nodeGrade, graph.NodeTypeLLM, o.node(o.gradeAndCompose))
	b.AddNode(nodeWeb, graph.NodeTypeTool, o.node(o.searchWeb))
	b.AddNode(nodeComposeWeb, graph.NodeTypeLLM, o.node(o.composeFromWeb))
	b.AddConditionNode(nodeDecide, o.condition(transition), map[string]string{
		branchTerminal: nodeEnd,
		branchFallback: nodeWeb,
	})
	b.AddNode(nodeEnd, graph.NodeTypeEnd, nil)

	b.AddEdge(nodeRouter, nodeDispatch)
	b.AddEdge(nodeChat, nodeDecide)
	b.AddEdge(nodeRetrieve, nodeGrade)
	b.AddEdge(nodeGrade, nodeDecide)
	b.AddEdge(nodeWeb, nodeComposeWeb)
	b.AddEdge(nodeComposeWeb, nodeDecide)
	b.SetStart(nodeRouter)

	return b.Build()
}

// dispatch selects the branch for a freshly routed turn.
func dispatch(state TurnState) (string, error) {
	switch state.Route {
	case RouteChat, RouteRAG, RouteWeb:
		return string(state.Route), nil
	default:
		return "", errs.ErrRouteUnset
	}
}

// transition is the terminal-vs-fallback table over (route, enough_info):
//
//	chat        -> terminal
//	rag + true  -> terminal
//	rag + false -> fallback (web, no re-grading)
//	web         -> terminal regardless of grading
func transition(state TurnState) (string, error) {
	switch state.Route {
	case RouteChat, RouteWeb:
		return branchTerminal, nil
	case RouteRAG:
		if state.EnoughInfo == nil {
			return "", fmt.Errorf("rag route reached decision without grading verdict")
		}
		if *state.EnoughInfo {
			return branchTerminal, nil
		}
		return branchFallback, nil
	default:
		return "", errs.ErrRouteUnset
	}
}

// TurnResult is what one completed turn hands back to the caller.
type TurnResult struct {
	Answer        string
	History       []*message.Message
	Route         Route
	EnoughInfo    *bool
	RetrievedDocs []string
	WebRetrievals []string
}

// RunTurn drives one user utterance to a final answer. systemContext, when
// non-empty and not already present in history, is injected as the single
// system message before the user turn; callers pass the same context every
// turn and injection stays idempotent. The returned history includes the
// new user and assistant messages and replaces the caller's copy.
func (o *Orchestrator) RunTurn(ctx context.Context, userInput string, history []*message.Message, systemContext string) (*TurnResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.RunTurn")
	var err error
	defer func() { telemetry.End(span, err) }()

	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		err = errs.ErrInvalidInput
		return nil, err
	}

	msgs := message.CloneMessages(history)
	if systemContext != "" && !message.HasSystem(msgs) {
		msgs = append([]*message.Message{message.NewMessage(message.RoleSystem, systemContext)}, msgs...)
	}
	msgs = append(msgs, message.NewMessage(message.RoleUser, userInput))

	initial := TurnState{
		Question: userInput,
		Messages: msgs,
	}

	out, execErr := o.graph.Execute(ctx, graph.State{stateKey: initial})
	if execErr != nil {
		err = execErr
		return nil, err
	}

	final, ok := out[stateKey].(TurnState)
	if !ok {
		err = fmt.Errorf("turn state missing from graph result: %w", errs.ErrInternal)
		return nil, err
	}
	if final.FinalAnswer == "" {
		err = fmt.Errorf("turn ended without an answer: %w", errs.ErrInternal)
		return nil, err
	}

	final.Messages = append(final.Messages, message.NewMessage(message.RoleAssistant, final.FinalAnswer))

	return &TurnResult{
		Answer:        final.FinalAnswer,
		History:       final.Messages,
		Route:         final.Route,
		EnoughInfo:    final.EnoughInfo,
		RetrievedDocs: final.RetrievedDocs,
		WebRetrievals: final.WebRetrievals,
	}, nil
}

// generate is the single funnel for generation calls so the per-call
// timeout applies uniformly.
func (o *Orchestrator) generate(ctx context.Context, msgs []*message.Message, tools []map[string]any) (*message.Message, error) {
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}
	return o.llm.Generate(ctx, msgs, tools)
}

// node adapts a TurnState transition into a graph node function.
func (o *Orchestrator) node(fn func(context.Context, TurnState) (TurnState, error)) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		ts, ok := state[stateKey].(TurnState)
		if !ok {
			return nil, fmt.Errorf("turn state missing: %w", errs.ErrInternal)
		}
		next, err := fn(ctx, ts)
		if err != nil {
			return nil, err
		}
		return graph.State{stateKey: next}, nil
	}
}

// condition adapts a TurnState predicate into a graph condition function.
func (o *Orchestrator) condition(fn func(TurnState) (string, error)) graph.ConditionFunc {
	return func(ctx context.Context, state graph.State) (string, error) {
		ts, ok := state[stateKey].(TurnState)
		if !ok {
			return "", fmt.Errorf("turn state missing: %w", errs.ErrInternal)
		}
		return fn(ts)
	}
}
