// Package agent runs LLM-backed dispatch assistants over the
// transportation domain. An Agent owns a set of tools and drives the
// model through a tool-call loop; a Team routes work between agents by
// exposing its members to the lead as delegation tools.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	apperrors "machtms/internal/errors"
	"machtms/internal/llm"
	"machtms/pkg/logger"
)

// defaultMaxTurns bounds the tool-call loop when the config does not.
const defaultMaxTurns = 10

// Tool pairs a model-visible definition with the handler that executes
// it. Handlers receive the raw JSON arguments the model produced and
// return a string the model reads on the next turn.
type Tool struct {
	Def     llm.Tool
	Handler func(ctx context.Context, args json.RawMessage) (string, error)
}

// Toolkit is a named group of tools granted to an agent together.
type Toolkit struct {
	Name  string
	Tools []Tool
}

// Runner is anything that can take a task and produce an answer. Both
// Agent and Team implement it, so teams can nest.
type Runner interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) (string, error)
	RunStream(ctx context.Context, input string, handler llm.StreamHandler) (string, error)
}

// Config describes a single agent.
type Config struct {
	Name         string
	Role         string
	Instructions []string
	Toolkits     []Toolkit
	Client       llm.Client
	MaxTurns     int
}

// Agent is one LLM persona with a fixed system prompt and toolset.
type Agent struct {
	name         string
	role         string
	instructions []string
	client       llm.Client
	maxTurns     int
	tools        map[string]Tool
	defs         []llm.Tool
	log          *slog.Logger
}

// New builds an agent from its config.
func New(cfg Config) *Agent {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	a := &Agent{
		name:         cfg.Name,
		role:         cfg.Role,
		instructions: cfg.Instructions,
		client:       cfg.Client,
		maxTurns:     cfg.MaxTurns,
		tools:        make(map[string]Tool),
		log:          logger.Named("agent").With("agent", cfg.Name),
	}
	for _, kit := range cfg.Toolkits {
		for _, tool := range kit.Tools {
			a.tools[tool.Def.Name] = tool
			a.defs = append(a.defs, tool.Def)
		}
	}
	return a
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's role line, shown to leads that
// delegate to it.
func (a *Agent) Description() string { return a.role }

// Run drives the tool-call loop to completion and returns the model's
// final message.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	return a.run(ctx, input, nil)
}

// RunStream is Run with content deltas forwarded to handler as the
// model produces them.
func (a *Agent) RunStream(ctx context.Context, input string, handler llm.StreamHandler) (string, error) {
	return a.run(ctx, input, handler)
}

func (a *Agent) run(ctx context.Context, input string, handler llm.StreamHandler) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: a.systemPrompt()},
		{Role: llm.RoleUser, Content: input},
	}

	for turn := 0; turn < a.maxTurns; turn++ {
		req := llm.Request{Messages: messages, Tools: a.defs}

		var resp *llm.Response
		var err error
		if handler != nil {
			resp, err = a.client.ChatStream(ctx, req, handler)
		} else {
			resp, err = a.client.Chat(ctx, req)
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeExternalService, err,
				"agent "+a.name+": chat completion failed")
		}

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, nil
		}

		messages = append(messages, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			messages = append(messages, a.execute(ctx, call))
		}
	}

	return "", apperrors.New(apperrors.CodeExecutorFailure,
		"agent "+a.name+" did not finish within "+strconv.Itoa(a.maxTurns)+" turns")
}

// execute runs one tool call. Tool failures become tool messages
// instead of aborting the loop, so the model can correct itself.
func (a *Agent) execute(ctx context.Context, call llm.ToolCall) llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
	}

	tool, ok := a.tools[call.Name]
	if !ok {
		a.log.Warn("unknown tool requested", "tool", call.Name)
		msg.Content = "error: unknown tool " + call.Name
		return msg
	}

	result, err := tool.Handler(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		a.log.Warn("tool failed", "tool", call.Name, "error", err)
		msg.Content = "error: " + err.Error()
		return msg
	}

	a.log.Debug("tool executed", "tool", call.Name)
	msg.Content = result
	return msg
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(a.name)
	b.WriteString(". ")
	b.WriteString(a.role)
	if len(a.instructions) > 0 {
		b.WriteString("\n\nInstructions:")
		for _, line := range a.instructions {
			b.WriteString("\n- ")
			b.WriteString(line)
		}
	}
	return b.String()
}
