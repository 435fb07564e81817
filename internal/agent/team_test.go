package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"machtms/internal/auth"
	apperrors "machtms/internal/errors"
	"machtms/internal/llm"
	"machtms/internal/tms"
)

// fakeClient replays scripted responses and records every request.
type fakeClient struct {
	responses []llm.Response
	requests  []llm.Request
}

func (f *fakeClient) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, apperrors.New(apperrors.CodeExternalService, "script exhausted")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return &resp, nil
}

func (f *fakeClient) ChatStream(ctx context.Context, req llm.Request, handler llm.StreamHandler) (*llm.Response, error) {
	resp, err := f.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Message.Content != "" && handler != nil {
		for _, word := range strings.SplitAfter(resp.Message.Content, " ") {
			if err := handler(word); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

func finalResponse(content string) llm.Response {
	return llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		FinishReason: "stop",
	}
}

func toolCallResponse(name, args string) llm.Response {
	return llm.Response{
		Message: llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: name, Arguments: args},
			},
		},
		FinishReason: "tool_calls",
	}
}

func echoToolkit(t *testing.T, got *string) Toolkit {
	t.Helper()
	return Toolkit{
		Name: "echo",
		Tools: []Tool{{
			Def: llm.Tool{
				Name:        "echo",
				Description: "Repeats its input.",
				Parameters:  json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}}`),
			},
			Handler: func(_ context.Context, args json.RawMessage) (string, error) {
				var params struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal(args, &params); err != nil {
					return "", err
				}
				*got = params.Text
				return "echo: " + params.Text, nil
			},
		}},
	}
}

func TestAgentRunExecutesToolCalls(t *testing.T) {
	var got string
	client := &fakeClient{responses: []llm.Response{
		toolCallResponse("echo", `{"text": "hello"}`),
		finalResponse("done"),
	}}
	agent := New(Config{
		Name:     "Echoer",
		Role:     "You echo.",
		Toolkits: []Toolkit{echoToolkit(t, &got)},
		Client:   client,
	})

	out, err := agent.Run(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "done" {
		t.Fatalf("out = %q, want done", out)
	}
	if got != "hello" {
		t.Fatalf("tool saw %q, want hello", got)
	}

	if len(client.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(client.requests))
	}
	second := client.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call-1" {
		t.Fatalf("last message = %+v, want tool result for call-1", last)
	}
	if last.Content != "echo: hello" {
		t.Fatalf("tool result = %q", last.Content)
	}
}

func TestAgentToolErrorsFeedBackToModel(t *testing.T) {
	client := &fakeClient{responses: []llm.Response{
		toolCallResponse("boom", `{}`),
		finalResponse("that tool is broken"),
	}}
	agent := New(Config{
		Name: "Fragile",
		Role: "You break.",
		Toolkits: []Toolkit{{Name: "boom", Tools: []Tool{{
			Def: llm.Tool{Name: "boom", Parameters: json.RawMessage(`{"type": "object"}`)},
			Handler: func(context.Context, json.RawMessage) (string, error) {
				return "", apperrors.New(apperrors.CodeNotFound, "nothing here")
			},
		}}}},
		Client: client,
	})

	out, err := agent.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "that tool is broken" {
		t.Fatalf("out = %q", out)
	}
	msgs := client.requests[1].Messages
	last := msgs[len(msgs)-1]
	if !strings.HasPrefix(last.Content, "error:") {
		t.Fatalf("tool message = %q, want error prefix", last.Content)
	}
}

func TestAgentStopsAtTurnBudget(t *testing.T) {
	client := &fakeClient{responses: []llm.Response{
		toolCallResponse("echo", `{"text": "a"}`),
		toolCallResponse("echo", `{"text": "b"}`),
		toolCallResponse("echo", `{"text": "c"}`),
	}}
	var got string
	agent := New(Config{
		Name:     "Looper",
		Role:     "You loop.",
		Toolkits: []Toolkit{echoToolkit(t, &got)},
		Client:   client,
		MaxTurns: 2,
	})

	if _, err := agent.Run(context.Background(), "loop"); err == nil {
		t.Fatal("expected turn budget error")
	} else if apperrors.CodeOf(err) != apperrors.CodeExecutorFailure {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeExecutorFailure)
	}
}

func TestTeamDelegatesToMember(t *testing.T) {
	memberClient := &fakeClient{responses: []llm.Response{
		finalResponse("three loads today"),
	}}
	member := New(Config{
		Name:   "Dispatcher",
		Role:   "You answer schedule questions.",
		Client: memberClient,
	})

	leadClient := &fakeClient{responses: []llm.Response{
		toolCallResponse("delegate_to_dispatcher", `{"task": "how many loads today?"}`),
		finalResponse("The dispatcher reports three loads today."),
	}}
	team := NewTeam(TeamConfig{
		Name:    "Lead Team",
		Role:    "You route requests.",
		Members: []Runner{member},
		Client:  leadClient,
	})

	out, err := team.Run(context.Background(), "how busy are we?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "The dispatcher reports three loads today." {
		t.Fatalf("out = %q", out)
	}

	if len(memberClient.requests) != 1 {
		t.Fatalf("member requests = %d, want 1", len(memberClient.requests))
	}
	memberInput := memberClient.requests[0].Messages[1]
	if memberInput.Content != "how many loads today?" {
		t.Fatalf("member input = %q", memberInput.Content)
	}

	msgs := leadClient.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleTool || last.Content != "three loads today" {
		t.Fatalf("delegation result = %+v", last)
	}
}

func TestRunStreamForwardsDeltas(t *testing.T) {
	client := &fakeClient{responses: []llm.Response{
		finalResponse("load created"),
	}}
	agent := New(Config{Name: "Streamer", Role: "You stream.", Client: client})

	var deltas []string
	out, err := agent.RunStream(context.Background(), "go", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}
	if out != "load created" {
		t.Fatalf("out = %q", out)
	}
	if strings.Join(deltas, "") != "load created" {
		t.Fatalf("deltas = %q", deltas)
	}
}

func TestToolsRequireOrganizationScope(t *testing.T) {
	svc := tms.NewService(tms.NewMemoryStore(), nil)
	kit := AddressTools(svc)

	var ensure Tool
	for _, tool := range kit.Tools {
		if tool.Def.Name == "ensure_address" {
			ensure = tool
		}
	}
	if ensure.Handler == nil {
		t.Fatal("ensure_address tool missing")
	}

	args := json.RawMessage(`{"street": "100 Dock Rd", "city": "Fontana", "state": "CA"}`)
	if _, err := ensure.Handler(context.Background(), args); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("unscoped call error = %v, want %s", err, apperrors.CodeUnauthenticated)
	}

	ctx := auth.WithSubject(context.Background(), &auth.Subject{UserID: "u-1", OrgID: "org-1"})
	result, err := ensure.Handler(ctx, args)
	if err != nil {
		t.Fatalf("scoped call: %v", err)
	}
	var address tms.Address
	if err := json.Unmarshal([]byte(result), &address); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if address.ID == "" || address.OrgID != "org-1" {
		t.Fatalf("address = %+v", address)
	}
}

func TestLeadTeamRosterBuilds(t *testing.T) {
	svc := tms.NewService(tms.NewMemoryStore(), nil)
	team := NewLeadTeam(Dependencies{
		TMS:    svc,
		Client: &fakeClient{},
		Overrides: Overrides{Agents: map[string]Override{
			"Dispatcher": {Role: "Custom dispatcher role."},
		}},
	})
	if team.Name() != "Lead Team" {
		t.Fatalf("name = %q", team.Name())
	}

	wantTools := []string{
		"delegate_to_dispatcher",
		"delegate_to_swap_planner",
		"delegate_to_lookup_agent",
		"delegate_to_load_creation_team",
	}
	for _, name := range wantTools {
		if _, ok := team.lead.tools[name]; !ok {
			t.Fatalf("lead missing tool %s", name)
		}
	}
}
