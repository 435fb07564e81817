package agent

import (
	"context"
	"encoding/json"
	"strings"

	"machtms/internal/llm"
)

// TeamConfig describes a team: a lead agent plus the members it can
// delegate to. The lead may also carry toolkits of its own.
type TeamConfig struct {
	Name         string
	Role         string
	Instructions []string
	Members      []Runner
	Toolkits     []Toolkit
	Client       llm.Client
	MaxTurns     int
}

// Team is an agent whose toolset includes its members. The model
// delegates by calling delegate_to_<member>, and the member's answer
// comes back as the tool result.
type Team struct {
	lead *Agent
}

// NewTeam builds the team and its lead.
func NewTeam(cfg TeamConfig) *Team {
	toolkits := make([]Toolkit, 0, len(cfg.Toolkits)+1)
	if len(cfg.Members) > 0 {
		toolkits = append(toolkits, delegationToolkit(cfg.Members))
	}
	toolkits = append(toolkits, cfg.Toolkits...)

	instructions := append([]string{}, cfg.Instructions...)
	if len(cfg.Members) > 0 {
		instructions = append(instructions,
			"Delegate work to your team members with the delegate_to_* tools. Each member answers one task at a time; give it everything it needs in the task text.")
	}

	return &Team{lead: New(Config{
		Name:         cfg.Name,
		Role:         cfg.Role,
		Instructions: instructions,
		Toolkits:     toolkits,
		Client:       cfg.Client,
		MaxTurns:     cfg.MaxTurns,
	})}
}

// Name returns the team's display name.
func (t *Team) Name() string { return t.lead.Name() }

// Description returns the lead's role line.
func (t *Team) Description() string { return t.lead.Description() }

// Run routes the input through the lead's tool-call loop.
func (t *Team) Run(ctx context.Context, input string) (string, error) {
	return t.lead.Run(ctx, input)
}

// RunStream is Run with the lead's content deltas streamed to handler.
// Member runs are not streamed; only the lead talks to the caller.
func (t *Team) RunStream(ctx context.Context, input string, handler llm.StreamHandler) (string, error) {
	return t.lead.RunStream(ctx, input, handler)
}

func delegationToolkit(members []Runner) Toolkit {
	kit := Toolkit{Name: "delegation"}
	for _, member := range members {
		kit.Tools = append(kit.Tools, delegationTool(member))
	}
	return kit
}

func delegationTool(member Runner) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        "delegate_to_" + slug(member.Name()),
			Description: "Hand a task to " + member.Name() + ". " + member.Description(),
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task": {"type": "string", "description": "The task for the member, with all context it needs."}
				},
				"required": ["task"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Task string `json:"task"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}
			return member.Run(ctx, params.Task)
		},
	}
}

func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
