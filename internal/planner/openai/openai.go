// Package openai implements the planning oracle on top of the OpenAI chat
// completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/planner"
)

const (
	defaultModel = "gpt-4o-mini"

	systemPrompt = "You are an autonomous system agent that plans tool invocations."
)

// PlannerConfig is the configuration for the OpenAI planner.
type PlannerConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model used for planning.
	Model string
	// BaseURL overrides the API endpoint (for compatible gateways).
	BaseURL string
	Logger  log.Logger
}

func (c *PlannerConfig) defaults() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "planner.OpenAI"})
	return nil
}

// Planner asks an OpenAI chat model for a plan.
type Planner struct {
	client openai.Client
	model  shared.ChatModel
	logger log.Logger
}

// NewPlanner creates a new OpenAI planner.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Planner{
		client: openai.NewClient(opts...),
		model:  shared.ChatModel(cfg.Model),
		logger: cfg.Logger,
	}, nil
}

// CreatePlan implements planner.Planner. The caller bounds the call with a
// context timeout, a deadline hit surfaces as a timeout planning failure.
func (p *Planner) CreatePlan(ctx context.Context, req planner.Request) (*model.Plan, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, planner.WrapPlanError(planner.FailureUpstreamError, err, "could not build prompt: %v", err)
	}

	p.logger.Debugf("Requesting plan for objective: %s", req.Objective)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, planner.WrapPlanError(planner.FailureTimeout, err, "planning oracle did not answer in time")
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, ctx.Err()
		default:
			return nil, planner.WrapPlanError(planner.FailureUpstreamError, err, "planning oracle call failed: %v", err)
		}
	}

	if len(resp.Choices) == 0 {
		return nil, planner.NewPlanError(planner.FailureUpstreamError, "planning oracle returned no choices")
	}

	plan, err := planner.ParsePlan(req.Objective, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	p.logger.Debugf("Oracle produced a plan with %d action(s)", len(plan.Actions))

	return plan, nil
}

func buildPrompt(req planner.Request) (string, error) {
	var b strings.Builder

	b.WriteString("OBJECTIVE:\n")
	b.WriteString(req.Objective)
	b.WriteString("\n\n")

	if len(req.Context) > 0 {
		contextJSON, err := json.MarshalIndent(req.Context, "", "  ")
		if err != nil {
			return "", fmt.Errorf("could not serialize context: %w", err)
		}
		b.WriteString("CONTEXT:\n")
		b.Write(contextJSON)
		b.WriteString("\n\n")
	}

	b.WriteString("AVAILABLE TOOLS:\n")
	for _, manifest := range req.Tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", manifest.Name, manifest.Description))
		for param, desc := range manifest.Parameters {
			b.WriteString(fmt.Sprintf("    %s: %s\n", param, desc))
		}
	}
	b.WriteString("\n")

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Analyze the objective carefully.\n")
	b.WriteString("2. Produce an ordered list of tool invocations that accomplishes it.\n")
	b.WriteString("3. Use only the available tools with specific, actionable parameters.\n")
	b.WriteString("4. Be concise, fewer actions is better.\n\n")

	b.WriteString("ANSWER WITH VALID JSON ONLY:\n")
	b.WriteString(`{"actions": [{"tool": "tool_name", "params": {}}]}`)
	b.WriteString("\n\nDo NOT include markdown, explanations or additional text.")

	return b.String(), nil
}
