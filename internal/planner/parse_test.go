package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/planner"
	"github.com/slok/agentd/internal/tool"
)

func TestParsePlan(t *testing.T) {
	tests := map[string]struct {
		raw        string
		expActions []model.Action
		expCode    planner.FailureCode
	}{
		"Actions array form": {
			raw: `{"actions": [{"tool": "write_file", "params": {"path": "a.txt", "content": "hi"}}, {"tool": "git_status"}]}`,
			expActions: []model.Action{
				{Tool: "write_file", Params: map[string]interface{}{"path": "a.txt", "content": "hi"}},
				{Tool: "git_status", Params: map[string]interface{}{}},
			},
		},
		"Legacy single action form": {
			raw: `{"tool": "list_dir", "params": {"path": "."}}`,
			expActions: []model.Action{
				{Tool: "list_dir", Params: map[string]interface{}{"path": "."}},
			},
		},
		"Markdown fenced output": {
			raw: "```json\n{\"tool\": \"shell\", \"params\": {\"command\": \"ls\"}}\n```",
			expActions: []model.Action{
				{Tool: "shell", Params: map[string]interface{}{"command": "ls"}},
			},
		},
		"Object surrounded by prose": {
			raw: `Sure! Here is the plan: {"tool": "git_status", "params": {}} hope it helps.`,
			expActions: []model.Action{
				{Tool: "git_status", Params: map[string]interface{}{}},
			},
		},
		"Not JSON at all": {
			raw:     "I cannot help with that.",
			expCode: planner.FailureMalformedOutput,
		},
		"Empty actions array": {
			raw:     `{"actions": []}`,
			expCode: planner.FailureMalformedOutput,
		},
		"Action without tool name": {
			raw:     `{"actions": [{"params": {"path": "."}}]}`,
			expCode: planner.FailureMalformedOutput,
		},
		"Params not an object": {
			raw:     `{"tool": "shell", "params": "ls"}`,
			expCode: planner.FailureMalformedOutput,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			plan, err := planner.ParsePlan("test objective", tt.raw)

			if tt.expCode != "" {
				require.Error(t, err)
				planErr, ok := planner.AsPlanError(err)
				require.True(t, ok)
				assert.Equal(t, tt.expCode, planErr.Code)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "test objective", plan.Objective)
			assert.Equal(t, tt.expActions, plan.Actions)
		})
	}
}

func TestValidatePlan(t *testing.T) {
	reg := tool.NewRegistry()
	for _, name := range []string{"shell", "write_file"} {
		n := name
		err := reg.Register(tool.NewFunc(tool.Manifest{Name: n}, nil))
		require.NoError(t, err)
	}

	t.Run("Known tools validate", func(t *testing.T) {
		plan := &model.Plan{Actions: []model.Action{{Tool: "shell"}, {Tool: "write_file"}}}
		assert.NoError(t, planner.ValidatePlan(plan, reg))
	})

	t.Run("Unknown tool is a typed failure", func(t *testing.T) {
		plan := &model.Plan{Actions: []model.Action{{Tool: "shell"}, {Tool: "rm_rf_everything"}}}
		err := planner.ValidatePlan(plan, reg)
		require.Error(t, err)
		planErr, ok := planner.AsPlanError(err)
		require.True(t, ok)
		assert.Equal(t, planner.FailureUnknownTool, planErr.Code)
		assert.Contains(t, planErr.Message, "rm_rf_everything")
	})

	t.Run("Empty plan is malformed", func(t *testing.T) {
		err := planner.ValidatePlan(&model.Plan{}, reg)
		planErr, ok := planner.AsPlanError(err)
		require.True(t, ok)
		assert.Equal(t, planner.FailureMalformedOutput, planErr.Code)
	})
}
