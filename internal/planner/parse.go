package planner

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/slok/agentd/internal/model"
)

// ParsePlan extracts a plan from raw oracle output. It tolerates markdown
// code fences and surrounding prose, and accepts both the list form
// {"actions": [{"tool": ..., "params": {...}}, ...]} and the legacy single
// action form {"tool": ..., "params": {...}}.
func ParsePlan(objective, raw string) (*model.Plan, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{Objective: objective}

	actions := gjson.Get(payload, "actions")
	switch {
	case actions.IsArray():
		var parseErr error
		actions.ForEach(func(_, item gjson.Result) bool {
			action, err := parseAction(item)
			if err != nil {
				parseErr = err
				return false
			}
			plan.Actions = append(plan.Actions, action)
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}
	case gjson.Get(payload, "tool").Exists():
		action, err := parseAction(gjson.Parse(payload))
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, action)
	default:
		return nil, NewPlanError(FailureMalformedOutput, "oracle output has neither an actions array nor a tool field")
	}

	if err := plan.Validate(); err != nil {
		return nil, WrapPlanError(FailureMalformedOutput, err, "invalid plan: %v", err)
	}

	return plan, nil
}

func parseAction(item gjson.Result) (model.Action, error) {
	toolName := item.Get("tool").String()
	if toolName == "" {
		return model.Action{}, NewPlanError(FailureMalformedOutput, "action is missing the tool name")
	}

	action := model.Action{Tool: toolName, Params: map[string]interface{}{}}

	params := item.Get("params")
	if params.Exists() {
		values, ok := params.Value().(map[string]interface{})
		if !ok {
			return model.Action{}, NewPlanError(FailureMalformedOutput, "action %q params must be an object", toolName)
		}
		action.Params = values
	}

	return action, nil
}

// extractJSONObject recovers the JSON object from oracle output that may be
// wrapped in markdown fences or prose.
func extractJSONObject(raw string) (string, error) {
	clean := strings.TrimSpace(raw)

	// Strip markdown code fences.
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
		clean = strings.TrimSpace(clean)
	}

	if !gjson.Valid(clean) {
		// Last resort: take the outermost braces.
		start := strings.Index(clean, "{")
		end := strings.LastIndex(clean, "}")
		if start == -1 || end <= start {
			return "", NewPlanError(FailureMalformedOutput, "no JSON object found in oracle output")
		}
		clean = clean[start : end+1]
		if !gjson.Valid(clean) {
			return "", NewPlanError(FailureMalformedOutput, "oracle output is not valid JSON")
		}
	}

	return clean, nil
}
