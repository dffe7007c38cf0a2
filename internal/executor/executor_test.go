package executor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentd/internal/executor"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/tool"
	"github.com/slok/agentd/internal/tool/toolmock"
)

func newRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFunc(tool.Manifest{Name: "ok"}, func(_ context.Context, params map[string]interface{}) (string, error) {
		return fmt.Sprintf("ok(%v)", params["n"]), nil
	})))
	require.NoError(t, reg.Register(tool.NewFunc(tool.Manifest{Name: "boom"}, func(_ context.Context, _ map[string]interface{}) (string, error) {
		return "", fmt.Errorf("something exploded")
	})))

	return reg
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		plan       *model.Plan
		expSuccess bool
		expOutput  string
		expError   string
		expRecords int
	}{
		"All actions succeeding joins their outputs in order.": {
			plan: &model.Plan{Objective: "test", Actions: []model.Action{
				{Tool: "ok", Params: map[string]interface{}{"n": 1}},
				{Tool: "ok", Params: map[string]interface{}{"n": 2}},
				{Tool: "ok", Params: map[string]interface{}{"n": 3}},
			}},
			expSuccess: true,
			expOutput:  "ok(1)\nok(2)\nok(3)",
			expRecords: 3,
		},

		"A failing action aborts the remaining ones and keeps the partial output.": {
			plan: &model.Plan{Objective: "test", Actions: []model.Action{
				{Tool: "ok", Params: map[string]interface{}{"n": 1}},
				{Tool: "boom"},
				{Tool: "ok", Params: map[string]interface{}{"n": 3}},
			}},
			expSuccess: false,
			expOutput:  "ok(1)",
			expError:   "action 2 (boom) failed: something exploded",
			expRecords: 2,
		},

		"An unresolvable tool fails its action like any other failure.": {
			plan: &model.Plan{Objective: "test", Actions: []model.Action{
				{Tool: "missing"},
			}},
			expSuccess: false,
			expError:   "action 1 (missing) failed: tool not registered: tool \"missing\": not found",
			expRecords: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			svc, err := executor.NewService(executor.ServiceConfig{Registry: newRegistry(t)})
			require.NoError(t, err)

			var steps []model.ActionRecord
			result, err := svc.Run(context.TODO(), tt.plan, func(record model.ActionRecord) {
				steps = append(steps, record)
			})

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(tt.expSuccess, result.Success)
			assert.Equal(tt.expOutput, result.Output)
			assert.Equal(tt.expError, result.Error)
			assert.Len(result.ActionsTaken, tt.expRecords)
			assert.Equal(result.ActionsTaken, steps)
		})
	}
}

func TestServiceRunRecords(t *testing.T) {
	svc, err := executor.NewService(executor.ServiceConfig{Registry: newRegistry(t)})
	require.NoError(t, err)

	plan := &model.Plan{Objective: "test", Actions: []model.Action{
		{Tool: "ok", Params: map[string]interface{}{"n": 1}},
		{Tool: "boom"},
	}}

	result, err := svc.Run(context.TODO(), plan, nil)
	require.NoError(t, err)

	okRecord := result.ActionsTaken[0]
	assert.Equal(t, "ok", okRecord.Tool)
	assert.True(t, okRecord.Success)
	assert.Equal(t, "ok(1)", okRecord.Result)
	assert.Empty(t, okRecord.Error)

	boomRecord := result.ActionsTaken[1]
	assert.Equal(t, "boom", boomRecord.Tool)
	assert.False(t, boomRecord.Success)
	assert.Empty(t, boomRecord.Result)
	assert.Equal(t, "something exploded", boomRecord.Error)
}

func TestServiceRunCancellation(t *testing.T) {
	t.Run("An already cancelled context executes nothing.", func(t *testing.T) {
		svc, err := executor.NewService(executor.ServiceConfig{Registry: newRegistry(t)})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := svc.Run(ctx, &model.Plan{Objective: "test", Actions: []model.Action{{Tool: "ok"}}}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	})

	t.Run("Cancellation mid plan stops at the next action boundary.", func(t *testing.T) {
		reg := newRegistry(t)
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, reg.Register(tool.NewFunc(tool.Manifest{Name: "trip"}, func(_ context.Context, _ map[string]interface{}) (string, error) {
			cancel()
			return "tripped", nil
		})))

		svc, err := executor.NewService(executor.ServiceConfig{Registry: reg})
		require.NoError(t, err)

		var steps int
		plan := &model.Plan{Objective: "test", Actions: []model.Action{
			{Tool: "trip"},
			{Tool: "ok", Params: map[string]interface{}{"n": 2}},
		}}
		result, err := svc.Run(ctx, plan, func(model.ActionRecord) { steps++ })

		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
		assert.Equal(t, 1, steps)
	})
}

func TestServiceRunParamsPassthrough(t *testing.T) {
	reg := tool.NewRegistry()
	mockTool := &toolmock.MockTool{Name: "deploy"}
	require.NoError(t, reg.Register(mockTool))

	params := map[string]interface{}{"service": "billing", "replicas": float64(3)}
	mockTool.On("Invoke", mock.Anything, params).Once().Return("deployed", nil)

	svc, err := executor.NewService(executor.ServiceConfig{Registry: reg})
	require.NoError(t, err)

	plan := &model.Plan{Objective: "deploy billing", Actions: []model.Action{
		{Tool: "deploy", Params: params},
	}}
	result, err := svc.Run(context.TODO(), plan, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "deployed", result.Output)
	mockTool.AssertExpectations(t)
}

func TestServiceConfig(t *testing.T) {
	_, err := executor.NewService(executor.ServiceConfig{})
	assert.Error(t, err)
}
