package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/storage"
	"github.com/slok/agentd/internal/storage/memory"
)

func newRepository(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	return repo
}

func TestCreateTask(t *testing.T) {
	tests := map[string]struct {
		objective string
		context   map[string]interface{}
		expErr    bool
	}{
		"Valid objective creates a pending task": {
			objective: "list files in the repository",
			context:   map[string]interface{}{"project": "agentd"},
		},
		"Too short objective is rejected": {objective: "no", expErr: true},
		"Too long objective is rejected":  {objective: string(make([]byte, 1001)), expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepository(t)

			task, err := repo.CreateTask(context.TODO(), tt.objective, tt.context)

			if tt.expErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrNotValid)

				// No state pollution: nothing was stored.
				stats, err := repo.Stats(context.TODO())
				require.NoError(t, err)
				assert.Equal(t, 0, stats.Total)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, task.ID)
			assert.Equal(t, tt.objective, task.Objective)
			assert.Equal(t, tt.context, task.Context)
			assert.Equal(t, model.TaskStatePending, task.State)
			assert.Nil(t, task.Result)
			assert.Empty(t, task.Steps)
			require.Len(t, task.Logs, 1)
			assert.Contains(t, task.Logs[0].Message, "Task created")
			assert.False(t, task.UpdatedAt.Before(task.CreatedAt))
		})
	}
}

func TestCreateTaskConcurrent(t *testing.T) {
	const total = 100

	repo := newRepository(t)

	var wg sync.WaitGroup
	ids := make(chan string, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := repo.CreateTask(context.TODO(), fmt.Sprintf("objective number %d", i), nil)
			assert.NoError(t, err)
			ids <- task.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, total)

	stats, err := repo.Stats(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, total, stats.Total)
	assert.Equal(t, total, stats.Pending)
}

func TestGetTask(t *testing.T) {
	repo := newRepository(t)
	created, err := repo.CreateTask(context.TODO(), "check git status", nil)
	require.NoError(t, err)

	t.Run("Existing task is returned", func(t *testing.T) {
		task, err := repo.GetTask(context.TODO(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, task.ID)
	})

	t.Run("Missing task returns not found", func(t *testing.T) {
		_, err := repo.GetTask(context.TODO(), "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Returned task is a copy", func(t *testing.T) {
		task, err := repo.GetTask(context.TODO(), created.ID)
		require.NoError(t, err)
		task.Logs[0].Message = "mutated on the caller side"
		task.State = model.TaskStateFailed

		again, err := repo.GetTask(context.TODO(), created.ID)
		require.NoError(t, err)
		assert.Contains(t, again.Logs[0].Message, "Task created")
		assert.Equal(t, model.TaskStatePending, again.State)
	})
}

func TestListTasks(t *testing.T) {
	repo := newRepository(t)

	var ids []string
	for i := 0; i < 5; i++ {
		task, err := repo.CreateTask(context.TODO(), fmt.Sprintf("objective number %d", i), nil)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	// Move two tasks out of pending.
	require.NoError(t, repo.Transition(context.TODO(), ids[0], model.TaskStateRunning))
	require.NoError(t, repo.Cancel(context.TODO(), ids[1]))

	t.Run("Insertion order is preserved", func(t *testing.T) {
		tasks, err := repo.ListTasks(context.TODO(), storage.ListOptions{})
		require.NoError(t, err)
		require.Len(t, tasks, 5)
		for i, task := range tasks {
			assert.Equal(t, ids[i], task.ID)
		}
	})

	t.Run("State filter applies", func(t *testing.T) {
		state := model.TaskStatePending
		tasks, err := repo.ListTasks(context.TODO(), storage.ListOptions{State: &state})
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})

	t.Run("Limit caps results", func(t *testing.T) {
		tasks, err := repo.ListTasks(context.TODO(), storage.ListOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, ids[0], tasks[0].ID)
		assert.Equal(t, ids[1], tasks[1].ID)
	})
}

func TestTransition(t *testing.T) {
	tests := map[string]struct {
		prepare func(t *testing.T, repo *memory.Repository, id string)
		next    model.TaskState
		expErr  error
	}{
		"Pending to running": {next: model.TaskStateRunning},
		"Pending to cancelled": {next: model.TaskStateCancelled},
		"Pending to completed is illegal": {next: model.TaskStateCompleted, expErr: model.ErrIllegalTransition},
		"Pending to pending is illegal":   {next: model.TaskStatePending, expErr: model.ErrIllegalTransition},
		"Running to failed": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
			},
			next: model.TaskStateFailed,
		},
		"Terminal state has no outgoing edges": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Cancel(context.TODO(), id))
			},
			next:   model.TaskStateRunning,
			expErr: model.ErrIllegalTransition,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepository(t)
			task, err := repo.CreateTask(context.TODO(), "transition me", nil)
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, repo, task.ID)
			}

			err = repo.Transition(context.TODO(), task.ID, tt.next)

			if tt.expErr != nil {
				assert.ErrorIs(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			got, err := repo.GetTask(context.TODO(), task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.next, got.State)
			assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
		})
	}

	t.Run("Missing task returns not found", func(t *testing.T) {
		repo := newRepository(t)
		err := repo.Transition(context.TODO(), "missing", model.TaskStateRunning)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestAppendLogAndStepOrdering(t *testing.T) {
	repo := newRepository(t)
	task, err := repo.CreateTask(context.TODO(), "append entries", nil)
	require.NoError(t, err)

	messages := []string{"m1", "m2", "m3"}
	for _, m := range messages {
		require.NoError(t, repo.AppendLog(context.TODO(), task.ID, m))
		require.NoError(t, repo.AppendStep(context.TODO(), task.ID, "step "+m))
	}

	got, err := repo.GetTask(context.TODO(), task.ID)
	require.NoError(t, err)

	// First log entry is the creation one.
	require.Len(t, got.Logs, 4)
	for i, m := range messages {
		assert.Equal(t, m, got.Logs[i+1].Message)
	}
	require.Len(t, got.Steps, 3)
	for i, m := range messages {
		assert.Equal(t, "step "+m, got.Steps[i].Description)
	}

	t.Run("Empty entries are rejected", func(t *testing.T) {
		assert.ErrorIs(t, repo.AppendLog(context.TODO(), task.ID, ""), model.ErrNotValid)
		assert.ErrorIs(t, repo.AppendStep(context.TODO(), task.ID, ""), model.ErrNotValid)
	})

	t.Run("Missing task returns not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.AppendLog(context.TODO(), "missing", "m"), model.ErrNotFound)
		assert.ErrorIs(t, repo.AppendStep(context.TODO(), "missing", "s"), model.ErrNotFound)
	})
}

func TestComplete(t *testing.T) {
	successResult := model.TaskResult{Success: true, Output: "done"}
	failedResult := model.TaskResult{Success: false, Error: "boom"}

	tests := map[string]struct {
		prepare  func(t *testing.T, repo *memory.Repository, id string)
		result   model.TaskResult
		expErr   error
		expState model.TaskState
	}{
		"Successful result completes the task": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
			},
			result:   successResult,
			expState: model.TaskStateCompleted,
		},
		"Failed result fails the task": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
			},
			result:   failedResult,
			expState: model.TaskStateFailed,
		},
		"Completing a pending task is illegal": {
			result: successResult,
			expErr: model.ErrIllegalTransition,
		},
		"Completing a cancelled task fails": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Cancel(context.TODO(), id))
			},
			result: successResult,
			expErr: model.ErrAlreadyTerminal,
		},
		"Invalid result is rejected": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
			},
			result: model.TaskResult{Success: true, Error: "should not be here"},
			expErr: model.ErrNotValid,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepository(t)
			task, err := repo.CreateTask(context.TODO(), "complete me", nil)
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, repo, task.ID)
			}

			err = repo.Complete(context.TODO(), task.ID, tt.result)

			if tt.expErr != nil {
				assert.ErrorIs(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)

			got, err := repo.GetTask(context.TODO(), task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expState, got.State)
			require.NotNil(t, got.Result)
			assert.Equal(t, tt.result.Success, got.Result.Success)
			assert.Contains(t, got.Logs[len(got.Logs)-1].Message, "Task finished")
		})
	}

	t.Run("Second complete fails and preserves the original result", func(t *testing.T) {
		repo := newRepository(t)
		task, err := repo.CreateTask(context.TODO(), "complete me once", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Transition(context.TODO(), task.ID, model.TaskStateRunning))
		require.NoError(t, repo.Complete(context.TODO(), task.ID, successResult))

		err = repo.Complete(context.TODO(), task.ID, failedResult)
		assert.ErrorIs(t, err, model.ErrAlreadyTerminal)

		got, err := repo.GetTask(context.TODO(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStateCompleted, got.State)
		assert.Equal(t, "done", got.Result.Output)
	})
}

func TestCancel(t *testing.T) {
	tests := map[string]struct {
		prepare func(t *testing.T, repo *memory.Repository, id string)
		expErr  error
	}{
		"Pending task can be cancelled": {},
		"Running task can be cancelled": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
			},
		},
		"Completed task cannot be cancelled": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
				require.NoError(t, repo.Complete(context.TODO(), id, model.TaskResult{Success: true, Output: "ok"}))
			},
			expErr: model.ErrNotCancellable,
		},
		"Failed task cannot be cancelled": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Transition(context.TODO(), id, model.TaskStateRunning))
				require.NoError(t, repo.Complete(context.TODO(), id, model.TaskResult{Success: false, Error: "boom"}))
			},
			expErr: model.ErrNotCancellable,
		},
		"Cancelled task cannot be cancelled again": {
			prepare: func(t *testing.T, repo *memory.Repository, id string) {
				require.NoError(t, repo.Cancel(context.TODO(), id))
			},
			expErr: model.ErrNotCancellable,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newRepository(t)
			task, err := repo.CreateTask(context.TODO(), "cancel me", nil)
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, repo, task.ID)
			}

			before, err := repo.GetTask(context.TODO(), task.ID)
			require.NoError(t, err)

			err = repo.Cancel(context.TODO(), task.ID)

			if tt.expErr != nil {
				assert.ErrorIs(t, err, tt.expErr)

				// Record is left unchanged.
				after, getErr := repo.GetTask(context.TODO(), task.ID)
				require.NoError(t, getErr)
				assert.Equal(t, before.State, after.State)
				assert.Equal(t, len(before.Logs), len(after.Logs))
				return
			}
			require.NoError(t, err)

			got, err := repo.GetTask(context.TODO(), task.ID)
			require.NoError(t, err)
			assert.Equal(t, model.TaskStateCancelled, got.State)
			assert.Nil(t, got.Result)
		})
	}
}

func TestStatsPartition(t *testing.T) {
	repo := newRepository(t)

	var ids []string
	for i := 0; i < 6; i++ {
		task, err := repo.CreateTask(context.TODO(), fmt.Sprintf("objective number %d", i), nil)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	require.NoError(t, repo.Transition(context.TODO(), ids[0], model.TaskStateRunning))
	require.NoError(t, repo.Transition(context.TODO(), ids[1], model.TaskStateRunning))
	require.NoError(t, repo.Complete(context.TODO(), ids[1], model.TaskResult{Success: true, Output: "ok"}))
	require.NoError(t, repo.Transition(context.TODO(), ids[2], model.TaskStateRunning))
	require.NoError(t, repo.Complete(context.TODO(), ids[2], model.TaskResult{Success: false, Error: "boom"}))
	require.NoError(t, repo.Cancel(context.TODO(), ids[3]))

	stats, err := repo.Stats(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, stats.Total, stats.Pending+stats.Running+stats.Completed+stats.Failed+stats.Cancelled)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	repo := newRepository(t)
	task, err := repo.CreateTask(context.TODO(), "concurrent access", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(context.TODO(), task.ID, model.TaskStateRunning))

	const writes = 50

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			assert.NoError(t, repo.AppendLog(context.TODO(), task.ID, fmt.Sprintf("log %d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			got, err := repo.GetTask(context.TODO(), task.ID)
			assert.NoError(t, err)
			// Logs are observed in append order on every snapshot.
			last := -1
			for _, entry := range got.Logs[1:] {
				var n int
				_, err := fmt.Sscanf(entry.Message, "log %d", &n)
				assert.NoError(t, err)
				assert.Greater(t, n, last)
				last = n
			}
		}
	}()

	wg.Wait()

	got, err := repo.GetTask(context.TODO(), task.ID)
	require.NoError(t, err)
	assert.Len(t, got.Logs, writes+1)
}
