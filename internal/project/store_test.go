package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ds, err := store.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return NewStore(ds, zerolog.Nop())
}

func demoInput() CreateInput {
	return CreateInput{
		Name:             "Demo",
		Description:      "d",
		Requirements:     "a blog with posts and comments",
		AppType:          "web",
		TargetPlatforms:  []string{"web"},
		ArchitectureType: "modular",
	}
}

func TestCreateThenGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, demoInput())
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, created, got)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Empty(t, got.Logs)
	assert.Nil(t, got.GeneratedCode)
}

func TestCreate_Defaults(t *testing.T) {
	s := setupTestStore(t)
	in := demoInput()
	in.AppType = ""
	in.ArchitectureType = ""

	p, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "web", p.AppType)
	assert.Equal(t, "modular", p.ArchitectureType)
}

func TestCreate_Validation(t *testing.T) {
	s := setupTestStore(t)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   string
	}{
		{"missing name", func(in *CreateInput) { in.Name = "" }, "name is required"},
		{"missing description", func(in *CreateInput) { in.Description = "" }, "description is required"},
		{"nil platforms", func(in *CreateInput) { in.TargetPlatforms = nil }, "target_platforms is required"},
		{"empty platforms", func(in *CreateInput) { in.TargetPlatforms = []string{} }, "at least 1"},
		{"unknown platform", func(in *CreateInput) { in.TargetPlatforms = []string{"web", "watch"} }, "target_platforms[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := demoInput()
			tt.mutate(&in)
			_, err := s.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGet_Missing(t *testing.T) {
	s := setupTestStore(t)
	p, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestList_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		in := demoInput()
		in.Name = fmt.Sprintf("p%d", i)
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.GreaterOrEqual(t, list[i-1].CreatedAt, list[i].CreatedAt)
	}
}

func TestUpdate_ConfigurationOnly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, demoInput())
	require.NoError(t, err)

	name := "Renamed"
	updated, err := s.Update(ctx, p.ID, UpdateInput{Name: &name, TargetPlatforms: []string{"web", "desktop"}})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, []string{"web", "desktop"}, updated.TargetPlatforms)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, StatusPending, updated.Status)

	missing, err := s.Update(ctx, "nope", UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.Update(ctx, p.ID, UpdateInput{TargetPlatforms: []string{"tv"}})
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, demoInput())
	require.NoError(t, err)
	_, err = s.AppendLog(ctx, p.ID, "hello")
	require.NoError(t, err)

	ok, err := s.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	logs, err := s.RecentLogs(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestApplyState_GeneratedCodeOnlyWhenCompleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, demoInput())
	require.NoError(t, err)

	code := json.RawMessage(`{"stages":{}}`)

	// Code supplied with a non-completed status is dropped.
	ok, err := s.ApplyState(ctx, p.ID, StateUpdate{Status: StatusInProgress, Progress: Int(10), GeneratedCode: code})
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := s.Get(ctx, p.ID)
	assert.Nil(t, got.GeneratedCode)

	_, err = s.ApplyState(ctx, p.ID, StateUpdate{Status: StatusCompleted, Progress: Int(100), GeneratedCode: code, Logs: []string{"done"}})
	require.NoError(t, err)
	got, _ = s.Get(ctx, p.ID)
	assert.JSONEq(t, string(code), string(got.GeneratedCode))
	assert.Equal(t, 100, got.Progress)

	_, err = s.ApplyState(ctx, p.ID, StateUpdate{Status: StatusFailed})
	require.NoError(t, err)
	got, _ = s.Get(ctx, p.ID)
	assert.Nil(t, got.GeneratedCode)
	assert.Equal(t, 100, got.Progress, "progress is untouched when not set")
}

func TestApplyState_ClampsProgress(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, demoInput())

	_, err := s.ApplyState(ctx, p.ID, StateUpdate{Progress: Int(140)})
	require.NoError(t, err)
	got, _ := s.Get(ctx, p.ID)
	assert.Equal(t, 100, got.Progress)
}

func TestApplyState_Missing(t *testing.T) {
	s := setupTestStore(t)
	ok, err := s.ApplyState(context.Background(), "nope", StateUpdate{Status: StatusFailed})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, demoInput())

	_, err := s.ApplyState(ctx, p.ID, StateUpdate{
		Status:        StatusCompleted,
		Progress:      Int(100),
		Logs:          []string{"a", "b"},
		GeneratedCode: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	ok, err := s.Reset(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := s.Get(ctx, p.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Empty(t, got.Logs)
	assert.Nil(t, got.GeneratedCode)
}

func TestRecentLogs_Tail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, demoInput())

	for i := 0; i < 15; i++ {
		_, err := s.AppendLog(ctx, p.ID, fmt.Sprintf("line %d", i))
		require.NoError(t, err)
	}

	tail, err := s.RecentLogs(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 10)
	assert.Equal(t, "line 5", tail[0].Message)
	assert.Equal(t, "line 14", tail[9].Message)
}

func TestApplyState_Concurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p, _ := s.Create(ctx, demoInput())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ApplyState(ctx, p.ID, StateUpdate{
				Status:   StatusInProgress,
				Progress: Int(i),
				Logs:     []string{fmt.Sprintf("step %d", i)},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, _ := s.Get(ctx, p.ID)
	assert.Len(t, got.Logs, 20)
}
