package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("HIGH", PriorityLow))
	assert.Equal(t, PriorityUrgent, ParsePriority(" urgent ", PriorityLow))
	assert.Equal(t, PriorityLow, ParsePriority("", PriorityLow))
	assert.Equal(t, PriorityMedium, ParsePriority("critical", PriorityMedium))
}

func TestParseTaskStatus(t *testing.T) {
	for _, raw := range []string{"in_progress", "In Progress", "in-progress"} {
		s, err := ParseTaskStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, TaskInProgress, s)
	}
	_, err := ParseTaskStatus("blocked")
	assert.Error(t, err)
	assert.Equal(t, TaskTodo, ParseTaskStatusOr("", TaskTodo))
}

func TestParseProjectStatus(t *testing.T) {
	s, err := ParseProjectStatus("Completed")
	require.NoError(t, err)
	assert.Equal(t, ProjectCompleted, s)
	_, err = ParseProjectStatus("archived")
	assert.Error(t, err)
	assert.Equal(t, ProjectActive, ParseProjectStatusOr("", ProjectActive))
}

func TestNormalizeMembers(t *testing.T) {
	got := NormalizeMembers("owner", []string{"a", "owner", "b", "a", ""})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNormalizeLaneOrder(t *testing.T) {
	in := []ReorderItem{
		{ID: "t1", Order: 0, Status: TaskTodo},
		{ID: "t2", Order: 1, Status: TaskDone},
		{ID: "t3", Order: 2, Status: TaskTodo},
		{ID: "t4", Order: 3, Status: TaskDone},
		{ID: "t5", Order: 4, Status: TaskInProgress},
	}
	got := NormalizeLaneOrder(in)

	assert.Equal(t, []ReorderItem{
		{ID: "t1", Order: 0, Status: TaskTodo},
		{ID: "t2", Order: 0, Status: TaskDone},
		{ID: "t3", Order: 1, Status: TaskTodo},
		{ID: "t4", Order: 1, Status: TaskDone},
		{ID: "t5", Order: 0, Status: TaskInProgress},
	}, got)
	// input untouched
	assert.Equal(t, 4, in[4].Order)
}

func TestNormalizeLaneOrder_KeepsSubmittedSequenceOnTies(t *testing.T) {
	got := NormalizeLaneOrder([]ReorderItem{
		{ID: "b", Order: 5, Status: TaskDone},
		{ID: "a", Order: 5, Status: TaskDone},
		{ID: "c", Order: 1, Status: TaskDone},
	})
	byID := map[string]int{}
	for _, it := range got {
		byID[it.ID] = it.Order
	}
	assert.Equal(t, map[string]int{"c": 0, "b": 1, "a": 2}, byID)
}

func TestProjectHasMember(t *testing.T) {
	p := &Project{OwnerID: "o", MemberIDs: []string{"m"}}
	assert.True(t, p.HasMember("o"))
	assert.True(t, p.HasMember("m"))
	assert.False(t, p.HasMember("x"))
}
