package conversations

import (
	"testing"

	"github.com/voxflow/voxflow-core/core/llms"
)

func TestContextInterleavesTurns(t *testing.T) {
	context := NewContext(WithSystemPrompt("Be brief."))

	context.AppendUser("hello there")
	context.AppendAssistant("Hi! How can I help?")
	context.AppendUser("what time is it")

	messages := context.Snapshot()
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}

	expectedRoles := []llms.Role{llms.RoleSystem, llms.RoleUser, llms.RoleAssistant, llms.RoleUser}
	for i, role := range expectedRoles {
		if messages[i].Role != role {
			t.Fatalf("expected message %d to have role %q, got %q", i, role, messages[i].Role)
		}
	}
}

func TestContextSnapshotIsIsolated(t *testing.T) {
	context := NewContext()
	context.AppendUser("first")

	snapshot := context.Snapshot()
	context.AppendAssistant("second")

	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot to stay at 1 message, got %d", len(snapshot))
	}
	if context.Len() != 2 {
		t.Fatalf("expected context to hold 2 messages, got %d", context.Len())
	}
}
