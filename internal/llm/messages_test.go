package llm

import (
	"testing"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

func TestBuildChatMessages(t *testing.T) {
	history := []models.Turn{
		models.UserTurn("What is a detective control?"),
		models.ModelTurn("A control that finds problems after the fact."),
	}

	messages := buildChatMessages(history, "You draft internal controls.", "Give an example.")

	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}

	expected := []struct {
		role    string
		content string
	}{
		{"system", "You draft internal controls."},
		{"user", "What is a detective control?"},
		{"assistant", "A control that finds problems after the fact."},
		{"user", "Give an example."},
	}

	for i, want := range expected {
		if messages[i].Role != want.role {
			t.Errorf("message %d: expected role %q, got %q", i, want.role, messages[i].Role)
		}
		if messages[i].Content != want.content {
			t.Errorf("message %d: expected content %q, got %q", i, want.content, messages[i].Content)
		}
	}
}

func TestBuildChatMessages_NoSystemPrompt(t *testing.T) {
	messages := buildChatMessages(nil, "", "Hello")

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "Hello" {
		t.Errorf("Unexpected message %+v", messages[0])
	}
}

func TestBuildChatMessages_SkipsEmptyModelTurn(t *testing.T) {
	history := []models.Turn{
		models.UserTurn("A"),
		{Role: models.TurnRoleModel}, // no completions recorded
	}

	messages := buildChatMessages(history, "", "B")

	if len(messages) != 2 {
		t.Fatalf("Expected model turn without completions to be dropped, got %d messages", len(messages))
	}
}

func TestBuildRuntimeMessages(t *testing.T) {
	history := []models.Turn{
		models.UserTurn("A"),
		models.ModelTurn("B"),
	}

	messages := buildRuntimeMessages(history, "S", "C")

	roles := []string{"system", "user", "assistant", "user"}
	contents := []string{"S", "A", "B", "C"}
	if len(messages) != len(roles) {
		t.Fatalf("Expected %d messages, got %d", len(roles), len(messages))
	}
	for i := range roles {
		if messages[i].Role != roles[i] || messages[i].Content != contents[i] {
			t.Errorf("message %d: got %+v, want {%s %s}", i, messages[i], roles[i], contents[i])
		}
	}
}

func TestBuildGeminiHistory(t *testing.T) {
	history := []models.Turn{
		models.UserTurn("A"),
		models.ModelTurn("B"),
		models.UserTurn("C"),
		models.ModelTurn("D"),
	}

	contents := buildGeminiHistory(history)

	if len(contents) != 4 {
		t.Fatalf("Expected 4 history entries, got %d", len(contents))
	}
	wantRoles := []string{"user", "model", "user", "model"}
	for i, want := range wantRoles {
		if contents[i].Role != want {
			t.Errorf("entry %d: expected role %q, got %q", i, want, contents[i].Role)
		}
	}
}
