package message

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "hello")

	if msg.Role != RoleUser {
		t.Errorf("expected role user, got %s", msg.Role)
	}
	if msg.Content != "hello" {
		t.Errorf("expected content hello, got %s", msg.Content)
	}
	if msg.ID == "" {
		t.Errorf("expected non-empty ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}
}

func TestNewToolResponseMessage(t *testing.T) {
	msg := NewToolResponseMessage("call-1", "result text")

	if msg.Role != RoleTool {
		t.Errorf("expected role tool, got %s", msg.Role)
	}
	if msg.ToolID != "call-1" {
		t.Errorf("expected tool ID call-1, got %s", msg.ToolID)
	}
}

func TestCloneDeepCopiesToolCalls(t *testing.T) {
	msg := NewMessage(RoleAssistant, "")
	msg.ToolCalls = []ToolCall{
		{ID: "tc-1", Name: "web_search", Args: map[string]any{"query": "early blight"}},
	}

	cloned := Clone(msg)
	cloned.ToolCalls[0].Args["query"] = "changed"

	if msg.ToolCalls[0].Args["query"] != "early blight" {
		t.Errorf("clone should not share tool call args with original")
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Errorf("cloning nil should return nil")
	}
}

func TestHasSystem(t *testing.T) {
	msgs := []*Message{
		NewMessage(RoleUser, "hi"),
		NewMessage(RoleAssistant, "hello"),
	}
	if HasSystem(msgs) {
		t.Errorf("expected no system message")
	}

	msgs = append(msgs, NewMessage(RoleSystem, "context"))
	if !HasSystem(msgs) {
		t.Errorf("expected system message to be found")
	}
}

func TestCloneMessagesEmpty(t *testing.T) {
	if CloneMessages(nil) != nil {
		t.Errorf("expected nil for empty input")
	}
}
