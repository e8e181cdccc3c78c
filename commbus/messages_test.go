package commbus

import "testing"

func TestGetMessageType(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{&AgentStarted{AgentName: "codegen"}, "AgentStarted"},
		{&AgentCompleted{AgentName: "codegen"}, "AgentCompleted"},
		{&ToolStarted{ToolName: "run_tests"}, "ToolStarted"},
		{&ToolCompleted{ToolName: "run_tests"}, "ToolCompleted"},
		{&ConversationStarted{ConversationID: "c1"}, "ConversationStarted"},
		{&ConversationCompleted{ConversationID: "c1"}, "ConversationCompleted"},
		{&GetPrompt{Name: "codegen.system"}, "GetPrompt"},
		{&ListPrompts{}, "ListPrompts"},
		{&HealthCheckRequest{Component: "broker"}, "HealthCheckRequest"},
	}

	for _, c := range cases {
		if got := GetMessageType(c.msg); got != c.want {
			t.Errorf("GetMessageType(%T) = %q, want %q", c.msg, got, c.want)
		}
	}
}

func TestMessageCategories(t *testing.T) {
	if (&AgentStarted{}).Category() != string(MessageCategoryEvent) {
		t.Error("AgentStarted should be an event")
	}
	if (&GetPrompt{}).Category() != string(MessageCategoryQuery) {
		t.Error("GetPrompt should be a query")
	}
}
