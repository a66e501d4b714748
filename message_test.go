package circl

import (
	"encoding/json"
	"testing"
)

func TestParseMessage_TypedFrame(t *testing.T) {
	msg, err := parseMessage([]byte(`{"type":"typing_update","conversationId":"c1","userId":"u1","isTyping":true}`))
	if err != nil {
		t.Fatalf("parseMessage() error: %v", err)
	}
	if msg.Type != TypeTypingUpdate {
		t.Errorf("Type = %q, want %q", msg.Type, TypeTypingUpdate)
	}
	if string(msg.Field("conversationId")) != `"c1"` {
		t.Errorf("Field(conversationId) = %s", msg.Field("conversationId"))
	}
	if msg.Field("missing") != nil {
		t.Error("Field(missing) should be nil")
	}

	var u TypingUpdate
	if err := msg.Unmarshal(&u); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if u != (TypingUpdate{ConversationID: "c1", UserID: "u1", IsTyping: true}) {
		t.Errorf("TypingUpdate = %+v", u)
	}
}

func TestMessage_TypedProjectionIsLenient(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  TypingUpdate
	}{
		{"strings", `{"conversationId":"c1","userId":"u1","isTyping":true}`, TypingUpdate{"c1", "u1", true}},
		{"numeric ids", `{"conversationId":42,"userId":7,"isTyping":true}`, TypingUpdate{"42", "7", true}},
		{"string bool", `{"conversationId":"c1","userId":"u1","isTyping":"true"}`, TypingUpdate{"c1", "u1", true}},
		{"numeric bool", `{"conversationId":"c1","userId":"u1","isTyping":0}`, TypingUpdate{"c1", "u1", false}},
		{"nulls", `{"conversationId":null,"userId":"u1","isTyping":null}`, TypingUpdate{"", "u1", false}},
		{"missing", `{}`, TypingUpdate{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseMessage([]byte(tt.frame))
			if err != nil {
				t.Fatalf("parseMessage() error: %v", err)
			}
			if got := msg.typingUpdate(); got != tt.want {
				t.Errorf("typingUpdate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMessage_ConversationUpdateProjection(t *testing.T) {
	msg, err := parseMessage([]byte(`{"type":"conversation_update","conversationId":9,"updateType":"renamed","data":{"name":"x"}}`))
	if err != nil {
		t.Fatalf("parseMessage() error: %v", err)
	}
	u := msg.conversationUpdate()
	if u.ConversationID != "9" || u.UpdateType != "renamed" {
		t.Errorf("conversationUpdate() = %+v", u)
	}
	if string(u.Data) != `{"name":"x"}` {
		t.Errorf("Data = %s", u.Data)
	}
}

func TestParseMessage_NoType(t *testing.T) {
	msg, err := parseMessage([]byte(`{"conversationId":"c1"}`))
	if err != nil {
		t.Fatalf("parseMessage() error: %v", err)
	}
	if msg.Type != "" {
		t.Errorf("Type = %q, want empty", msg.Type)
	}
}

func TestParseMessage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `not valid json{`},
		{"null", `null`},
		{"array", `[1,2]`},
		{"string", `"typing_update"`},
		{"numeric type", `{"type":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseMessage([]byte(tt.data)); err == nil {
				t.Errorf("parseMessage(%s) should error", tt.data)
			}
		})
	}
}

func TestMessage_RawAndMarshal(t *testing.T) {
	data := `{"type":"presence","userId":"u7"}`
	msg, err := parseMessage([]byte(data))
	if err != nil {
		t.Fatalf("parseMessage() error: %v", err)
	}
	if string(msg.Raw()) != data {
		t.Errorf("Raw() = %s, want %s", msg.Raw(), data)
	}
	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != data {
		t.Errorf("Marshal() = %s, want original frame", out)
	}
}

func TestMessage_ZeroValue(t *testing.T) {
	msg := Message{Type: "ping"}
	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != `{"type":"ping"}` {
		t.Errorf("Marshal() = %s", out)
	}
	var v map[string]any
	if err := msg.Unmarshal(&v); err == nil {
		t.Error("Unmarshal() on a message without payload should error")
	}
}

func TestConversationFrame_WireFormat(t *testing.T) {
	out, err := json.Marshal(conversationFrame{Type: TypeJoinConversation, ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != `{"type":"join_conversation","conversationId":"c1"}` {
		t.Errorf("frame = %s", out)
	}
}
