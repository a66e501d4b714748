package circl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Inbound frame types with a dedicated listener collection.
const (
	TypeTypingUpdate       = "typing_update"
	TypeNewMessage         = "new_message"
	TypeConversationUpdate = "conversation_update"
)

// Outbound frame types.
const (
	TypeJoinConversation  = "join_conversation"
	TypeLeaveConversation = "leave_conversation"
	TypeTypingStart       = "typing_start"
	TypeTypingStop        = "typing_stop"
)

// Message is an inbound tagged record. Type selects the dispatch target; the
// full record is kept so listeners can decode any extra fields.
type Message struct {
	Type string

	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// Raw returns the frame exactly as received.
func (m Message) Raw() json.RawMessage {
	return m.raw
}

// Field returns the raw JSON of a top-level field, or nil if absent.
func (m Message) Field(name string) json.RawMessage {
	return m.fields[name]
}

// Unmarshal decodes the whole record into v.
func (m Message) Unmarshal(v any) error {
	if m.raw == nil {
		return errors.New("message has no payload")
	}
	return json.Unmarshal(m.raw, v)
}

// MarshalJSON re-emits the original record so a Message can be relayed with Send.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
	}{m.Type})
}

// TypingUpdate is the payload of a "typing_update" frame.
type TypingUpdate struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// NewMessage is the payload of a "new_message" frame. Message is left raw;
// its shape belongs to the chat backend.
type NewMessage struct {
	ConversationID string          `json:"conversationId"`
	Message        json.RawMessage `json:"message"`
}

// ConversationUpdate is the payload of a "conversation_update" frame.
type ConversationUpdate struct {
	ConversationID string          `json:"conversationId"`
	UpdateType     string          `json:"updateType"`
	Data           json.RawMessage `json:"data"`
}

// typingUpdate projects a "typing_update" frame. Field types are read
// best-effort: a numeric id becomes its decimal text, a missing field its
// zero value.
func (m Message) typingUpdate() TypingUpdate {
	return TypingUpdate{
		ConversationID: m.stringField("conversationId"),
		UserID:         m.stringField("userId"),
		IsTyping:       m.boolField("isTyping"),
	}
}

func (m Message) newMessage() NewMessage {
	return NewMessage{
		ConversationID: m.stringField("conversationId"),
		Message:        m.fields["message"],
	}
}

func (m Message) conversationUpdate() ConversationUpdate {
	return ConversationUpdate{
		ConversationID: m.stringField("conversationId"),
		UpdateType:     m.stringField("updateType"),
		Data:           m.fields["data"],
	}
}

// stringField returns a JSON string as is and any other non-null value as
// its JSON text.
func (m Message) stringField(name string) string {
	raw := m.fields[name]
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// boolField accepts booleans, "true"/"false" strings and numbers (non-zero
// is true). Anything else is false.
func (m Message) boolField(name string) bool {
	raw := m.fields[name]
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}

// parseMessage parses a frame into a Message. The frame must be a JSON object;
// its "type" field, when present, must be a string.
func parseMessage(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if fields == nil {
		return nil, errors.New("parse frame: not a JSON object")
	}

	msg := &Message{raw: json.RawMessage(data), fields: fields}
	if t, ok := fields["type"]; ok {
		if err := json.Unmarshal(t, &msg.Type); err != nil {
			return nil, fmt.Errorf("parse frame type: %w", err)
		}
	}
	return msg, nil
}

// conversationFrame is the wire format of the conversation helpers.
type conversationFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}
