package models

import "encoding/json"

// MessageType tags the message variant.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeVideo  MessageType = "video"
	MessageTypeSystem MessageType = "system"
	MessageTypeCustom MessageType = "custom"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio,
		MessageTypeVideo, MessageTypeSystem, MessageTypeCustom:
		return true
	}
	return false
}

// Message is a tagged variant: Type selects the kind and Payload carries the
// kind specific fields (text, uri, name, size, mimeType, ...) verbatim as the
// store returned them.
type Message struct {
	ID        string
	Type      MessageType
	Author    User
	CreatedAt *int64
	UpdatedAt *int64
	Payload   map[string]any
}

// Text returns the text of a text message.
func (m Message) Text() string {
	return m.stringField("text")
}

// URI returns the media location of image, file, audio and video messages.
func (m Message) URI() string {
	return m.stringField("uri")
}

// Name returns the file name of media messages.
func (m Message) Name() string {
	return m.stringField("name")
}

func (m Message) stringField(key string) string {
	s, _ := m.Payload[key].(string)
	return s
}

// MarshalJSON flattens the payload next to the common fields, which is the
// shape clients of the store already expect.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Payload)+5)
	for k, v := range m.Payload {
		out[k] = v
	}
	out["id"] = m.ID
	out["type"] = m.Type
	out["author"] = m.Author
	if m.CreatedAt != nil {
		out["createdAt"] = *m.CreatedAt
	}
	if m.UpdatedAt != nil {
		out["updatedAt"] = *m.UpdatedAt
	}
	return json.Marshal(out)
}

// PartialMessage is what a sender supplies; author, id and timestamps are
// stamped by the engine.
type PartialMessage struct {
	Type    MessageType    `json:"type"`
	Payload map[string]any `json:"payload"`
}

// PartialText builds a text message draft.
func PartialText(text string) PartialMessage {
	return PartialMessage{
		Type:    MessageTypeText,
		Payload: map[string]any{"text": text},
	}
}
