// Copyright 2024-2026 Aiku AI

package satori

import "encoding/json"

// ChannelType classifies a channel per the Satori resource model.
type ChannelType int

const (
	ChannelTypeText ChannelType = iota
	ChannelTypeDirect
	ChannelTypeCategory
	ChannelTypeVoice
)

// Channel is a conversation target inside a guild, or a direct chat.
type Channel struct {
	ID       string      `json:"id"`
	Type     ChannelType `json:"type"`
	Name     string      `json:"name,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
}

// Guild is a group of channels (a Telegram group or channel on this
// platform).
type Guild struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// User is a platform account in generic form.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Nick   string `json:"nick,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// LoginStatus is the connection state of an adapter login.
type LoginStatus int

const (
	LoginOffline LoginStatus = iota
	LoginOnline
	LoginConnecting
	LoginDisconnected
	LoginReconnecting
)

// Login describes one authenticated platform account exposed by the server.
type Login struct {
	ID       int64       `json:"id"`
	Status   LoginStatus `json:"status"`
	Adapter  string      `json:"adapter"`
	Platform string      `json:"platform"`
	User     *User       `json:"user,omitempty"`
}

// MessageObject is a message in generic form. Content is held as an element
// tree and serialized to markup on the wire.
type MessageObject struct {
	ID      string
	Content []*Element
}

// NewMessageObject builds a message object from decoded elements.
func NewMessageObject(id string, content []*Element) *MessageObject {
	return &MessageObject{ID: id, Content: content}
}

type wireMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (m *MessageObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{ID: m.ID, Content: Render(m.Content)})
}

func (m *MessageObject) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.ID = wire.ID
	m.Content = Parse(wire.Content)
	return nil
}

// ButtonInteraction carries the callback payload of a pressed button.
type ButtonInteraction struct {
	ID string `json:"id"`
}

// Event is one entry of the server's event feed.
type Event struct {
	ID        int64              `json:"id"`
	Type      string             `json:"type"`
	Platform  string             `json:"platform"`
	SelfID    string             `json:"self_id"`
	Timestamp int64              `json:"timestamp"`
	Channel   *Channel           `json:"channel,omitempty"`
	Guild     *Guild             `json:"guild,omitempty"`
	User      *User              `json:"user,omitempty"`
	Message   *MessageObject     `json:"message,omitempty"`
	Button    *ButtonInteraction `json:"button,omitempty"`
}

// Event types emitted by this adapter.
const (
	EventMessageCreated    = "message-created"
	EventInteractionButton = "interaction/button"
)
