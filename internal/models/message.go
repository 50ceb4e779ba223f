package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a Q&A transcript held by the portal.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

// ChatTurn is the wire form of a message sent to the chat service.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages []ChatTurn `json:"messages"`
}

// ChatReply is the body returned by POST /chat.
type ChatReply struct {
	Message string   `json:"message"`
	Sources []string `json:"sources,omitempty"`
}
