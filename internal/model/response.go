package model

import "time"

// StreamEvent 通过 SSE 推给前端的一帧
type StreamEvent struct {
	Type      string `json:"type"` // user_message, delta, done, error
	SessionID string `json:"session_id"`
	MessageID int64  `json:"message_id"`
	Content   string `json:"content,omitempty"`
	ScrollTo  string `json:"scroll_to,omitempty"` // 前端滚动锚点 msg-<id>
	Timestamp int64  `json:"timestamp"`
}

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type SwitchSessionResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}
