package apitypes

import "time"

// Session is an ordered, append-only log of messages tied to one Image.
type Session struct {
	SessionID string    `json:"sessionId"`
	ImageID   string    `json:"imageId"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
