package model

import "time"

// User is a chat user. The ID is issued by the messaging platform.
type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
