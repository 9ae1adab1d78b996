package model

import "time"

// Note is a personal text note. Title and Content are independently optional;
// an empty form field is stored as NULL, not as the empty string.
type Note struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     *string   `json:"title"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
