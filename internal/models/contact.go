package models

import "time"

// ContactSubmission is a message sent through the contact form.
type ContactSubmission struct {
	ID        int64      `json:"id,omitempty"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
