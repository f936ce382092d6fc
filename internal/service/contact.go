package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store"
)

// ContactRequest is the contact form payload.
type ContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

func (r ContactRequest) Validate() error {
	if blank(r.FirstName) || blank(r.LastName) || blank(r.Email) || blank(r.Message) {
		return &ValidationError{Message: "First name, last name, email, and message are required"}
	}
	return nil
}

// SubmitContact validates and stores a contact message, then queues the
// admin notification and the sender's confirmation.
func SubmitContact(ctx context.Context, s store.Store, n Notifier, req ContactRequest) (*models.ContactSubmission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub := &models.ContactSubmission{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     normalizeEmail(req.Email),
		Phone:     optional(req.Phone),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: &now,
	}
	id, err := s.CreateContactSubmission(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("save contact submission: %w", err)
	}
	sub.ID = id
	if n != nil {
		n.Notify(ctx, models.Notification{Kind: models.NotificationContact, Contact: sub})
	}
	return sub, nil
}
