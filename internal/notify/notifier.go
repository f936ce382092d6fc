package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/metrics"
	"github.com/voyagen/fiootv/internal/models"
)

// ErrNoAdminRecipients is returned for the admin half of a notification
// when no admin addresses are configured.
var ErrNoAdminRecipients = errors.New("admin email not configured")

// EmailNotifier turns notifications into the admin notice and the customer
// confirmation.
type EmailNotifier struct {
	Sender      Sender
	AdminEmails []string
	Brand       Brand
	Log         zerolog.Logger
}

// NewEmailNotifier creates a notifier branded with siteName.
func NewEmailNotifier(sender Sender, siteName string, adminEmails []string) *EmailNotifier {
	brand := DefaultBrand
	if siteName != "" {
		brand.Name = siteName
	}
	return &EmailNotifier{
		Sender:      sender,
		AdminEmails: adminEmails,
		Brand:       brand,
		Log:         logging.WithComponent("notify"),
	}
}

// Deliver sends both e-mails for n. Each is attempted independently; the
// returned error joins whichever failed.
func (e *EmailNotifier) Deliver(ctx context.Context, n models.Notification) error {
	msgs, err := e.messages(n)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(n.Kind, metrics.Outcome(err)).Inc()
		return err
	}
	var errs []error
	for _, m := range msgs {
		if m.err == nil {
			m.err = e.Sender.Send(ctx, m.msg)
		}
		if m.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.role, m.err))
		}
	}
	err = errors.Join(errs...)
	metrics.NotificationsTotal.WithLabelValues(n.Kind, metrics.Outcome(err)).Inc()
	return err
}

type pendingMessage struct {
	role string
	msg  Message
	err  error // set when the message cannot be sent at all
}

func (e *EmailNotifier) messages(n models.Notification) ([]pendingMessage, error) {
	data := templateData{Brand: e.Brand, Order: n.Order, Contact: n.Contact}
	var admin, confirm pendingMessage
	switch n.Kind {
	case models.NotificationOrder:
		if n.Order == nil {
			return nil, errors.New("order notification without order")
		}
		admin = e.build("admin", e.AdminEmails,
			fmt.Sprintf("[%s] New order: %s - %s", e.Brand.Name, n.Order.PlanDisplayDuration, n.Order.CustomerName),
			tmplOrderNotification, data)
		confirm = e.build("confirmation", []string{n.Order.Email},
			fmt.Sprintf("Order confirmation - %s", e.Brand.Name),
			tmplOrderConfirmation, data)
	case models.NotificationContact:
		if n.Contact == nil {
			return nil, errors.New("contact notification without submission")
		}
		admin = e.build("admin", e.AdminEmails,
			fmt.Sprintf("[%s] New contact form submission from %s %s", e.Brand.Name, n.Contact.FirstName, n.Contact.LastName),
			tmplContactNotification, data)
		confirm = e.build("confirmation", []string{n.Contact.Email},
			fmt.Sprintf("We received your message - %s", e.Brand.Name),
			tmplContactConfirmation, data)
	default:
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	if len(e.AdminEmails) == 0 {
		admin.err = ErrNoAdminRecipients
	}
	return []pendingMessage{admin, confirm}, nil
}

func (e *EmailNotifier) build(role string, to []string, subject, tmpl string, data templateData) pendingMessage {
	html, err := render(tmpl, data)
	return pendingMessage{role: role, msg: Message{To: to, Subject: subject, HTML: html}, err: err}
}
