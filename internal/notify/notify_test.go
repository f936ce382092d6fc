package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/fiootv/internal/config"
	"github.com/voyagen/fiootv/internal/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	err  func(Message) error
}

func (f *fakeSender) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		if err := f.err(m); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func strPtr(s string) *string { return &s }

func testOrder() *models.Order {
	return &models.Order{
		PlanDisplayDuration: "12 Months",
		PlanPrice:           "99.99",
		FirstName:           "Ada",
		CustomerName:        "Ada <Lovelace>",
		Email:               "ada@example.com",
		City:                strPtr("London"),
		Country:             strPtr("UK"),
		Notes:               strPtr("ring twice"),
		PaymentMethod:       models.PaymentCashOnDelivery,
	}
}

func newTestNotifier(s Sender, admins ...string) *EmailNotifier {
	n := NewEmailNotifier(s, "fiootv", admins)
	n.Log = zerolog.Nop()
	return n
}

func TestDeliver_Order(t *testing.T) {
	s := &fakeSender{}
	err := newTestNotifier(s, "ops@example.com", "sales@example.com").
		Deliver(context.Background(), models.Notification{Kind: models.NotificationOrder, Order: testOrder()})
	require.NoError(t, err)

	msgs := s.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"ops@example.com", "sales@example.com"}, msgs[0].To)
	assert.Equal(t, "[fiootv] New order: 12 Months - Ada <Lovelace>", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "Ada &lt;Lovelace&gt;")
	assert.Contains(t, msgs[0].HTML, "London, UK")
	assert.Contains(t, msgs[0].HTML, "Cash on Delivery")
	assert.Contains(t, msgs[0].HTML, "ring twice")

	assert.Equal(t, []string{"ada@example.com"}, msgs[1].To)
	assert.Equal(t, "Order confirmation - fiootv", msgs[1].Subject)
	assert.Contains(t, msgs[1].HTML, "Hi Ada,")
	assert.Contains(t, msgs[1].HTML, "$99.99")
}

func TestDeliver_ContactWithoutAdmins(t *testing.T) {
	s := &fakeSender{}
	err := newTestNotifier(s).Deliver(context.Background(), models.Notification{
		Kind:    models.NotificationContact,
		Contact: &models.ContactSubmission{FirstName: "Grace", LastName: "Hopper", Email: "grace@navy.mil", Message: "line1\nline2"},
	})
	assert.ErrorIs(t, err, ErrNoAdminRecipients)

	msgs := s.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "We received your message - fiootv", msgs[0].Subject)
}

func TestDeliver_ContactNotification(t *testing.T) {
	s := &fakeSender{}
	err := newTestNotifier(s, "ops@example.com").Deliver(context.Background(), models.Notification{
		Kind:    models.NotificationContact,
		Contact: &models.ContactSubmission{FirstName: "Grace", LastName: "Hopper", Email: "grace@navy.mil", Message: "<b>hi</b>\nthere"},
	})
	require.NoError(t, err)
	msgs := s.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "[fiootv] New contact form submission from Grace Hopper", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "&lt;b&gt;hi&lt;/b&gt;<br />there")
	assert.Contains(t, msgs[0].HTML, "—")
}

func TestDeliver_SendFailureStillSendsOther(t *testing.T) {
	s := &fakeSender{err: func(m Message) error {
		if m.To[0] == "ops@example.com" {
			return errors.New("550 mailbox unavailable")
		}
		return nil
	}}
	err := newTestNotifier(s, "ops@example.com").
		Deliver(context.Background(), models.Notification{Kind: models.NotificationOrder, Order: testOrder()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin: 550")
	assert.Len(t, s.messages(), 1)
}

func TestDeliver_UnknownKind(t *testing.T) {
	err := newTestNotifier(&fakeSender{}).Deliver(context.Background(), models.Notification{Kind: "sms"})
	assert.Error(t, err)
}

func TestAsync(t *testing.T) {
	s := &fakeSender{}
	a := &Async{Deliverer: newTestNotifier(s, "ops@example.com"), Log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	a.Notify(ctx, models.Notification{Kind: models.NotificationOrder, Order: testOrder()})
	cancel() // request finished; delivery must continue

	assert.Eventually(t, func() bool { return len(s.messages()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	err := NewSMTPSender(config.SMTP{Host: "smtp.example.com"}).Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPaymentLabelAndAddress(t *testing.T) {
	assert.Equal(t, "Cash on Delivery", PaymentLabel("cash_on_delivery"))
	assert.Equal(t, "card", PaymentLabel("card"))
	assert.Equal(t, "—", Address(&models.Order{}))
	assert.Equal(t, "1 Main St, Springfield", Address(&models.Order{AddressLine1: strPtr("1 Main St"), City: strPtr("Springfield")}))
}
