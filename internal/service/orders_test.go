package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store/storetest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func validOrder() OrderRequest {
	return OrderRequest{
		PlanID:              "premium-12",
		PlanDuration:        "12",
		PlanPrice:           "99.99",
		PlanDisplayDuration: "12 Months",
		FirstName:           " Ada ",
		LastName:            "Lovelace",
		Email:               " Ada@Example.COM ",
		City:                "  ",
		Country:             " UK ",
	}
}

func TestSubmitOrder(t *testing.T) {
	mem := storetest.NewMemory()
	n := &recordingNotifier{}

	order, err := SubmitOrder(context.Background(), mem, n, validOrder())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, order.ID)

	require.Len(t, mem.Orders(), 1)
	saved := mem.Orders()[0]
	assert.Equal(t, order.ID, saved.ID)
	assert.Equal(t, "Ada", saved.FirstName)
	assert.Equal(t, "Ada Lovelace", saved.CustomerName)
	assert.Equal(t, "ada@example.com", saved.Email)
	assert.Nil(t, saved.City)
	require.NotNil(t, saved.Country)
	assert.Equal(t, "UK", *saved.Country)
	assert.Equal(t, models.PaymentCashOnDelivery, saved.PaymentMethod)
	assert.Equal(t, models.OrderStatusPending, saved.Status)

	require.Len(t, n.sent, 1)
	assert.Equal(t, models.NotificationOrder, n.sent[0].Kind)
	assert.Equal(t, order.ID, n.sent[0].Order.ID)
}

func TestSubmitOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OrderRequest)
		msg    string
	}{
		{"missing email", func(r *OrderRequest) { r.Email = "" }, "First name, last name, and email are required"},
		{"blank last name", func(r *OrderRequest) { r.LastName = "  " }, "First name, last name, and email are required"},
		{"missing plan id", func(r *OrderRequest) { r.PlanID = "" }, "Plan information is required"},
		{"missing price", func(r *OrderRequest) { r.PlanPrice = "" }, "Plan information is required"},
		{"word price", func(r *OrderRequest) { r.PlanPrice = "abc" }, "Plan price must be a non-negative amount"},
		{"currency symbol", func(r *OrderRequest) { r.PlanPrice = "$19.99" }, "Plan price must be a non-negative amount"},
		{"negative price", func(r *OrderRequest) { r.PlanPrice = "-5" }, "Plan price must be a non-negative amount"},
		{"price overflows column", func(r *OrderRequest) { r.PlanPrice = "12345678901.5" }, "Plan price must be a non-negative amount"},
		{"price rounds past column", func(r *OrderRequest) { r.PlanPrice = "99999999.999" }, "Plan price must be a non-negative amount"},
		{"infinite price", func(r *OrderRequest) { r.PlanPrice = "Inf" }, "Plan price must be a non-negative amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storetest.NewMemory()
			n := &recordingNotifier{}
			req := validOrder()
			tt.mutate(&req)

			_, err := SubmitOrder(context.Background(), mem, n, req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.msg, ve.Message)
			assert.Empty(t, mem.Orders())
			assert.Empty(t, n.sent)
		})
	}
}

func TestValidPrice(t *testing.T) {
	for _, ok := range []string{"0", "19.99", "49.5", ".5", "7.", "99999999.99", "1e3"} {
		assert.True(t, validPrice(ok), ok)
	}
	for _, bad := range []string{"", ".", "abc", "$19.99", "19,99", "-1", "1e9", "NaN", "0x10", " 5"} {
		assert.False(t, validPrice(bad), bad)
	}
}

func TestSubmitOrder_StoreFailureSkipsNotification(t *testing.T) {
	mem := storetest.NewMemory()
	mem.OrderErr = errors.New("relation \"orders\" does not exist")
	n := &recordingNotifier{}

	_, err := SubmitOrder(context.Background(), mem, n, validOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save order")
	assert.Empty(t, n.sent)
}

func TestOrderRequest_NumericPrice(t *testing.T) {
	var req OrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"planId":3,"planDuration":"6","planPrice":49.5,"planDisplayDuration":"6 Months"}`), &req))
	assert.Equal(t, "49.5", req.PlanPrice.String())
	assert.Equal(t, "3", req.PlanID.String())
}

func TestSubmitContact(t *testing.T) {
	mem := storetest.NewMemory()
	n := &recordingNotifier{}

	sub, err := SubmitContact(context.Background(), mem, n, ContactRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "GRACE@navy.mil",
		Message:   " Hello \n",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.ID)
	assert.Equal(t, "grace@navy.mil", sub.Email)
	assert.Equal(t, "Hello", sub.Message)
	assert.Nil(t, sub.Phone)
	require.Len(t, n.sent, 1)
	assert.Equal(t, models.NotificationContact, n.sent[0].Kind)
}

func TestSubmitContact_Validation(t *testing.T) {
	mem := storetest.NewMemory()
	_, err := SubmitContact(context.Background(), mem, nil, ContactRequest{FirstName: "a", LastName: "b", Email: "c"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "First name, last name, email, and message are required", ve.Message)
	assert.Empty(t, mem.Contacts())
}
