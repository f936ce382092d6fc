package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyagen/fiootv/internal/models"
	"github.com/voyagen/fiootv/internal/store"
)

// ValidationError is a client error; its message is returned as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Notifier hands a notification off for best-effort delivery. It must not
// block on delivery and never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// OrderRequest is the checkout form payload.
type OrderRequest struct {
	PlanID              models.FlexString `json:"planId"`
	PlanDuration        models.FlexString `json:"planDuration"`
	PlanPrice           models.FlexString `json:"planPrice"`
	PlanDisplayDuration string            `json:"planDisplayDuration"`
	FirstName           string            `json:"firstName"`
	LastName            string            `json:"lastName"`
	CompanyName         string            `json:"companyName"`
	Email               string            `json:"email"`
	Phone               string            `json:"phone"`
	AddressLine1        string            `json:"addressLine1"`
	AddressLine2        string            `json:"addressLine2"`
	City                string            `json:"city"`
	State               string            `json:"state"`
	Country             string            `json:"country"`
	ZipCode             string            `json:"zipCode"`
	OrderNotes          string            `json:"orderNotes"`
	PaymentMethod       string            `json:"paymentMethod"`
}

// Validate checks the required plan and customer fields.
func (r OrderRequest) Validate() error {
	if blank(r.PlanID.String()) || blank(r.PlanDuration.String()) || blank(r.PlanPrice.String()) || blank(r.PlanDisplayDuration) {
		return &ValidationError{Message: "Plan information is required"}
	}
	if !validPrice(strings.TrimSpace(r.PlanPrice.String())) {
		return &ValidationError{Message: "Plan price must be a non-negative amount"}
	}
	if blank(r.FirstName) || blank(r.LastName) || blank(r.Email) {
		return &ValidationError{Message: "First name, last name, and email are required"}
	}
	return nil
}

// Order builds the normalized order row with a fresh id.
func (r OrderRequest) Order(now time.Time) *models.Order {
	first := strings.TrimSpace(r.FirstName)
	last := strings.TrimSpace(r.LastName)
	payment := strings.TrimSpace(r.PaymentMethod)
	if payment == "" {
		payment = models.PaymentCashOnDelivery
	}
	return &models.Order{
		ID:                  uuid.New(),
		PlanID:              strings.TrimSpace(r.PlanID.String()),
		PlanDuration:        strings.TrimSpace(r.PlanDuration.String()),
		PlanPrice:           strings.TrimSpace(r.PlanPrice.String()),
		PlanDisplayDuration: strings.TrimSpace(r.PlanDisplayDuration),
		FirstName:           first,
		LastName:            last,
		CustomerName:        strings.TrimSpace(first + " " + last),
		CompanyName:         optional(r.CompanyName),
		Email:               normalizeEmail(r.Email),
		Phone:               optional(r.Phone),
		AddressLine1:        optional(r.AddressLine1),
		AddressLine2:        optional(r.AddressLine2),
		City:                optional(r.City),
		State:               optional(r.State),
		Country:             optional(r.Country),
		ZipCode:             optional(r.ZipCode),
		Notes:               optional(r.OrderNotes),
		PaymentMethod:       payment,
		Status:              models.OrderStatusPending,
		CreatedAt:           &now,
	}
}

// SubmitOrder validates and stores an order, then queues its e-mails.
// Nothing is written when validation fails.
func SubmitOrder(ctx context.Context, s store.Store, n Notifier, req OrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	order := req.Order(time.Now().UTC())
	id, err := s.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	order.ID = id
	if n != nil {
		n.Notify(ctx, models.Notification{Kind: models.NotificationOrder, Order: order})
	}
	return order, nil
}

// maxPlanPrice is the first value NUMERIC(10,2) cannot hold after rounding
// to cents.
const maxPlanPrice = 99999999.995

// priceSyntax admits plain decimals with an optional exponent; ParseFloat
// alone would also take "Inf", "NaN" and hex floats.
var priceSyntax = regexp.MustCompile(`^[0-9]*\.?[0-9]*([eE][+-]?[0-9]+)?$`)

// validPrice reports whether s fits the orders.plan_price column.
func validPrice(s string) bool {
	if !priceSyntax.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f < maxPlanPrice
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// optional trims s and maps "" to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
