package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment methods and order states.
const (
	PaymentCashOnDelivery = "cash_on_delivery"
	OrderStatusPending    = "pending"
)

// Order is a subscription order as stored in the orders table.
type Order struct {
	ID                  uuid.UUID  `json:"id"`
	PlanID              string     `json:"plan_id"`
	PlanDuration        string     `json:"plan_duration"`
	PlanPrice           string     `json:"plan_price"`
	PlanDisplayDuration string     `json:"plan_display_duration"`
	FirstName           string     `json:"customer_first_name"`
	LastName            string     `json:"customer_last_name"`
	CustomerName        string     `json:"customer_name"`
	CompanyName         *string    `json:"company_name,omitempty"`
	Email               string     `json:"customer_email"`
	Phone               *string    `json:"customer_phone,omitempty"`
	AddressLine1        *string    `json:"customer_address_line_1,omitempty"`
	AddressLine2        *string    `json:"customer_address_line_2,omitempty"`
	City                *string    `json:"customer_city,omitempty"`
	State               *string    `json:"customer_state,omitempty"`
	Country             *string    `json:"customer_country,omitempty"`
	ZipCode             *string    `json:"customer_zip_code,omitempty"`
	Notes               *string    `json:"order_notes,omitempty"`
	PaymentMethod       string     `json:"payment_method"`
	Status              string     `json:"status"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
}
