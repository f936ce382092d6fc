package models

// Notification kinds.
const (
	NotificationOrder   = "order"
	NotificationContact = "contact"
)

// Notification is a pending e-mail side effect of a stored order or contact
// submission. Exactly one of Order and Contact is set, matching Kind.
type Notification struct {
	Kind    string             `json:"kind"`
	Order   *Order             `json:"order,omitempty"`
	Contact *ContactSubmission `json:"contact,omitempty"`
}
