package models

// AlertKind names the threshold that fired.
type AlertKind string

const (
	AlertLowStock  AlertKind = "low"
	AlertHighStock AlertKind = "high"
	AlertDigest    AlertKind = "digest"
)

// Notification is a textual alert handed to a notifier.
type Notification struct {
	Kind      AlertKind `json:"kind"`
	SKU       string    `json:"sku,omitempty"`
	Stock     int64     `json:"stock"`
	Threshold float64   `json:"threshold,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}
