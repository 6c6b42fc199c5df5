package usecase

import "time"

// Published on Kafka whenever an order reaches a terminal status.
type OrderStatusChangedMsg struct {
	EventID    string    `json:"eventId"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Amount     string    `json:"amount"`
	Status     string    `json:"status"` // SUCCESS | FAILED
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sent on RabbitMQ after a verified payment.
type CartClearMsg struct {
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
}
