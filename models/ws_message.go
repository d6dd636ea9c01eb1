package models

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Tipi di evento inviati ai client WebSocket
const (
	WSTypeStatus   = "status"
	WSTypeQR       = "qr"
	WSTypeReminder = "reminder"
)

// ConnectionStatus descrive lo stato della sessione WhatsApp
type ConnectionStatus struct {
	Connected   bool   `json:"connected"`
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}
