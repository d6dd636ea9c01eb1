package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"whatsapp-reminders/models"
)

var (
	// WebSocket upgrader
	wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // Pagina di stato servita anche da altre origini
		},
	}
)

// Hub inoltra gli eventi (stato, QR, reminder inviati) ai client WebSocket.
// Ricorda l'ultimo stato e l'ultimo QR per inviarli subito ai nuovi client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	status  models.ConnectionStatus
	qr      string
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		status:  models.ConnectionStatus{Message: "Aguardando QR code..."},
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
}

// Broadcast invia un messaggio a tutti i client WebSocket connessi
func (h *Hub) Broadcast(messageType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch messageType {
	case models.WSTypeStatus:
		if st, ok := payload.(models.ConnectionStatus); ok {
			h.status = st
			if st.Connected {
				h.qr = ""
			}
		}
	case models.WSTypeQR:
		if code, ok := payload.(string); ok {
			h.qr = code
		}
	}

	msg := models.WSMessage{Type: messageType, Payload: payload}
	for client := range h.clients {
		if err := client.WriteJSON(msg); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

// Status restituisce l'ultimo stato della connessione WhatsApp
func (h *Hub) Status() models.ConnectionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// ClientCount restituisce il numero di client connessi
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket gestisce le connessioni WebSocket
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Upgrade WebSocket fallito")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	initial := []models.WSMessage{{Type: models.WSTypeStatus, Payload: h.status}}
	if h.qr != "" {
		initial = append(initial, models.WSMessage{Type: models.WSTypeQR, Payload: h.qr})
	}
	for _, msg := range initial {
		if err := conn.WriteJSON(msg); err != nil {
			break
		}
	}
	h.mu.Unlock()
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Nuovo client WebSocket")

	// Cleanup quando la connessione viene chiusa
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Loop di lettura messaggi
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
