package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	"whatsapp-reminders/models"
)

// ErrNotConnected viene restituito da Send quando la sessione non è attiva
var ErrNotConnected = errors.New("client WhatsApp non connesso")

// Broadcaster riceve gli aggiornamenti di stato e i QR code
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// MessageHandler riceve i messaggi di testo privati: owner è il JID della chat
type MessageHandler func(ctx context.Context, owner, text string)

// Client rappresenta il client WhatsApp
type Client struct {
	wa        *whatsmeow.Client
	container *sqlstore.Container
	hub       Broadcaster
	limiter   *rate.Limiter
	logger    zerolog.Logger
	qrOut     io.Writer

	mu        sync.RWMutex
	onMessage MessageHandler
	ctx       context.Context
}

// NewClient apre il database della sessione e prepara il client.
// limiter può essere nil: in quel caso gli invii non vengono rallentati.
func NewClient(sessionPath string, hub Broadcaster, limiter *rate.Limiter, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("component", "whatsapp").Logger()
	waLogger := waLog.Zerolog(logger)

	// Crea un database SQLite per memorizzare le sessioni
	container, err := sqlstore.New("sqlite3", "file:"+sessionPath+"?_foreign_keys=on", waLogger.Sub("Database"))
	if err != nil {
		return nil, fmt.Errorf("errore durante la creazione del database della sessione: %w", err)
	}

	deviceStore, err := container.GetFirstDevice()
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("errore nel recupero del device: %w", err)
	}

	c := &Client{
		wa:        whatsmeow.NewClient(deviceStore, waLogger.Sub("Client")),
		container: container,
		hub:       hub,
		limiter:   limiter,
		logger:    logger,
		qrOut:     os.Stdout,
		ctx:       context.Background(),
	}
	c.wa.AddEventHandler(c.handleEvent)
	return c, nil
}

// OnMessage registra la funzione chiamata per ogni messaggio privato ricevuto
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = h
}

// Connect connette il client a WhatsApp. Se il dispositivo non è ancora
// associato, i QR code vengono stampati a terminale e inoltrati all'hub
// finché ctx è attivo.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if c.wa.Store.ID != nil {
		c.logger.Info().Str("jid", c.wa.Store.ID.String()).Msg("Già registrato, connessione in corso")
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("errore durante la connessione: %w", err)
		}
		return nil
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("errore nell'ottenere il canale QR: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("errore durante la connessione: %w", err)
	}

	go func() {
		for evt := range qrChan {
			if evt.Event == whatsmeow.QRChannelEventCode {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, c.qrOut)
				c.logger.Info().Msg("📱 Scansiona questo codice QR con WhatsApp")
				c.broadcast(models.WSTypeQR, evt.Code)
				c.broadcast(models.WSTypeStatus, models.ConnectionStatus{Message: "Escaneie o QR code"})
				continue
			}
			c.logger.Info().Str("event", evt.Event).Msg("Evento QR")
		}
	}()
	return nil
}

// Disconnect chiude la sessione e il database
func (c *Client) Disconnect() {
	c.wa.Disconnect()
	if err := c.container.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Errore nella chiusura del database della sessione")
	}
}

// Connected indica se il client è connesso e autenticato
func (c *Client) Connected() bool {
	return c.wa.IsConnected() && c.wa.IsLoggedIn()
}

// Send invia un messaggio di testo. to può essere un JID completo oppure solo
// il numero di telefono.
func (c *Client) Send(ctx context.Context, to, text string) error {
	jid, err := recipientJID(to)
	if err != nil {
		return err
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("invio a %s annullato: %w", to, err)
		}
	}

	msg := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.wa.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("errore nell'invio del messaggio a %s: %w", to, err)
	}
	return nil
}

// handleEvent gestisce gli eventi WhatsApp
func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		owner, text, ok := incomingText(v)
		if !ok {
			return
		}
		c.mu.RLock()
		handler, ctx := c.onMessage, c.ctx
		c.mu.RUnlock()
		if handler == nil {
			return
		}
		c.logger.Debug().Str("owner", owner).Msg("📩 Messaggio ricevuto")
		// whatsmeow consegna gli eventi in sequenza: la risposta non deve bloccarli
		go handler(ctx, owner, text)

	case *events.Connected:
		status := models.ConnectionStatus{Connected: true, Message: "Conectado"}
		if c.wa.Store.ID != nil {
			status.PhoneNumber = c.wa.Store.ID.User
		}
		c.logger.Info().Str("phone", status.PhoneNumber).Msg("✅ Client connesso")
		c.broadcast(models.WSTypeStatus, status)

	case *events.Disconnected:
		c.logger.Warn().Msg("Client disconnesso")
		c.broadcast(models.WSTypeStatus, models.ConnectionStatus{Message: "Desconectado"})

	case *events.LoggedOut:
		c.logger.Warn().Msg("Dispositivo disconnesso (logout)")
		c.broadcast(models.WSTypeStatus, models.ConnectionStatus{Message: "Sessão encerrada, escaneie um novo QR code"})
	}
}

func (c *Client) broadcast(msgType string, payload interface{}) {
	if c.hub != nil {
		c.hub.Broadcast(msgType, payload)
	}
}

// incomingText estrae mittente e testo dai messaggi privati ricevuti.
// Gruppi, messaggi inviati da noi e messaggi senza testo vengono ignorati.
func incomingText(evt *events.Message) (string, string, bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsGroup || evt.Info.IsFromMe {
		return "", "", false
	}
	if evt.Info.Chat.Server == types.BroadcastServer {
		return "", "", false
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	return evt.Info.Chat.ToNonAD().String(), text, true
}

func recipientJID(to string) (types.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return types.JID{}, fmt.Errorf("destinatario mancante")
	}
	if !strings.Contains(to, "@") {
		return types.NewJID(strings.TrimPrefix(to, "+"), types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("JID non valido %q: %w", to, err)
	}
	return jid, nil
}
