package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-reminders/handlers"
	"whatsapp-reminders/whatsapp"
)

// replyTimeout limita il tempo speso per rispondere a un singolo messaggio
const replyTimeout = 30 * time.Second

// Registra l'handler dei messaggi privati ricevuti
func registerEventHandlers(client *whatsapp.Client, commands *handlers.CommandService, logger zerolog.Logger) {
	client.OnMessage(func(ctx context.Context, owner, text string) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("owner", owner).Msg("❌ Panic nella gestione del messaggio")
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, replyTimeout)
		defer cancel()
		commands.HandleIncoming(ctx, owner, text)
	})
}
