package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-reminders/models"
)

// DraftParser estrae una bozza dal testo libero
type DraftParser interface {
	Parse(text string) (*models.Draft, bool)
}

// CommandService gestisce i messaggi privati: comandi che iniziano con "/" e
// testo libero da trasformare in reminder
type CommandService struct {
	store         ReminderStore
	parser        DraftParser
	notifier      Notifier
	conversations *ConversationRegistry
	location      *time.Location
	now           func() time.Time
	logger        zerolog.Logger
}

// NewCommandService crea il servizio dei comandi. notifier serve solo a HandleIncoming.
func NewCommandService(store ReminderStore, parser DraftParser, notifier Notifier, conversations *ConversationRegistry, loc *time.Location, logger zerolog.Logger) *CommandService {
	if loc == nil {
		loc = time.Local
	}
	return &CommandService{
		store:         store,
		parser:        parser,
		notifier:      notifier,
		conversations: conversations,
		location:      loc,
		now:           time.Now,
		logger:        logger.With().Str("component", "commands").Logger(),
	}
}

// HandleIncoming elabora un messaggio ricevuto e invia la risposta al mittente
func (cs *CommandService) HandleIncoming(ctx context.Context, owner, text string) {
	reply := cs.HandleMessage(ctx, owner, text)
	if reply == "" || cs.notifier == nil {
		return
	}
	if err := cs.notifier.Send(ctx, owner, reply); err != nil {
		cs.logger.Error().Err(err).Str("owner", owner).Msg("❌ Errore nell'invio della risposta")
	}
}

// HandleMessage restituisce la risposta da inviare a owner per il messaggio text
func (cs *CommandService) HandleMessage(ctx context.Context, owner, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	cs.conversations.Touch(owner)

	if strings.HasPrefix(text, "/") {
		return cs.handleCommand(ctx, owner, text)
	}
	return cs.handleFreeText(ctx, owner, text)
}

func (cs *CommandService) handleCommand(ctx context.Context, owner, text string) string {
	parts := strings.Fields(text)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	cs.logger.Info().Str("owner", owner).Str("command", cmd).Msg("📩 Comando ricevuto")

	switch cmd {
	case "/help", "/ajuda":
		return helpMessage
	case "/list", "/lembretes":
		return cs.list(ctx, owner)
	case "/complete", "/concluir":
		if len(args) == 0 {
			return usageMessage(cmd)
		}
		return cs.complete(ctx, owner, args[0])
	case "/delete", "/deletar":
		if len(args) == 0 {
			return usageMessage(cmd)
		}
		return cs.remove(ctx, owner, args[0])
	}
	return unknownCommandMessage
}

func (cs *CommandService) handleFreeText(ctx context.Context, owner, text string) string {
	draft, ok := cs.parser.Parse(text)
	if !ok {
		return notUnderstoodMessage
	}

	full := draft.Materialize(cs.now().In(cs.location))
	r, err := cs.store.Create(ctx, owner, full)
	if err != nil {
		cs.logger.Error().Err(err).Str("owner", owner).Msg("❌ Errore nella creazione del reminder")
		return createFailedMessage
	}

	cs.logger.Info().Str("owner", owner).Str("reminder", r.ID).Str("date", r.Date.String()).
		Str("time", r.Time).Str("frequency", string(r.Frequency)).Msg("✅ Reminder creato")
	return confirmationMessage(r)
}

func (cs *CommandService) list(ctx context.Context, owner string) string {
	reminders, err := cs.store.ListByOwner(ctx, owner)
	if err != nil {
		cs.logger.Error().Err(err).Str("owner", owner).Msg("❌ Errore nel caricamento dei reminder")
		return listFailedMessage
	}
	if len(reminders) == 0 {
		cs.conversations.RememberListing(owner, nil)
		return noRemindersMessage
	}

	ids := make([]string, len(reminders))
	for i, r := range reminders {
		ids[i] = r.ID
	}
	cs.conversations.RememberListing(owner, ids)
	return listMessage(reminders)
}

// resolve accetta un ID oppure il numero mostrato nell'ultimo elenco, e
// restituisce il reminder solo se appartiene a owner
func (cs *CommandService) resolve(ctx context.Context, owner, ref string) (*models.Reminder, error) {
	id := ref
	if n, err := strconv.Atoi(ref); err == nil {
		if resolved, ok := cs.conversations.ResolveIndex(owner, n); ok {
			id = resolved
		}
	}
	r, err := cs.store.Get(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	if r.Owner != owner {
		return nil, nil
	}
	return r, nil
}

func (cs *CommandService) complete(ctx context.Context, owner, ref string) string {
	r, err := cs.resolve(ctx, owner, ref)
	if err != nil {
		cs.logger.Error().Err(err).Str("ref", ref).Msg("❌ Errore nel caricamento del reminder")
		return completeFailedMessage
	}
	if r == nil {
		return notFoundMessage
	}

	updated, err := cs.store.MarkCompleted(ctx, r.ID)
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		return alreadyCompletedMessage
	case err != nil:
		cs.logger.Error().Err(err).Str("reminder", r.ID).Msg("❌ Errore nel completamento del reminder")
		return completeFailedMessage
	case updated == nil:
		return notFoundMessage
	}
	return completedMessage(updated)
}

func (cs *CommandService) remove(ctx context.Context, owner, ref string) string {
	r, err := cs.resolve(ctx, owner, ref)
	if err != nil {
		cs.logger.Error().Err(err).Str("ref", ref).Msg("❌ Errore nel caricamento del reminder")
		return deleteFailedMessage
	}
	if r == nil {
		return notFoundMessage
	}

	deleted, err := cs.store.Delete(ctx, r.ID)
	if err != nil {
		cs.logger.Error().Err(err).Str("reminder", r.ID).Msg("❌ Errore nella cancellazione del reminder")
		return deleteFailedMessage
	}
	if !deleted {
		return notFoundMessage
	}
	return deletedMessage
}
