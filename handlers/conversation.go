package handlers

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Conversation è lo stato transitorio di un utente tra un messaggio e l'altro
type Conversation struct {
	// LastListing contiene gli ID mostrati dall'ultimo /lembretes, nell'ordine visualizzato
	LastListing  []string
	LastActivity time.Time
}

// ConversationRegistry conserva le conversazioni con un limite di dimensione e
// una scadenza per inattività; le voci più vecchie vengono scartate
type ConversationRegistry struct {
	cache *expirable.LRU[string, Conversation]
	now   func() time.Time
}

func NewConversationRegistry(maxEntries int, ttl time.Duration) *ConversationRegistry {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ConversationRegistry{
		cache: expirable.NewLRU[string, Conversation](maxEntries, nil, ttl),
		now:   time.Now,
	}
}

// Touch aggiorna l'attività dell'utente senza toccare l'ultimo elenco
func (c *ConversationRegistry) Touch(owner string) {
	conv, _ := c.cache.Get(owner)
	conv.LastActivity = c.now()
	c.cache.Add(owner, conv)
}

// RememberListing salva gli ID appena mostrati all'utente
func (c *ConversationRegistry) RememberListing(owner string, ids []string) {
	c.cache.Add(owner, Conversation{
		LastListing:  append([]string(nil), ids...),
		LastActivity: c.now(),
	})
}

// ResolveIndex traduce un numero 1-based dell'ultimo elenco nell'ID del reminder
func (c *ConversationRegistry) ResolveIndex(owner string, index int) (string, bool) {
	conv, ok := c.cache.Peek(owner)
	if !ok || index < 1 || index > len(conv.LastListing) {
		return "", false
	}
	return conv.LastListing[index-1], true
}

// Get restituisce la conversazione, se ancora presente
func (c *ConversationRegistry) Get(owner string) (Conversation, bool) {
	return c.cache.Peek(owner)
}

func (c *ConversationRegistry) Len() int {
	return c.cache.Len()
}
