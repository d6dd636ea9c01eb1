// Package parser estrae i campi di un reminder (testo, data, ora, ricorrenza)
// da un messaggio libero in portoghese.
package parser

import (
	"strconv"
	"strings"
	"time"

	"whatsapp-reminders/models"
)

// Parser applica Parse usando un orologio e un fuso configurati
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// New crea un parser. Se now è nil usa time.Now.
func New(loc *time.Location, now func() time.Time) *Parser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now, loc: loc}
}

// Parse interpreta il testo rispetto all'istante corrente del parser
func (p *Parser) Parse(text string) (*models.Draft, bool) {
	return Parse(text, p.now().In(p.loc))
}

// Parse interpreta text rispetto a now. Restituisce false se il messaggio non
// descrive un reminder: etichetta vuota, oppure né data né ricorrenza giornaliera.
// A parità di input e di now il risultato è sempre lo stesso.
func Parse(text string, now time.Time) (*models.Draft, bool) {
	msg := strings.ToLower(text)
	today := models.DateOf(now)

	draft := &models.Draft{Frequency: detectFrequency(msg)}

	rest := msg
	if date, ok := detectDate(msg, today); ok {
		draft.Date = &date
		rest = stripDateShapes(msg)
	}

	if clock, start, end, ok := detectTime(rest); ok {
		draft.Time = clock
		rest = cutTime(rest, start, end)
	}

	draft.Text = cleanLabel(rest)

	if draft.Text == "" {
		return nil, false
	}
	if draft.Date == nil {
		if draft.Frequency != models.FrequencyDaily {
			return nil, false
		}
		draft.Date = &today
	}
	return draft, true
}

func detectFrequency(msg string) models.Frequency {
	for _, group := range frequencyKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(msg, kw) {
				return group.frequency
			}
		}
	}
	return models.FrequencyOnce
}

// detectDate prova le regole in ordine; la prima interpretabile vince
func detectDate(msg string, today models.Date) (models.Date, bool) {
	for _, rule := range dateRules {
		m := rule.pattern.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		if d, ok := rule.extract(m, today); ok {
			return d, true
		}
	}
	return models.Date{}, false
}

// detectTime restituisce l'orario HH:MM e l'intervallo di testo da rimuovere
func detectTime(msg string) (string, int, int, bool) {
	for _, rule := range timeRules {
		idx := rule.pattern.FindStringSubmatchIndex(msg)
		if idx == nil {
			continue
		}
		group := func(n int) string {
			if n == 0 || idx[2*n] < 0 {
				return ""
			}
			return msg[idx[2*n]:idx[2*n+1]]
		}

		hour, err := strconv.Atoi(group(rule.hour))
		if err != nil {
			continue
		}
		minute := 0
		if m := group(rule.minute); m != "" {
			if minute, err = strconv.Atoi(m); err != nil {
				continue
			}
		}
		marker := group(rule.marker)
		hour = applyPeriod(hour, marker)
		if hour > 23 || minute > 59 {
			continue
		}

		start := idx[2*rule.hour]
		end := idx[2*rule.hour+1]
		for _, n := range []int{rule.minute, rule.marker} {
			if n != 0 && idx[2*n+1] > end {
				end = idx[2*n+1]
			}
		}
		return models.FormatClock(hour, minute), start, end, true
	}
	return "", 0, 0, false
}

// cutTime toglie l'orario trovato e l'eventuale "às" che lo precede
func cutTime(msg string, start, end int) string {
	before := msg[:start]
	if loc := timePreposition.FindStringIndex(before); loc != nil {
		before = before[:loc[0]]
	}
	return before + " " + msg[end:]
}

// stripDateShapes rimuove tutte le espressioni di data riconoscibili.
// Le forme "N de <parola>" si tolgono solo se la parola è davvero un mese.
func stripDateShapes(msg string) string {
	for i, shape := range dateShapes {
		if i < 2 {
			msg = shape.ReplaceAllStringFunc(msg, func(s string) string {
				m := shape.FindStringSubmatch(s)
				if _, ok := monthIndex[m[1]]; ok {
					return " "
				}
				return s
			})
			continue
		}
		msg = shape.ReplaceAllString(msg, " ")
	}
	return msg
}

func cleanLabel(msg string) string {
	for _, phrase := range triggerPhrases {
		msg = strings.ReplaceAll(msg, phrase, " ")
	}
	msg = strings.Join(strings.Fields(msg), " ")
	return strings.Trim(msg, " ,.;:-!")
}
