package parser

import (
	"regexp"
	"strconv"
	"time"

	"whatsapp-reminders/models"
)

// Parole chiave di ricorrenza, in ordine di priorità: vince il primo gruppo trovato
var frequencyKeywords = []struct {
	frequency models.Frequency
	keywords  []string
}{
	{models.FrequencyDaily, []string{"todos os dias", "diariamente", "todo dia"}},
	{models.FrequencyWeekly, []string{"toda semana", "semanalmente"}},
	{models.FrequencyMonthly, []string{"todo mês", "mensalmente"}},
}

// Frasi da togliere dall'etichetta. Le forme con "de" vanno prima di quelle corte.
var triggerPhrases = []string{
	"me lembre de",
	"me lembre",
	"me avise de",
	"me avise",
	"não esqueça de",
	"não esqueça",
	"lembrar de",
	"todos os dias",
	"diariamente",
	"todo dia",
	"toda semana",
	"semanalmente",
	"todo mês",
	"mensalmente",
}

// monthIndex mappa nomi e abbreviazioni portoghesi dei mesi (0 = gennaio)
var monthIndex = map[string]int{
	"janeiro": 0, "jan": 0,
	"fevereiro": 1, "fev": 1,
	"março": 2, "mar": 2,
	"abril": 3, "abr": 3,
	"maio": 4, "mai": 4,
	"junho": 5, "jun": 5,
	"julho": 6, "jul": 6,
	"agosto": 7, "ago": 7,
	"setembro": 8, "set": 8,
	"outubro": 9, "out": 9,
	"novembro": 10, "nov": 10,
	"dezembro": 11, "dez": 11,
}

// dateRule è una coppia (pattern, estrattore). extract restituisce false se il
// match non è interpretabile: in quel caso si passa alla regola successiva.
type dateRule struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string, today models.Date) (models.Date, bool)
}

// dateRules sono valutate in questo ordine; vince il primo match interpretabile
var dateRules = []dateRule{
	{
		name:    "dia N de mês",
		pattern: regexp.MustCompile(`dia (\d{1,2}) de ([a-zç]+)`),
		extract: extractDayMonthName,
	},
	{
		name:    "N de mês",
		pattern: regexp.MustCompile(`(\d{1,2}) de ([a-zç]+)`),
		extract: extractDayMonthName,
	},
	{
		name:    "hoje",
		pattern: regexp.MustCompile(`hoje`),
		extract: func(_ []string, today models.Date) (models.Date, bool) {
			return today, true
		},
	},
	{
		name:    "amanhã",
		pattern: regexp.MustCompile(`amanhã`),
		extract: func(_ []string, today models.Date) (models.Date, bool) {
			return today.AddDays(1), true
		},
	},
	{
		name:    "D/M[/A]",
		pattern: regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?`),
		extract: extractNumericDate,
	},
}

func extractDayMonthName(m []string, today models.Date) (models.Date, bool) {
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Date{}, false
	}
	month, ok := monthIndex[m[2]]
	if !ok {
		return models.Date{}, false
	}
	d, err := models.NewDate(today.Year, time.Month(month+1), day)
	if err != nil {
		return models.Date{}, false
	}
	return d, true
}

func extractNumericDate(m []string, today models.Date) (models.Date, bool) {
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Date{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return models.Date{}, false
	}
	year := today.Year
	if m[3] != "" {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return models.Date{}, false
		}
		if year < 100 {
			year += 2000
		}
	}
	d, err := models.NewDate(year, time.Month(month), day)
	if err != nil {
		return models.Date{}, false
	}
	return d, true
}

// Forme di data rimosse dall'etichetta quando una data è stata trovata
var dateShapes = []*regexp.Regexp{
	regexp.MustCompile(`dia \d{1,2} de ([a-zç]+)`),
	regexp.MustCompile(`\d{1,2} de ([a-zç]+)`),
	regexp.MustCompile(`hoje`),
	regexp.MustCompile(`amanhã`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{2,4})?`),
}

// Marcatore del periodo del giorno. Deve finire su un carattere che non sia una
// lettera, altrimenti "8 amigos" verrebbe letto come "8 am".
const markerFragment = `(?:\s*(am|pm|horas?|h|da manhã|da tarde|da noite)(?:$|[^\p{L}]))`

// timeRule riconosce un orario; i gruppi indicano dove leggere ora, minuti e marcatore
type timeRule struct {
	name    string
	pattern *regexp.Regexp
	hour    int
	minute  int // 0 = minuti assenti
	marker  int // 0 = marcatore assente
}

// timeRules sono valutate in ordine sul testo già privato della data
var timeRules = []timeRule{
	{
		name:    "H:MM",
		pattern: regexp.MustCompile(`(\d{1,2})[:.h](\d{2})` + markerFragment + `?`),
		hour:    1, minute: 2, marker: 3,
	},
	{
		name:    "H + periodo",
		pattern: regexp.MustCompile(`(\d{1,2})` + markerFragment),
		hour:    1, marker: 2,
	},
	{
		name:    "às H",
		pattern: regexp.MustCompile(`(?:^|[^\p{L}])(?:às|as)\s+(\d{1,2})(?:$|\D)`),
		hour:    1,
	},
	{
		name:    "H",
		pattern: regexp.MustCompile(`(?:^|\D)(\d{1,2})(?:$|\D)`),
		hour:    1,
	},
}

// Preposizione che precede l'orario, da togliere insieme all'orario
var timePreposition = regexp.MustCompile(`(?:^|\s)(?:às|as)\s*$`)

// applyPeriod converte l'ora secondo il marcatore (12 ore -> 24 ore)
func applyPeriod(hour int, marker string) int {
	switch marker {
	case "pm", "da tarde", "da noite":
		if hour < 12 {
			hour += 12
		}
	case "am", "da manhã":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}
