package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // fusi orari anche nelle immagini senza zoneinfo

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix è il prefisso delle variabili d'ambiente. "__" separa i livelli:
// LEMBRETES_SCHEDULER__DAILY_POLICY imposta scheduler.daily_policy.
const EnvPrefix = "LEMBRETES_"

// Backend di persistenza supportati
const (
	BackendBolt  = "bolt"
	BackendMySQL = "mysql"
	BackendRedis = "redis"
)

// Configurazione del database
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type BoltConfig struct {
	Path string `koanf:"path"`
}

type StoreConfig struct {
	Backend string `koanf:"backend"`
}

type WhatsAppConfig struct {
	// SessionPath è il file sqlite con le chiavi della sessione whatsmeow
	SessionPath string `koanf:"session_path"`
	// DebugLevel è il livello di log passato a whatsmeow
	DebugLevel string `koanf:"debug_level"`
}

// Configurazione del server
type ServerConfig struct {
	Port int `koanf:"port"`
}

type SchedulerConfig struct {
	Interval        time.Duration `koanf:"interval"`
	Window          time.Duration `koanf:"window"`
	DailyPolicy     string        `koanf:"daily_policy"`
	DayBeforePolicy string        `koanf:"day_before_policy"`
	IsolateFailures bool          `koanf:"isolate_failures"`
	LedgerSize      int           `koanf:"ledger_size"`
}

// NotifierConfig limita la frequenza degli invii su WhatsApp
type NotifierConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

type ConversationConfig struct {
	MaxEntries int           `koanf:"max_entries"`
	TTL        time.Duration `koanf:"ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Configurazione completa
type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Bolt         BoltConfig         `koanf:"bolt"`
	Store        StoreConfig        `koanf:"store"`
	WhatsApp     WhatsAppConfig     `koanf:"whatsapp"`
	Server       ServerConfig       `koanf:"server"`
	Timezone     string             `koanf:"timezone"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Notifier     NotifierConfig     `koanf:"notifier"`
	Conversation ConversationConfig `koanf:"conversation"`
	Log          LogConfig          `koanf:"log"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database.host":               "localhost",
		"database.port":               3306,
		"database.user":               "root",
		"database.dbname":             "lembretes",
		"redis.addr":                  "localhost:6379",
		"redis.prefix":                "lembretes:",
		"bolt.path":                   "lembretes.db",
		"store.backend":               BackendBolt,
		"whatsapp.session_path":       "whatsmeow.db",
		"whatsapp.debug_level":        "INFO",
		"server.port":                 8080,
		"timezone":                    "America/Sao_Paulo",
		"scheduler.interval":          "1m",
		"scheduler.window":            "5m",
		"scheduler.daily_policy":      "once",
		"scheduler.day_before_policy": "once",
		"scheduler.isolate_failures":  false,
		"scheduler.ledger_size":       10000,
		"notifier.rate_per_second":    1.0,
		"notifier.burst":              5,
		"conversation.max_entries":    1000,
		"conversation.ttl":            "30m",
		"log.level":                   "info",
		"log.pretty":                  true,
	}
}

// LoadConfig carica i default, poi il file YAML (se esiste) e infine le
// variabili d'ambiente con prefisso LEMBRETES_
func LoadConfig(filePath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("errore nel caricamento dei valori di default: %w", err)
	}

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("errore nella lettura del file di configurazione: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("errore nella lettura delle variabili d'ambiente: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("errore nella decodifica della configurazione: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate controlla i valori che non possono essere corretti in silenzio
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBolt, BackendMySQL, BackendRedis:
	default:
		return fmt.Errorf("backend di persistenza sconosciuto: %q", c.Store.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scheduler.Interval <= 0 || c.Scheduler.Window <= 0 {
		return fmt.Errorf("intervallo e finestra dello scheduler devono essere positivi")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("porta del server non valida: %d", c.Server.Port)
	}
	return nil
}

// Location restituisce il fuso orario in cui interpretare date e orari
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("fuso orario non valido %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Ottieni la stringa di connessione al database
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
