package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"whatsapp-reminders/handlers"
	"whatsapp-reminders/parser"
	"whatsapp-reminders/utils"
	"whatsapp-reminders/whatsapp"
)

var (
	// configPath è il file YAML di configurazione
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lembretes",
	Short: "Bot WhatsApp di promemoria in portoghese",
	Long: `lembretes legge i messaggi privati ricevuti su WhatsApp, riconosce i
promemoria scritti in portoghese ("reunião amanhã às 14:00") e li notifica
all'orario indicato e il giorno prima.`,
	Version:      version,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Avvia il bot, lo scheduler e il server HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "file di configurazione YAML")
	rootCmd.AddCommand(serveCmd)
}

// loadRuntime carica configurazione e logger, comuni a tutti i comandi
func loadRuntime() (*utils.Config, zerolog.Logger, error) {
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("livello di log non valido: %w", err)
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Errore nella chiusura dello store")
		}
	}()

	hub := handlers.NewHub(logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.Notifier.RatePerSecond), cfg.Notifier.Burst)
	client, err := whatsapp.NewClient(cfg.WhatsApp.SessionPath, hub, limiter, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dailyPolicy, err := handlers.ParseNotifyPolicy(cfg.Scheduler.DailyPolicy)
	if err != nil {
		return err
	}
	dayBeforePolicy, err := handlers.ParseNotifyPolicy(cfg.Scheduler.DayBeforePolicy)
	if err != nil {
		return err
	}
	scheduler := handlers.NewReminderService(store, client, handlers.SchedulerConfig{
		Interval:        cfg.Scheduler.Interval,
		Window:          cfg.Scheduler.Window,
		Location:        loc,
		DailyPolicy:     dailyPolicy,
		DayBeforePolicy: dayBeforePolicy,
		IsolateFailures: cfg.Scheduler.IsolateFailures,
		LedgerSize:      cfg.Scheduler.LedgerSize,
	}, logger, handlers.WithMetrics(handlers.NewMetrics(registry)), handlers.WithBroadcaster(hub))

	p := parser.New(loc, nil)
	conversations := handlers.NewConversationRegistry(cfg.Conversation.MaxEntries, cfg.Conversation.TTL)
	commands := handlers.NewCommandService(store, p, client, conversations, loc, logger)
	registerEventHandlers(client, commands, logger)

	if err := client.Connect(ctx); err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	router := newRouter(handlers.APIDeps{
		Store:     store,
		Parser:    p,
		Scheduler: scheduler,
		Hub:       hub,
		Gatherer:  registry,
		Location:  loc,
	}, cfg.Log.Level == "debug", logger)

	logger.Info().Str("store", cfg.Store.Backend).Str("timezone", loc.String()).Int("port", cfg.Server.Port).
		Msg("🚀 Bot dei lembretes avviato")
	return runHTTPServer(ctx, router, cfg.Server.Port, logger)
}
