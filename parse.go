package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whatsapp-reminders/models"
	"whatsapp-reminders/parser"
	"whatsapp-reminders/utils"
)

// nowFlag fissa l'istante di riferimento del parser (RFC3339)
var nowFlag string

var parseCmd = &cobra.Command{
	Use:   "parse <testo>",
	Short: "Mostra come il parser interpreta un messaggio, senza salvarlo",
	Long: `Mostra come il parser interpreta un messaggio, senza salvarlo.

Esempi:
  lembretes parse "reunião dia 15 de maio às 14:00"
  lembretes parse --now 2026-10-15T09:00:00-03:00 "dentista amanhã às 3 da tarde"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&nowFlag, "now", "", "istante di riferimento in formato RFC3339 (default: adesso)")
	rootCmd.AddCommand(parseCmd)
}

type parseOutput struct {
	Matched bool          `json:"matched"`
	Draft   *models.Draft `json:"draft,omitempty"`
	Now     time.Time     `json:"now"`
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	now := time.Now()
	if nowFlag != "" {
		if now, err = time.Parse(time.RFC3339, nowFlag); err != nil {
			return fmt.Errorf("valore di --now non valido: %w", err)
		}
	}
	now = now.In(loc)

	draft, ok := parser.Parse(strings.Join(args, " "), now)
	out := parseOutput{Matched: ok, Now: now}
	if ok {
		full := draft.Materialize(now)
		out.Draft = &full
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
