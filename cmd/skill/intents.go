package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"homeassistant-skill/config"
	"homeassistant-skill/internal/domain"
	"homeassistant-skill/internal/infra/intents"
	"homeassistant-skill/locale"
)

func newIntentsCmd(flags *globalFlags) *cobra.Command {
	var (
		lang       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "intents",
		Short: "Print the expanded sample utterances of every intent",
		Long: `Print the sample utterances the skill registers with the host intent
engine, after expanding (a|b) alternatives and [optional] words.

Use --json for machine-readable output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lang == "" {
				cfg, err := config.Load(flags.configPath)
				if err != nil {
					return err
				}
				lang = cfg.Skill.Lang
			}
			return printIntents(cmd.OutOrStdout(), lang, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "language to print (defaults to skill.lang)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printIntents(w io.Writer, lang string, jsonOutput bool) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := intents.NewService(nil, locale.FS, "", lang, locale.DefaultLang, logger)

	all := make(map[domain.Intent][]string)
	for _, intent := range domain.AllIntents() {
		samples, _, err := svc.Samples(intent)
		if err != nil {
			return err
		}
		all[intent] = samples
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	for _, intent := range domain.AllIntents() {
		fmt.Fprintf(w, "%s (%d)\n", intent, len(all[intent]))
		for _, s := range all[intent] {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	return nil
}
