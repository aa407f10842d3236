package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/llm"
	"github.com/efebarandurmaz/hybridrag/internal/tui"
)

func newAskCmd(o *rootOptions) *cobra.Command {
	var (
		jsonOut     bool
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("%w: question is empty", domain.ErrValidation)
			}

			rc, err := o.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeApp(rc)

			ans, err := rc.Answer(cmd.Context(), question)
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), ans, jsonOut, showContext)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the answer and context as JSON")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the retrieved passages after the answer")
	return cmd
}

func printAnswer(w io.Writer, ans app.Answer, jsonOut, showContext bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	fmt.Fprintln(w, ans.Text)
	if !showContext {
		return nil
	}
	fmt.Fprintln(w, "\nContext:")
	for i, p := range ans.Bundle.Passages {
		fmt.Fprintf(w, "  [%d] (%s) %s\n", i+1, p.Source, p.Text)
	}
	for store, err := range ans.Bundle.SourceErrors {
		fmt.Fprintf(w, "  %s unavailable: %v\n", store, err)
	}
	return nil
}

func newChatCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively until 'exit' or 'quit'",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				o.logLevel = "error"
			}

			rc, err := o.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeApp(rc)

			if rc.ModelErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), rc.ModelErr)
				return rc.ModelErr
			}
			if interactive {
				return tui.RunChat(cmd.Context(), rc, rc.Model)
			}
			return tui.RunLines(cmd.Context(), rc, rc.Model, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newModelsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List installed models and show which one answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.load(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			provider, err := app.NewProvider(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			lister, ok := provider.(llm.ModelLister)
			if !ok {
				fmt.Fprintf(out, "Provider %s cannot list models; configured model: %s\n", provider.Name(), cfg.LLM.Model)
				return nil
			}

			installed, err := lister.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w: listing models: %w", domain.ErrModelUnavailable, err)
			}
			selected, selErr := llm.SelectModel(installed, cfg.LLM.Model, cfg.LLM.ModelFamily)

			fmt.Fprintf(out, "Installed models (%s):\n", provider.Name())
			for _, m := range installed {
				marker := " "
				if m == selected {
					marker = "*"
				}
				fmt.Fprintf(out, "  %s %s\n", marker, m)
			}
			if selErr != nil {
				var me *domain.ModelError
				if errors.As(selErr, &me) && me.Remediation != "" {
					fmt.Fprintf(out, "\nNo compatible model found.\n  %s\n", me.Remediation)
				}
				return selErr
			}
			fmt.Fprintf(out, "\nAnswers use: %s\n", selected)
			return nil
		},
	}
}
