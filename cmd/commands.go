package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cexll/firstfix/internal/config"
	"github.com/cexll/firstfix/internal/executor"
	"github.com/cexll/firstfix/internal/state"
)

// overrides are the command-line flags that take precedence over the environment.
type overrides struct {
	dryRun    bool
	stateFile string
	query     string
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if flags.Changed("state-file") && o.stateFile != "" {
		cfg.StateFile = o.stateFile
	}
	if flags.Changed("query") && o.query != "" {
		cfg.SearchQuery = o.query
	}
}

func newRootCommand(out io.Writer, serve serveFunc) *cobra.Command {
	var o overrides

	runOnce := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		o.apply(cmd, cfg)

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		result, err := a.pipeline.RunOnce(cmd.Context())
		printResult(out, result)
		return err
	}

	root := &cobra.Command{
		Use:   "firstfix",
		Short: "Find a good first issue and open a pull request that fixes it",
		Long: `firstfix searches GitHub for open "good first issue" tickets, picks one it
has not handled before, asks Gemini to plan and implement a fix, validates the
result and opens a pull request.

Without a subcommand it performs a single pass, like "firstfix run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&o.dryRun, "dry-run", false, "commit locally but do not push or open a pull request")
	pf.StringVar(&o.stateFile, "state-file", "", "path of the processed issues log (overrides STATE_FILE)")
	pf.StringVar(&o.query, "query", "", "GitHub issue search query (overrides SEARCH_QUERY)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Process at most one issue and exit",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	})
	root.AddCommand(newServeCommand(&o, serve))
	root.AddCommand(newProcessedCommand(out, &o))

	return root
}

func newServeCommand(o *overrides, serve serveFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll for issues on an interval and serve run status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			o.apply(cmd, cfg)

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), a, serve)
		},
	}
}

func newProcessedCommand(out io.Writer, o *overrides) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "processed",
		Short: "List the issues recorded in the processed log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.StateFileFromEnv()
			if o.stateFile != "" {
				path = o.stateFile
			}
			processed, err := state.Open(path)
			if err != nil {
				return err
			}
			records := processed.List()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				fmt.Fprintf(out, "No issues recorded in %s\n", path)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROCESSED\tOUTCOME\tISSUE\tPULL REQUEST")
			for _, r := range records {
				pr := r.PullRequest
				if pr == "" {
					pr = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ProcessedAt.Format(time.RFC3339), r.Outcome, r.URL, pr)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func printResult(out io.Writer, result *executor.Result) {
	if result == nil {
		return
	}

	switch result.Status {
	case executor.StatusIdle:
		fmt.Fprintln(out, "No suitable issue found")
		return
	case executor.StatusSkipped:
		fmt.Fprintf(out, "Skipped %s: %s\n", result.Issue, result.Reason)
	case executor.StatusFailed:
		fmt.Fprintf(out, "Failed %s: %s\n", result.Issue, result.Reason)
	case executor.StatusDryRun:
		fmt.Fprintf(out, "Dry run for %s: committed %v on %s\n", result.Issue, result.Files, result.Branch)
	case executor.StatusPROpened:
		fmt.Fprintf(out, "Opened %s for %s\n", result.PRURL, result.Issue)
	}
	fmt.Fprintf(out, "Model calls: %d (prompt tokens %d, output tokens %d)\n",
		result.Usage.Calls, result.Usage.PromptTokens, result.Usage.OutputTokens)
}
