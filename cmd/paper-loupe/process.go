package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-loupe/internal/arxiv"
	"github.com/pdiddy/paper-loupe/internal/judge"
	"github.com/pdiddy/paper-loupe/internal/mailbox"
	"github.com/pdiddy/paper-loupe/internal/pipeline"
	"github.com/pdiddy/paper-loupe/internal/rank"
	"github.com/pdiddy/paper-loupe/internal/resolve"
	"github.com/pdiddy/paper-loupe/internal/secrets"
	"github.com/pdiddy/paper-loupe/internal/store"
	"github.com/pdiddy/paper-loupe/internal/throttle"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch new alert digests, resolve the papers, and rank them",
	Long: `Process runs one full triage pass: fetch Scholar Alert Digest emails
received since the cutoff, parse the recommended papers, resolve each
against arXiv, persist them in the record store, score them against your
research questions, and print the ranked result.

Papers resolved by earlier runs are skipped. With --dry-run the pass
stops after resolution and makes no judge calls; the papers wait in the
store and are scored by the next full run.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("since", "", "fetch digests after this date (YYYY-MM-DD, default 7 days ago)")
	processCmd.Flags().String("questions", "", "YAML file of research questions (overrides config)")
	processCmd.Flags().String("model", "", "judge model key (overrides config, see 'models')")
	processCmd.Flags().String("store", "", "record store path (overrides config)")
	processCmd.Flags().String("output", "", "write the ranked papers to a JSON file")
	processCmd.Flags().Int("top-n", 20, "rows in the results table (0 = all)")
	processCmd.Flags().Bool("dry-run", false, "stop after resolution, no judge calls")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store = expandHome(v)
	}
	if path, _ := cmd.Flags().GetString("questions"); path != "" {
		questions, err := judge.ReadQuestionsFile(path)
		if err != nil {
			return err
		}
		cfg.Questions = questions
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	since, err := sinceFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	source, err := mailbox.NewGmailSource(ctx, cfg.Mailbox)
	if err != nil {
		return err
	}

	resolver := &resolve.Resolver{
		Backend: arxiv.NewClient(cfg.Lookup),
		Gate:    throttle.NewGate(cfg.Lookup.BaseInterval, cfg.Lookup.Jitter),
	}

	var (
		judger pipeline.Judger
		model  judge.ModelInfo
	)
	if !dryRun {
		model, err = judge.Lookup(cfg.Model)
		if err != nil {
			return err
		}
		loaded, err := secrets.Load(cfg.Secrets)
		if err != nil {
			return err
		}
		keys := judge.Keys{
			Anthropic: secrets.Resolve(loaded, secrets.AnthropicKeyFile, secrets.AnthropicKeyEnv),
			OpenAI:    secrets.Resolve(loaded, secrets.OpenAIKeyFile, secrets.OpenAIKeyEnv),
		}
		backend, err := judge.NewBackend(model, keys, cfg.Judge)
		if err != nil {
			return err
		}
		judger = judge.New(backend, cfg.Questions, cfg.Judge)
	}

	p := pipeline.New(source, resolver, st, judger, cfg.Aggregation)
	p.Log = logger
	p.Progress = os.Stdout

	res, err := p.Run(ctx, since)
	if err != nil {
		return err
	}

	topN, _ := cmd.Flags().GetInt("top-n")
	printReport(os.Stdout, res, model, topN, dryRun)

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := writeResults(path, res); err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", path)
	}
	return nil
}

// sinceFlag parses --since, defaulting to a week back. Gmail's date
// operator has day granularity, so the zero time of day is fine.
func sinceFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("since")
	if raw == "" {
		return time.Now().AddDate(0, 0, -7), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: use YYYY-MM-DD", raw)
	}
	return t, nil
}

func printReport(w io.Writer, res *pipeline.Result, model judge.ModelInfo, topN int, dryRun bool) {
	if len(res.Ranked) > 0 {
		top := rank.Top(res.Ranked, topN)

		fmt.Fprintf(w, "\n%-4s  %-6s  %-13s  %-56s  %s\n", "Rank", "Score", "ArXiv", "Title", "Date")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for i, rp := range top {
			score := "-"
			if rp.Scored {
				score = fmt.Sprintf("%.1f", rp.Aggregate)
			}
			date := ""
			if !rp.Paper.Date.IsZero() {
				date = rp.Paper.Date.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%-4d  %-6s  %-13s  %-56s  %s\n",
				i+1, score, rp.Paper.ExternalID, truncate(rp.Paper.Title, 56), date)
		}
	}

	if len(res.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved (%d):\n", len(res.Unresolved))
		for _, paper := range res.Unresolved {
			fmt.Fprintf(w, "  - %s\n", paper.Title)
		}
	}

	if !dryRun && res.Judge.Total() > 0 {
		usage := res.Judge.Usage
		fmt.Fprintf(w, "\nJudge usage: %d input / %d output tokens, $%.4f (%s)\n",
			usage.InputTokens, usage.OutputTokens, model.Cost(usage), model.Key)
		if res.Judge.Missed > 0 {
			fmt.Fprintf(w, "Missing scores: %d question/paper pairs failed and were left unscored\n",
				res.Judge.Missed)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// writeResults exports the ranked papers for downstream tooling.
func writeResults(path string, res *pipeline.Result) error {
	out := struct {
		RunID      string                `json:"run_id"`
		Papers     []types.RankedPaper   `json:"papers"`
		Unresolved []types.ResolvedPaper `json:"unresolved,omitempty"`
	}{
		RunID:      res.RunID,
		Papers:     res.Ranked,
		Unresolved: res.Unresolved,
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	return nil
}
