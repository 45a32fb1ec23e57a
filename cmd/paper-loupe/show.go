// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-loupe/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show [arxiv-id]",
	Short: "Inspect the record store",
	Long: `Show reads the accumulated record store. Bare it lists stored papers in
ranked order; with an arXiv id it prints one paper in full, including
per-question scores. --search runs a full-text query over titles and
abstracts, --runs lists recent pipeline runs, and --export dumps the
whole store as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().String("store", "", "record store path (overrides config)")
	showCmd.Flags().String("search", "", "full-text search query (FTS5 syntax)")
	showCmd.Flags().Int("limit", 20, "maximum rows to list")
	showCmd.Flags().Bool("runs", false, "list recent runs instead of papers")
	showCmd.Flags().Bool("export", false, "write the full store as JSON to stdout")
	showCmd.Flags().Bool("json", false, "output listings as JSON")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store = expandHome(v)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if export, _ := cmd.Flags().GetBool("export"); export {
		return st.ExportJSON(ctx, os.Stdout)
	}
	if runs, _ := cmd.Flags().GetBool("runs"); runs {
		return showRuns(ctx, st, limit, jsonOutput)
	}
	if len(args) == 1 {
		return showOne(ctx, st, args[0])
	}

	var records []store.Record
	if query, _ := cmd.Flags().GetString("search"); query != "" {
		records, err = st.Search(ctx, query, limit)
	} else {
		records, err = st.Load(ctx)
		if err == nil && limit > 0 && len(records) > limit {
			records = records[:limit]
		}
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	printRecords(records)
	return nil
}

func printRecords(records []store.Record) {
	if len(records) == 0 {
		fmt.Println("No papers stored.")
		return
	}

	fmt.Printf("%-6s  %-13s  %-60s  %s\n", "Score", "ArXiv", "Title", "Confidence")
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range records {
		score := "-"
		if r.Scored {
			score = fmt.Sprintf("%.1f", r.Aggregate)
		}
		id := r.ExternalID
		if id == "" {
			id = "-"
		}
		fmt.Printf("%-6s  %-13s  %-60s  %s\n", score, id, truncate(r.Title, 60), r.Confidence)
	}
	fmt.Printf("\n%d papers\n", len(records))
}

func showOne(ctx context.Context, st *store.Store, externalID string) error {
	r, err := st.Get(ctx, externalID)
	if err != nil {
		return err
	}

	fmt.Printf("Title:      %s\n", r.Title)
	fmt.Printf("ArXiv:      %s\n", r.ExternalID)
	if len(r.Authors) > 0 {
		fmt.Printf("Authors:    %s\n", strings.Join(r.Authors, ", "))
	}
	if !r.Date.IsZero() {
		fmt.Printf("Date:       %s\n", r.Date.Format("2006-01-02"))
	}
	if r.Venue != "" {
		fmt.Printf("Venue:      %s\n", r.Venue)
	}
	if r.Link != "" {
		fmt.Printf("Link:       %s\n", r.Link)
	}
	fmt.Printf("Confidence: %s\n", r.Confidence)
	fmt.Printf("First seen: %s (run %s)\n", r.FirstSeenAt.Format("2006-01-02"), r.FirstSeenRun)

	if r.Summary != "" {
		fmt.Printf("\n%s\n", r.Summary)
	}

	if r.Scored {
		fmt.Printf("\nAggregate score: %.1f\n", r.Aggregate)
		questions := make([]string, 0, len(r.Scores))
		for question := range r.Scores {
			questions = append(questions, question)
		}
		sort.Strings(questions)
		for _, question := range questions {
			fmt.Printf("  %.1f  %s\n", r.Scores[question], question)
			if reason := r.Reasons[question]; reason != "" {
				fmt.Printf("        %s\n", reason)
			}
		}
	} else {
		fmt.Println("\nNot yet scored.")
	}
	return nil
}

func showRuns(ctx context.Context, st *store.Store, limit int, jsonOutput bool) error {
	runs, err := st.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-19s  %-9s  %6s  %5s  %8s  %10s  %6s\n",
		"Started", "Status", "Emails", "Stubs", "Resolved", "Unresolved", "Judged")
	fmt.Println(strings.Repeat("-", 76))
	for _, run := range runs {
		fmt.Printf("%-19s  %-9s  %6d  %5d  %8d  %10d  %6d\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Status,
			run.Counts.Emails, run.Counts.Stubs, run.Counts.Resolved,
			run.Counts.Unresolved, run.Counts.Judged)
		if run.Detail != "" {
			fmt.Printf("    %s\n", run.Detail)
		}
	}
	return nil
}
