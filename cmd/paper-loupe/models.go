package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-loupe/internal/judge"
)

var modelsCmd = &cobra.Command{
	Use:   "models [key]",
	Short: "List the judge models paper-loupe can use",
	Long: `Models prints the registry of supported judge models with their
providers, token limits, and prices. With a key it prints one entry.
The 'model' config field and the process --model flag take these keys.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		info, err := judge.Lookup(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Key:            %s\n", info.Key)
		fmt.Printf("Provider:       %s\n", info.Provider)
		fmt.Printf("Model ID:       %s\n", info.ID)
		fmt.Printf("Context window: %d tokens\n", info.ContextWindow)
		fmt.Printf("Max output:     %d tokens\n", info.MaxOutput)
		fmt.Printf("Price:          $%.2f in / $%.2f out per MTok\n", info.InputPer1M, info.OutputPer1M)
		return nil
	}

	fmt.Printf("%-18s  %-10s  %9s  %8s  %14s\n", "Key", "Provider", "Context", "Max out", "$/MTok in/out")
	fmt.Println(strings.Repeat("-", 68))
	for _, info := range judge.Models() {
		fmt.Printf("%-18s  %-10s  %9d  %8d  %6.2f / %.2f\n",
			info.Key, info.Provider, info.ContextWindow, info.MaxOutput,
			info.InputPer1M, info.OutputPer1M)
	}
	return nil
}
