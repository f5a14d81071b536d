package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/softbatch/loaf/internal/app"
	"github.com/softbatch/loaf/internal/knowledge"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 5, "number of fragments to return")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.Join(args, " ")
	results, err := a.Store.Retrieve(ctx, question, knowledge.WithTopK(askTopK))
	if err != nil {
		return fmt.Errorf("searching knowledge base: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no matching fragments")
		return nil
	}

	for i, r := range results {
		title := r.Metadata["title"]
		if title == "" {
			title = r.SourceID
		}
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Similarity, title)
		fmt.Println(indent(r.Content, "   "))
	}

	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
