package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/softbatch/loaf/internal/app"
	"github.com/softbatch/loaf/internal/draft"
)

var draftPublish bool

var draftCmd = &cobra.Command{
	Use:   "draft [topic]",
	Short: "Compose a post about a topic, grounded in the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDraft,
}

func init() {
	draftCmd.Flags().BoolVar(&draftPublish, "publish", false, "publish immediately instead of saving a draft")
	rootCmd.AddCommand(draftCmd)
}

func runDraft(cmd *cobra.Command, args []string) error {
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

	topic := strings.Join(args, " ")

	results, err := a.Store.Retrieve(ctx, topic)
	if err != nil {
		return fmt.Errorf("searching knowledge base: %w", err)
	}
	contexts := make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Content)
	}

	content, err := a.GenAI.ComposePost(ctx, topic, contexts)
	if err != nil {
		return fmt.Errorf("composing post: %w", err)
	}

	if draftPublish {
		client, err := a.MastodonClient()
		if err != nil {
			return err
		}
		status, err := client.PostStatus(ctx, content, "")
		if err != nil {
			return fmt.Errorf("publishing post: %w", err)
		}
		fmt.Printf("published %s\n\n%s\n", status.ID, content)
		return nil
	}

	d := &draft.Draft{Kind: draft.KindPost, Content: content, Subject: topic}
	if err := a.Drafts.Save(ctx, d); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}

	fmt.Printf("draft %s saved\n\n%s\n", d.ID, content)
	return nil
}
