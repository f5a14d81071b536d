package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const postPrompt = `You are the social media voice of a small sourdough bakery.
Write a single short post about the topic below. Warm, concrete, no hashtag spam,
no emoji walls. Stay under 400 characters.

Background notes:
%s

Topic: %s

Post:`

const replyPrompt = `You are the social media voice of a small sourdough bakery.
Write a friendly, helpful reply to the message below. Answer from the background
notes when they are relevant; otherwise answer briefly and honestly. Stay under
400 characters. Reply with the text only.

Background notes:
%s

From @%s:
%s

Reply:`

// ComposePost drafts a social post about a topic, grounded in the
// supplied context fragments.
func (c *Client) ComposePost(ctx context.Context, topic string, contexts []string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(postPrompt, joinContexts(contexts), topic))
}

// ComposeReply drafts a reply to a mention, grounded in the supplied
// context fragments.
func (c *Client) ComposeReply(ctx context.Context, author, message string, contexts []string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(replyPrompt, joinContexts(contexts), author, message))
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithPrompt(prompt),
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty text")
	}

	return text, nil
}

func joinContexts(contexts []string) string {
	if len(contexts) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	return b.String()
}
