package config

import "fmt"

var validStrategies = map[string]bool{
	"fixed_chars": true,
	"paragraphs":  true,
	"sentences":   true,
	"hybrid":      true,
}

// Validate checks ranges and enumerations. Credentials are checked by
// the commands that need them, not here, so read-only commands work
// without tokens.
func (c *Config) Validate() error {
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if !validStrategies[c.ChunkStrategy] {
		return fmt.Errorf("%w: %q", ErrInvalidChunkStrategy, c.ChunkStrategy)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize)
	}

	if c.ReplyMode != "draft" && c.ReplyMode != "auto" {
		return fmt.Errorf("%w: %q", ErrInvalidReplyMode, c.ReplyMode)
	}

	if c.DocumentInterval <= 0 {
		return fmt.Errorf("%w: document_interval %s", ErrInvalidInterval, c.DocumentInterval)
	}
	if c.MentionInterval <= 0 {
		return fmt.Errorf("%w: mention_interval %s", ErrInvalidInterval, c.MentionInterval)
	}

	return nil
}

// RequireNotion ensures credentials for the Notion source are present.
func (c *Config) RequireNotion() error {
	if c.NotionToken == "" {
		return ErrMissingNotionToken
	}
	return nil
}

// RequireMastodon ensures credentials for the Mastodon feed are present.
func (c *Config) RequireMastodon() error {
	if c.MastodonToken == "" {
		return ErrMissingMastodonToken
	}
	return nil
}
