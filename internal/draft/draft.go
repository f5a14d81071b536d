// Package draft persists generated posts and replies awaiting human
// review before publication.
package draft

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes standalone posts from replies to a mention.
type Kind string

const (
	KindPost  Kind = "post"
	KindReply Kind = "reply"
)

// Status tracks a draft through review.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPosted    Status = "posted"
	StatusDiscarded Status = "discarded"
)

var (
	// ErrNotFound is returned when the requested draft does not exist.
	ErrNotFound = errors.New("draft not found")

	// ErrAlreadyResolved is returned when posting or discarding a draft
	// that has already left the draft state.
	ErrAlreadyResolved = errors.New("draft already resolved")
)

// Draft is one piece of generated content awaiting review.
//
// Zero values:
//   - ID: uuid.Nil (assigned on save)
//   - Subject: "" (no recorded trigger)
//   - InReplyToID: "" (standalone post)
//   - Author: "" (no originating account)
//   - ExternalPostID: "" (not yet published)
type Draft struct {
	ID      uuid.UUID
	Kind    Kind
	Content string

	// Subject records what prompted the draft: the source document for a
	// change announcement, or the topic of a manually composed post.
	Subject string

	InReplyToID    string
	Author         string
	ExternalPostID string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
