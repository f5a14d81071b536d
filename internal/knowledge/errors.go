package knowledge

import "errors"

var (
	// ErrInvalidConfig indicates bad retrieval parameters, such as a
	// non-positive top-k.
	ErrInvalidConfig = errors.New("invalid retrieval configuration")

	// ErrEmbeddingUnavailable indicates the embedding backend could not
	// be reached or rejected the request.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDataIntegrity indicates a storage constraint violation, such as
	// duplicate fragment ordinals within one source.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrDocumentNotFound indicates no sync record exists for a source ID.
	ErrDocumentNotFound = errors.New("document not found")
)
