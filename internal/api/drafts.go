package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/softbatch/loaf/internal/draft"
	"github.com/softbatch/loaf/internal/log"
)

type draftHandler struct {
	drafts    DraftStore
	publisher Publisher
	logger    log.Logger
}

type draftResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	Subject        string    `json:"subject,omitempty"`
	InReplyToID    string    `json:"in_reply_to_id,omitempty"`
	Author         string    `json:"author,omitempty"`
	ExternalPostID string    `json:"external_post_id,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func toDraftResponse(d draft.Draft) draftResponse {
	return draftResponse{
		ID:             d.ID.String(),
		Kind:           string(d.Kind),
		Content:        d.Content,
		Subject:        d.Subject,
		InReplyToID:    d.InReplyToID,
		Author:         d.Author,
		ExternalPostID: d.ExternalPostID,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
	}
}

// list returns drafts, filtered by ?status= (default: pending drafts).
func (h *draftHandler) list(w http.ResponseWriter, r *http.Request) {
	status := draft.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = draft.StatusDraft
	}

	drafts, err := h.drafts.List(r.Context(), status)
	if err != nil {
		h.logger.Error("listing drafts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing drafts failed")
		return
	}

	resp := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		resp = append(resp, toDraftResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *draftHandler) publish(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	ctx := r.Context()

	d, err := h.drafts.Get(ctx, id)
	if errors.Is(err, draft.ErrNotFound) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading draft failed")
		return
	}
	if d.Status != draft.StatusDraft {
		writeError(w, http.StatusConflict, "draft already resolved")
		return
	}

	status, err := h.publisher.PostStatus(ctx, d.Content, d.InReplyToID)
	if err != nil {
		h.logger.Error("publishing draft failed", "draft_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "publishing failed")
		return
	}

	if err := h.drafts.MarkPosted(ctx, id, status.ID); err != nil {
		h.logger.Error("marking draft posted failed", "draft_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "recording publication failed")
		return
	}

	d.Status = draft.StatusPosted
	d.ExternalPostID = status.ID
	writeJSON(w, http.StatusOK, toDraftResponse(*d))
}

func (h *draftHandler) discard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}

	err = h.drafts.Discard(r.Context(), id)
	switch {
	case errors.Is(err, draft.ErrNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, draft.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "draft already resolved")
	case err != nil:
		h.logger.Error("discarding draft failed", "draft_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "discarding draft failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
	}
}
