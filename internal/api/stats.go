package api

import "net/http"

type statsHandler struct {
	stats        StatsSource
	interactions InteractionCounter
}

type statsResponse struct {
	Documents   int64 `json:"documents"`
	Fragments   int64 `json:"fragments"`
	Unresponded int64 `json:"unresponded_interactions"`
}

func (h *statsHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.stats.CountDocuments(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "counting documents failed")
		return
	}

	frags, err := h.stats.CountFragments(ctx, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "counting fragments failed")
		return
	}

	resp := statsResponse{Documents: docs, Fragments: frags}
	if h.interactions != nil {
		unresponded, err := h.interactions.CountUnresponded(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "counting interactions failed")
			return
		}
		resp.Unresponded = unresponded
	}

	writeJSON(w, http.StatusOK, resp)
}
