package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes leaves room for JSON escaping of the largest allowed entry.
const maxBodyBytes = 4*services.MaxContentBytes + 4096

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(common.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", common.ErrValidation, name)
	}
	return &t, nil
}

func (h *Handler) setupSecurity(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.security.Setup(r.Context(), sessionUserFrom(r.Context()), req.PIN, req.AuthMethod); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := h.security.Unlock(r.Context(), sessionUserFrom(r.Context()), req.PIN)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeSuccess:
		writeJSON(w, http.StatusOK, unlockResponse{
			AccessToken: res.Token.Token,
			ExpiresAt:   res.Token.ExpiresAt.UTC(),
		})
	case services.OutcomeLocked:
		setRetryAfter(w, res.RetryAfter)
		writeJSON(w, http.StatusLocked, errorResponse{
			Error:             common.ErrLocked.Error(),
			RetryAfterSeconds: retryAfterSeconds(res.RetryAfter),
		})
	case services.OutcomeInvalid:
		body := errorResponse{Error: common.ErrInvalidCredential.Error()}
		if !h.opts.UniformUnlockErrors {
			remaining := res.AttemptsRemaining
			body.AttemptsRemaining = &remaining
		}
		writeJSON(w, http.StatusUnauthorized, body)
	case services.OutcomeNotConfigured:
		if h.opts.UniformUnlockErrors {
			writeError(w, http.StatusUnauthorized, common.ErrInvalidCredential.Error())
			return
		}
		writeError(w, http.StatusNotFound, common.ErrNotConfigured.Error())
	default:
		h.writeServiceError(w, r, fmt.Errorf("unexpected unlock outcome %s", res.Outcome))
	}
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items, err := h.journal.List(r.Context(), tokenUserFrom(r.Context()), services.DateRange{From: from, To: to})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]entryListItem, 0, len(items))
	for _, m := range items {
		out = append(out, toListItem(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	date, err := parseDate("entry_date", req.EntryDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	meta, err := h.journal.Create(r.Context(), tokenUserFrom(r.Context()), services.CreateEntryInput{
		Content:    req.Content,
		PromptUsed: req.PromptUsed,
		EntryDate:  date,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMetadata(*meta))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.Get(r.Context(), chi.URLParam(r, "id"), tokenUserFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntry(entry))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	meta, err := h.journal.Update(r.Context(), chi.URLParam(r, "id"), tokenUserFrom(r.Context()), req.Content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMetadata(*meta))
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.Delete(r.Context(), chi.URLParam(r, "id"), tokenUserFrom(r.Context())); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
