package handler

import (
	"net/http"
	"strconv"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/payload"
	"github.com/patcharinz/healthmate-api/shared/middleware"
)

const defaultSessionHistoryLimit = 20

// GetUserSessions returns the authenticated user's session history,
// most recent first.
func (h *Handler) GetUserSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		h.respondError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	limit := int64(defaultSessionHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	sessions, err := h.tracker.GetUserSessions(r.Context(), claims.Subject, limit)
	if err != nil {
		h.respondOperationError(w, err, "failed to list user sessions")
		return
	}

	records := make([]payload.SessionRecord, 0, len(sessions))
	for _, session := range sessions {
		records = append(records, toSessionRecord(session))
	}

	h.respond(w, http.StatusOK, records)
}

func toSessionRecord(session *model.Session) payload.SessionRecord {
	return payload.SessionRecord{
		ID:              session.ID.Hex(),
		UserID:          session.UserID,
		LoginTime:       session.LoginTime,
		LogoutTime:      session.LogoutTime,
		DurationMinutes: session.DurationMinutes,
		DeviceInfo:      session.DeviceInfo,
	}
}
