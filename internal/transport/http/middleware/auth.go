package httpmw

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyToken       ctxKey = "token"
	ctxKeyParticipant ctxKey = "participant_id"
)

// AuthMiddleware requires Bearer + X-Participant-ID. Token verification
// happens upstream of this service; here the headers only have to be
// present.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		participantID := strings.TrimSpace(r.Header.Get("X-Participant-ID"))
		if participantID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Participant-ID")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyToken, strings.TrimSpace(auth[7:]))
		ctx = context.WithValue(ctx, ctxKeyParticipant, participantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

func ParticipantIDFromCtx(ctx context.Context) string {
	if v := ctx.Value(ctxKeyParticipant); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
