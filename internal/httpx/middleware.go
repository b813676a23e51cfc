package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// correlationIDCtxKey is the unexported context key type to avoid collisions.
// We intentionally use a private struct{} key rather than a string to prevent
// accidental overwrites from other packages.
type correlationIDCtxKey struct{}

var cidKey = correlationIDCtxKey{}

// CorrelationIDHeader is the HTTP header used for inbound/outbound correlation IDs.
const CorrelationIDHeader = "X-Correlation-ID"

// correlationPrefix marks a correlation ID as minted by this service, the
// same two-character-prefix convention internal/domain/id.go uses for SN/LK/FL/US
// identifiers. Correlation IDs are never persisted or parsed back into a
// domain type, but wearing the same shape keeps anything that greps logs
// for "<prefix><uuid>" from having to special-case this one value.
const correlationPrefix = "RQ"

// uuidTextLen is the length of the canonical hyphenated textual form
// returned by uuid.New().String().
const uuidTextLen = 36

// CorrelationIDMiddleware injects a per-request correlation ID into the
// request context and response headers. An incoming X-Correlation-ID is
// trusted only if it carries Cinder's own "RQ"-prefixed, UUID-bodied shape;
// anything else (absent, malformed, or a value some other system minted) is
// replaced with a freshly generated one rather than echoed back verbatim, so
// a client can never plant an arbitrary string into our logs under the
// correlation-id field. Downstream handlers retrieve the value via
// GetCorrelationID.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if !isValidCorrelationID(cid) {
			cid = newCorrelationID()
		}
		ctx := context.WithValue(r.Context(), cidKey, cid)
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newCorrelationID mints a fresh "RQ<uuid>" correlation ID.
func newCorrelationID() string {
	return correlationPrefix + uuid.New().String()
}

// isValidCorrelationID reports whether s has the "RQ"-prefixed,
// UUID-bodied shape newCorrelationID produces.
func isValidCorrelationID(s string) bool {
	if len(s) != len(correlationPrefix)+uuidTextLen {
		return false
	}
	if s[:len(correlationPrefix)] != correlationPrefix {
		return false
	}
	_, err := uuid.Parse(s[len(correlationPrefix):])
	return err == nil
}

// GetCorrelationID extracts the correlation ID from the context. The second
// boolean return reports whether a value was present.
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cidKey).(string)
	return id, ok
}
