package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the idempotency cache.
	IdempotencyReplayHeader = "X-Idempotency-Replay"
	// PendingMarker is the value stored while the first request is in flight.
	PendingMarker = "processing"

	// DefaultIdempotencyTTL is how long a completed response is replayed.
	DefaultIdempotencyTTL = 24 * time.Hour
)

// cachedResponse is what gets stored against a completed key.
type cachedResponse struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware handles request idempotency using Redis.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	logger zerolog.Logger
	ttl    time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, logger zerolog.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, logger: logger, ttl: DefaultIdempotencyTTL}
}

// WithTTL overrides how long keys are kept. Non-positive values are ignored.
func (m *IdempotencyMiddleware) WithTTL(ttl time.Duration) *IdempotencyMiddleware {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Wrap wraps an http.Handler with idempotency checking. Only successful
// responses are kept; a failed request releases its key so it can be retried.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		clientKey := r.Header.Get(IdempotencyKeyHeader)
		if clientKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(body)
		key := scopedKey(r, clientKey)

		exists, stored, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("idempotency check failed")
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists {
			var cached cachedResponse
			if string(stored) == PendingMarker || json.Unmarshal(stored, &cached) != nil {
				http.Error(w, "a request with this idempotency key is in progress", http.StatusConflict)
				return
			}
			if cached.RequestHash != hash {
				http.Error(w, "idempotency key was already used with a different request body", http.StatusUnprocessableEntity)
				return
			}
			w.Header().Set("Content-Type", cached.ContentType)
			w.Header().Set(IdempotencyReplayHeader, "true")
			w.WriteHeader(cached.Status)
			w.Write(cached.Body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode < 200 || recorder.statusCode >= 300 {
			if err := m.store.Release(r.Context(), key); err != nil {
				m.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
			}
			return
		}

		payload, _ := json.Marshal(cachedResponse{
			RequestHash: hash,
			Status:      recorder.statusCode,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		})
		if err := m.store.Update(r.Context(), key, payload, m.ttl); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
		}
	})
}

// scopedKey binds a client key to the caller and the target resource, so the
// same key sent by another actor or to another path is a different claim.
func scopedKey(r *http.Request, clientKey string) string {
	actorID := ""
	if actor, ok := domain.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	return strings.Join([]string{actorID, r.Method, r.URL.Path, clientKey}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
