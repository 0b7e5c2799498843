package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iho/trustledger/internal/adapter/http/dto"
	"github.com/iho/trustledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes it. Internal errors carry
// no details.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapDomainError(r.Context(), err)
	details := err.Error()
	if status == http.StatusInternalServerError {
		details = ""
	}
	writeError(w, status, http.StatusText(status), details)
}

// mapDomainError maps domain errors to HTTP status codes. An authenticated
// actor that lacks the required role gets 403, a missing identity 401.
func mapDomainError(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		if _, ok := domain.ActorFromContext(ctx); ok {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseHistoryFilter reads limit, cursor, order, from, to and type.
// Repeated or comma separated type values are accepted.
func parseHistoryFilter(r *http.Request) (domain.HistoryFilter, error) {
	q := r.URL.Query()
	filter := domain.HistoryFilter{
		Order:    domain.SortAscending,
		PageSize: parseIntQuery(r, "limit", domain.DefaultPageSize),
	}

	if raw := q.Get("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			return filter, fmt.Errorf("%w: cursor must be a non-negative integer", domain.ErrInvalidRequest)
		}
		filter.Cursor = cursor
	}

	switch order := strings.ToLower(q.Get("order")); order {
	case "", string(domain.SortAscending):
	case string(domain.SortDescending):
		filter.Order = domain.SortDescending
	default:
		return filter, fmt.Errorf("%w: order must be asc or desc", domain.ErrInvalidRequest)
	}

	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("%w: %s must be an RFC 3339 time", domain.ErrInvalidRequest, bound.key)
		}
		*bound.dest = &at
	}

	for _, raw := range q["type"] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			txType, err := domain.ParseTransactionType(name)
			if err != nil {
				return filter, err
			}
			filter.Types = append(filter.Types, txType)
		}
	}

	return filter, nil
}
