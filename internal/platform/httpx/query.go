package httpx

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// QueryInt64 parses an optional integer query parameter. Missing means zero.
func QueryInt64(q url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", shared.ErrValidation, key)
	}
	return v, nil
}

// QueryInt is QueryInt64 narrowed to int.
func QueryInt(q url.Values, key string) (int, error) {
	v, err := QueryInt64(q, key)
	return int(v), err
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(q url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", shared.ErrValidation, key)
	}
	return v, nil
}

// QueryTime accepts RFC3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func QueryTime(q url.Values, key string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD) or RFC3339 timestamp", shared.ErrValidation, key)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// PathID parses a positive integer route parameter.
func PathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, key, raw)
	}
	return id, nil
}
