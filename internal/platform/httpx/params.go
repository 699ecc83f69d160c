package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// ErrBadID rejects non-numeric path ids.
var ErrBadID = shared.E(shared.KindValidation, "INVALID_ID", "identificador inválido")

// IDParam parses a numeric path parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadID
	}
	return id, nil
}

// QueryInt64 parses an optional numeric query parameter, zero when absent.
func QueryInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

// QueryInt parses an optional numeric query parameter, zero when absent.
func QueryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

// QueryBool parses an optional boolean query parameter, false when absent.
func QueryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// QueryTime parses an optional timestamp query parameter, accepting RFC3339
// or a bare date. Nil when absent or unparseable.
func QueryTime(r *http.Request, name string) *time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// Page extracts the standard pagination query parameters.
func Page(r *http.Request) (page, perPage int) {
	return QueryInt(r, "page"), QueryInt(r, "per_page")
}
