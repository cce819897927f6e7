// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RespondError maps domain error kinds to HTTP responses using RFC7807.
// Persistence failures are reported as 503 because the operation was rolled
// back and may be retried.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.Kind(err)
	switch kind {
	case "validation":
		Problem(w, http.StatusBadRequest, kind, "Validation Failed", err.Error())
	case "not_found":
		Problem(w, http.StatusNotFound, kind, "Not Found", err.Error())
	case "conflict":
		Problem(w, http.StatusConflict, kind, "Conflict", err.Error())
	case "persistence":
		Problem(w, http.StatusServiceUnavailable, kind, "Storage Unavailable", "storage failure, nothing was changed; retry the request")
	default:
		Problem(w, http.StatusInternalServerError, kind, "Internal Error", "")
	}
}
