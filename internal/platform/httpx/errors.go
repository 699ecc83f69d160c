package httpx

import (
	"net/http"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// RespondError maps kind-tagged domain errors to HTTP responses using RFC7807.
// Internal errors never leak their cause to the caller.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	detail := shared.UserSafeMessage(err)
	pd := ProblemDetail{
		Detail: detail,
		Code:   shared.CodeOf(err),
		Meta:   shared.MetaOf(err),
	}
	switch kind {
	case shared.KindValidation:
		pd.Title, pd.Status = "Validation Failed", http.StatusBadRequest
	case shared.KindConflict:
		pd.Title, pd.Status = "Conflict", http.StatusConflict
	case shared.KindBusiness:
		pd.Title, pd.Status = "Business Rule Violated", http.StatusUnprocessableEntity
	case shared.KindNotFound:
		pd.Title, pd.Status = "Not Found", http.StatusNotFound
	case shared.KindPermission:
		pd.Title, pd.Status = "Forbidden", http.StatusForbidden
	case shared.KindTransient:
		pd.Title, pd.Status = "Temporarily Unavailable", http.StatusServiceUnavailable
	default:
		pd.Title, pd.Status, pd.Code, pd.Meta = "Internal Error", http.StatusInternalServerError, "", nil
	}
	JSON(w, pd.Status, pd)
}

// RespondInvalid maps request payload failures (malformed JSON, failed
// validation tags) to a 400 problem.
func RespondInvalid(w http.ResponseWriter, err error) {
	JSON(w, http.StatusBadRequest, ProblemDetail{
		Title:  "Validation Failed",
		Status: http.StatusBadRequest,
		Code:   "INVALID_PAYLOAD",
		Detail: err.Error(),
	})
}
