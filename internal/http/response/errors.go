package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

// StatusFor maps a service error to an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrOutOfRange):
		return http.StatusBadRequest, "slot_out_of_range"
	case errors.Is(err, apperr.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperr.ErrDecode):
		return http.StatusUnprocessableEntity, "snapshot_decode_failed"
	case errors.Is(err, apperr.ErrRebuildIncomplete):
		return http.StatusInternalServerError, "rebuild_incomplete"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func RespondServiceError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	RespondError(c, status, code, err)
}
