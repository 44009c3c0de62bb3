package httpimpl

import (
	"net/http"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/labstack/echo/v4"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	// Status contains the HTTP status code
	Status int32 `json:"status"`

	// Code contains the application error code, see errors.ERR
	Code int32 `json:"code"`

	Err string `json:"error"`
}

// sendError writes err as an errorResponse with the given HTTP status.
func sendError(c echo.Context, status int, code int32, err error) error {
	e := &errorResponse{
		Status: int32(status), //nolint:gosec // http status codes fit in int32
		Code:   code,
		Err:    err.Error(),
	}

	return c.JSON(status, e)
}

// sendErrorFromCode picks the HTTP status from the application error code of err.
func sendErrorFromCode(c echo.Context, err error) error {
	code := errors.CodeOf(err)

	return sendError(c, httpStatusFromCode(code), int32(code), err)
}

func httpStatusFromCode(code errors.ERR) int {
	switch code {
	case errors.ERR_INVALID_ARGUMENT:
		return http.StatusBadRequest
	case errors.ERR_NOT_FOUND, errors.ERR_BLOCK_NOT_FOUND, errors.ERR_TX_NOT_FOUND:
		return http.StatusNotFound
	case errors.ERR_BLOCK_EXISTS, errors.ERR_TX_ALREADY_EXISTS:
		return http.StatusConflict
	case errors.ERR_BLOCK_INVALID,
		errors.ERR_BLOCK_ORPHAN,
		errors.ERR_COINBASE_MALFORMED,
		errors.ERR_TX_INVALID,
		errors.ERR_TX_INVALID_DOUBLE_SPEND,
		errors.ERR_TX_INSUFFICIENT_INPUT,
		errors.ERR_TX_DUPLICATE:
		return http.StatusUnprocessableEntity
	case errors.ERR_STATE_ERROR, errors.ERR_SERVICE_UNAVAILABLE, errors.ERR_SERVICE_NOT_STARTED:
		return http.StatusServiceUnavailable
	case errors.ERR_CONTEXT_CANCELED:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
