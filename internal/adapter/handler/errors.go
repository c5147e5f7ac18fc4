package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/oms-cart/internal/adapter/storage"
	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/core/service"
)

var errBadRequest = errors.New("bad request")

type errorMapping struct {
	target error
	status int
	code   codes.Code
	name   string
}

var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound, "not_found"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codes.InvalidArgument, "invalid_quantity"},
	{domain.ErrProductMismatch, http.StatusBadRequest, codes.InvalidArgument, "product_mismatch"},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codes.InvalidArgument, "invalid_status"},
	{service.ErrMissingSession, http.StatusBadRequest, codes.InvalidArgument, "missing_session"},
	{errBadRequest, http.StatusBadRequest, codes.InvalidArgument, "invalid_request"},
	{domain.ErrOutOfStock, http.StatusConflict, codes.FailedPrecondition, "out_of_stock"},
	{domain.ErrInsufficientStock, http.StatusConflict, codes.FailedPrecondition, "insufficient_stock"},
	{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition, "invalid_transition"},
	{storage.ErrOptimisticLock, http.StatusConflict, codes.Aborted, "conflict"},
	{service.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists, "duplicate_request"},
	{domain.ErrEmptyCart, http.StatusUnprocessableEntity, codes.FailedPrecondition, "empty_cart"},
	{service.ErrQueueClosed, http.StatusServiceUnavailable, codes.Unavailable, "unavailable"},
}

func lookupError(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Code: code, Details: details})
}
