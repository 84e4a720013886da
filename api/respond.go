package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sitaraServer/config"
	"sitaraServer/crypto"
	"sitaraServer/db"
	"sitaraServer/game"

	"go.uber.org/zap"
)

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// sendJSON writes payload with "success": true merged in.
func sendJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["success"] = true

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.S().Warnf("⚠️  Failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message})
}

// errorStatus maps domain errors to HTTP statuses. Unknown errors are 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, db.ErrInvalid),
		errors.Is(err, game.ErrInvalidPanna),
		errors.Is(err, game.ErrInvalidSession),
		errors.Is(err, crypto.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, crypto.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, db.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, db.ErrUserBlocked):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrAlreadyDecided),
		errors.Is(err, db.ErrAlreadyDeclared),
		errors.Is(err, db.ErrOpenNotDeclared),
		errors.Is(err, db.ErrNotDeclared),
		errors.Is(err, db.ErrRevertOrder),
		errors.Is(err, db.ErrDuplicatePhone),
		errors.Is(err, db.ErrDuplicateUTR),
		errors.Is(err, db.ErrDuplicateName),
		errors.Is(err, db.ErrBazaarInUse),
		errors.Is(err, db.ErrSettlementLocked),
		errors.Is(err, db.ErrPendingWithdrawal):
		return http.StatusConflict
	case errors.Is(err, db.ErrMarketClosed),
		errors.Is(err, db.ErrBazaarInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrNotInitialized):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sendDomainError writes err with its mapped status. Internal errors are
// logged and hidden from the client.
func sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		sendError(w, status, http.StatusText(status))
		return
	}
	sendError(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pagination reads ?page= (1-based) and ?limit=.
func pagination(r *http.Request) (limit, offset int) {
	limit = config.DefaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	page := 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 1 {
		page = v
	}
	return limit, (page - 1) * limit
}
