package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/transport/http/middleware"
	"github.com/vedran77/campuschat/pkg/validator"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": errorBody{Code: code, Message: message},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": errorBody{Code: "VALIDATION_ERROR", Message: "Validation failed", Fields: errs},
	})
}

// writeServiceError renders a classified domain error with its own status.
// Anything else is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	if derr, ok := domain.AsError(err); ok {
		log.Debug(op+" rejected", zap.String("kind", derr.Kind.String()), zap.String("code", derr.Code))
		writeJSON(w, derr.Kind.HTTPStatus(), map[string]any{
			"error": errorBody{Code: derr.Code, Message: derr.Message, Fields: derr.Fields},
		})
		return
	}

	log.Error(op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": errorBody{Code: "INTERNAL", Message: "Something went wrong", Detail: err.Error()},
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// requireIDs reports every missing id in the body as a field error.
func requireIDs(w http.ResponseWriter, ids map[string]uuid.UUID) bool {
	errs := make(validator.ValidationErrors)
	for field, id := range ids {
		if id == uuid.Nil {
			errs.Add(field, "Required")
		}
	}
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return false
	}
	return true
}

// checkCaller rejects a request whose bearer token names someone other than
// the acting user in the body. Requests without a token pass.
func checkCaller(w http.ResponseWriter, r *http.Request, callerID uuid.UUID) bool {
	if tokenUser, ok := middleware.GetUserID(r.Context()); ok && tokenUser != callerID {
		writeError(w, http.StatusForbidden, "CALLER_MISMATCH", "Token does not match the acting user")
		return false
	}
	return true
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		offset = v
	}
	return limit, offset
}
