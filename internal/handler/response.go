package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/service"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind,omitempty"`
	Violations []string `json:"violations,omitempty"`
	Expected   []string `json:"expected,omitempty"`
	Actual     string   `json:"actual,omitempty"`
	Details    any      `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps an error to its HTTP status. Only unexpected failures
// are logged; domain rejections are the caller's problem.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	status := statusOf(ae.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error(op, zap.Error(err))
	}
	resp := errorResponse{
		Error:      ae.Message,
		Kind:       string(ae.Kind),
		Violations: ae.Violations,
		Expected:   ae.Expected,
		Actual:     ae.Actual,
		Details:    ae.Details,
	}
	if ae.Kind == apperr.KindInternal {
		resp = errorResponse{Error: "internal server error"}
	}
	writeJSON(w, status, resp)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict, apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields,
// and runs the struct's validate tags. All failures are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body", err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid request body", "body must contain a single JSON object")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request", err.Error())
	}
	violations := make([]string, len(verrs))
	for i, fe := range verrs {
		violations[i] = describe(fe)
	}
	return apperr.Validation("invalid request", violations...)
}

func describe(fe validator.FieldError) string {
	// Namespace is "<type>.<json path>"; drop the type.
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "uuid":
		return field + " must be a UUID"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// parsePage reads limit/offset; the service clamps them.
func parsePage(r *http.Request) (service.Page, error) {
	var page service.Page
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v < 0 {
			return page, apperr.Validation("limit must be a non-negative integer")
		}
		page.Limit = int32(v)
	}
	if s := q.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v < 0 {
			return page, apperr.Validation("offset must be a non-negative integer")
		}
		page.Offset = int32(v)
	}
	return page, nil
}

const defaultReportDays = 30

// parseDateRange reads from/to as inclusive YYYY-MM-DD UTC days. Without
// them the range is the last 30 days up to and including today.
func parseDateRange(r *http.Request, now time.Time) (service.DateRange, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	rng := service.DateRange{
		From: today.AddDate(0, 0, -defaultReportDays),
		To:   today.AddDate(0, 0, 1),
	}

	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return rng, apperr.Validation("from must be a YYYY-MM-DD date")
		}
		rng.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return rng, apperr.Validation("to must be a YYYY-MM-DD date")
		}
		rng.To = t.AddDate(0, 0, 1)
	}
	if !rng.From.Before(rng.To) {
		return rng, apperr.Validation("from must not be after to")
	}
	return rng, nil
}
