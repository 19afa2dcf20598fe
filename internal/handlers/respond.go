package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/recipe-box/app/internal/errors"
	"github.com/recipe-box/app/internal/logging"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteJSON writes data as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.FromContext(r.Context()).Warn("failed to encode JSON response", zap.Error(err))
	}
}

// WriteError renders err as an ErrorResponse. Errors without a structured
// code are logged and reported as a generic internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var se *apierrors.StructuredError
	if !errors.As(err, &se) {
		logging.FromContext(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		se = apierrors.New(apierrors.ErrCodeInternal, "Internal server error")
	} else if se.Code == apierrors.ErrCodeInternal && se.Cause != nil {
		logging.FromContext(r.Context()).Error(se.Message, zap.Error(se.Cause))
	}

	WriteJSON(w, r, statusFor(se.Code), ErrorResponse{
		Code:      string(se.Code),
		Message:   se.Message,
		Details:   se.Context,
		RequestID: logging.RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// Unauthorized is the auth.ErrorWriter used for protected routes.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	WriteError(w, r, apierrors.New(apierrors.ErrCodeUnauthorized, message))
}

// NotFound answers any path that has no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, apierrors.New(apierrors.ErrCodeNotFound, "Not found."))
}

// MethodNotAllowed answers a known path requested with an unsupported verb.
func MethodNotAllowed(allowed ...string) http.HandlerFunc {
	allow := strings.Join(allowed, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		WriteError(w, r, apierrors.NewWithContext(apierrors.ErrCodeMethodNotAllowed,
			fmt.Sprintf("Method %q not allowed.", r.Method), map[string]any{"allow": allowed}))
	}
}

func statusFor(code apierrors.ErrorCode) int {
	switch code {
	case apierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apierrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apierrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case apierrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case apierrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst and validates it. With
// allowEmpty an absent body decodes as {}, which partial updates treat as a
// no-op.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !errors.Is(err, io.EOF) {
			return apierrors.NewWithContext(apierrors.ErrCodeInvalidRequest, "Malformed JSON body.",
				map[string]any{"error": err.Error()})
		}
		if !allowEmpty {
			return apierrors.New(apierrors.ErrCodeInvalidRequest, "Request body is empty.")
		}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return apierrors.NewWithContext(apierrors.ErrCodeInvalidRequest, "Validation failed.",
		map[string]any{"fields": fields})
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// pathID reads a numeric path wildcard. Anything unparsable cannot name a row
// and is reported as not found.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.New(apierrors.ErrCodeNotFound, "Not found.")
	}
	return id, nil
}

// queryParam returns the single value of a list filter. The raw query is
// parsed strictly: a malformed pair or a repeated key is an error rather
// than a silently dropped filter.
func queryParam(r *http.Request, name string) (string, error) {
	values, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return "", invalidFilter(name, err)
	}
	switch v := values[name]; len(v) {
	case 0:
		return "", nil
	case 1:
		return v[0], nil
	default:
		return "", invalidFilter(name, fmt.Errorf("given %d times", len(v)))
	}
}

func invalidFields(fields map[string]string) error {
	return apierrors.NewWithContext(apierrors.ErrCodeInvalidRequest, "Validation failed.",
		map[string]any{"fields": fields})
}
