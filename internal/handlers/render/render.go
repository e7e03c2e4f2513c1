package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/studentauth/internal/apperrors"
)

// Error titles, one per error kind
const (
	TitleValidation   = "Validation Failed"
	TitleConflict     = "Conflict"
	TitleUnauthorized = "Unauthorized Access"
	TitleForbidden    = "Forbidden Access"
	TitleNotFound     = "Not Found"
	TitleServer       = "Server Error"
)

// Message for errors nobody classified: their text may leak internals
const internalErrorMessage = "Internal server error"

type Struct any

// Body of every error response
// StackTrace is null unless the server runs outside production
type ErrorResponse struct {
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	StackTrace *string           `json:"stackTrace"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	JSONWithStatus(w, data, http.StatusOK)
}

// Render classified error with status and title matching its kind
// verbose adds the error chain as stackTrace
func Error(w http.ResponseWriter, err error, verbose bool) {
	kind := apperrors.KindOf(err)
	status, title := statusAndTitle(kind)

	message := apperrors.MessageOf(err)
	if message == "" {
		message = internalErrorMessage
	}

	response := ErrorResponse{
		Title:   title,
		Message: message,
	}
	if verbose {
		trace := StackTrace(err)
		response.StackTrace = &trace
	}

	JSONWithStatus(w, response, status)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Title: TitleValidation,
	}

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Title:   TitleValidation,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "email":
			message = "Must be a valid email address"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		default:
			message = "Invalid value"
		}

		response.Fields[fieldError.Field()] = message
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	return bindAndValidate[T](w, r, false)
}

// BindOptional is BindAndValidate that treats empty request body as zero T
func BindOptional[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	return bindAndValidate[T](w, r, true)
}

func bindAndValidate[T Struct](w http.ResponseWriter, r *http.Request, allowEmpty bool) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	switch {
	case allowEmpty && errors.Is(err, io.EOF):
	case err != nil:
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// StackTrace renders error chain, outermost error first, one per line
func StackTrace(err error) string {
	lines := make([]string, 0, 4)
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// JSONWithStatus sends data as json and enforces status code
func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func statusAndTitle(kind apperrors.Kind) (int, string) {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest, TitleValidation
	case apperrors.KindConflict:
		return http.StatusConflict, TitleConflict
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized, TitleUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden, TitleForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound, TitleNotFound
	default:
		return http.StatusInternalServerError, TitleServer
	}
}
