package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationError is one field-level problem with a record or request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string { return e.Message }

// RecordValidationResult collects the problems found in one seeded row.
type RecordValidationResult struct {
	RowNumber int               `json:"row_number"`
	RecordID  string            `json:"record_id,omitempty"`
	Valid     bool              `json:"valid"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewRecordResult starts a valid result for row rowNum.
func NewRecordResult(rowNum int, recordID string) *RecordValidationResult {
	return &RecordValidationResult{RowNumber: rowNum, RecordID: recordID, Valid: true}
}

// AddError marks the row invalid.
func (r *RecordValidationResult) AddError(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// Add records err when it is non-nil.
func (r *RecordValidationResult) Add(err *ValidationError) {
	if err != nil {
		r.AddError(err.Field, err.Message)
	}
}

// ToJSON renders the errors for logs; empty when the row is valid.
func (r *RecordValidationResult) ToJSON() string {
	if len(r.Errors) == 0 {
		return ""
	}
	data, _ := json.Marshal(r.Errors)
	return string(data)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// NormalizeEmail trims and lower-cases an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return &ValidationError{Field: field, Message: field + " is required"}
}

func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")),
	}
}

func init() {
	// report request fields by their JSON names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// BindingError turns a gin binding failure into a VALIDATION_ERROR naming
// the first offending field.
func BindingError(err error) *Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fe.Field() + " is invalid"
		if fe.Tag() == "required" {
			msg = fe.Field() + " is required"
		}
		return &Error{Kind: KindInvalidInput, Code: "VALIDATION_ERROR", Message: msg, Err: err}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &Error{Kind: KindInvalidInput, Code: "VALIDATION_ERROR", Message: typeErr.Field + " has the wrong type", Err: err}
	}
	return &Error{Kind: KindInvalidInput, Code: "VALIDATION_ERROR", Message: "Malformed request body", Err: err}
}
