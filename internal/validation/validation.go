package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrIDEmpty is returned when a record id is empty or whitespace-only after trim.
var ErrIDEmpty = errors.New("id is required")

// ErrIDNotNumeric is returned when a record id contains anything but digits.
var ErrIDNotNumeric = errors.New("id must be an integer")

// ErrIDNotPositive is returned for zero ids; the backend numbers records from 1.
var ErrIDNotPositive = errors.New("id must be positive")

// ErrIDTooLarge is returned when a record id does not fit in an int.
var ErrIDTooLarge = errors.New("id out of range")

// ParseRecordID trims the input and parses it as a positive decimal integer.
// Returns an error suitable for 400 INVALID_ID responses.
func ParseRecordID(input string) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrIDEmpty
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrIDNotNumeric
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrIDTooLarge
	}
	if n == 0 {
		return 0, ErrIDNotPositive
	}
	return n, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldError is one rejected field of a request body.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s failed %s", e.Field, e.Rule)
}

// BodyError lists every rejected field of a request body.
type BodyError struct {
	Fields []FieldError
}

func (e *BodyError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid request body: " + strings.Join(parts, "; ")
}

// ValidateBody checks the `validate` tags of a decoded request body. Field
// names in the returned *BodyError use the JSON names.
func ValidateBody(body interface{}) error {
	err := structValidator().Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate body: %w", err)
	}
	out := &BodyError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
