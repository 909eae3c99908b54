package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Asdisarson/ss/pkg/errors"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	return wrap(validate.Struct(s))
}

// Var validates a single value against a tag expression such as "max=256".
// The field name is used in the error message.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &ValidationError{Errors: ve, field: field}
	}
	return err
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &ValidationError{Errors: ve}
	}
	return err
}

// ValidationError wraps validator.ValidationErrors with a readable message.
// It matches apperrors.ErrInvalidInput.
type ValidationError struct {
	Errors validator.ValidationErrors
	field  string
}

func (e *ValidationError) name(fe validator.FieldError) string {
	if e.field != "" {
		return e.field
	}
	return fe.Field()
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", e.name(fe), msgForTag(fe)))
	}
	return strings.Join(msgs, "; ")
}

// Unwrap makes errors.Is(err, apperrors.ErrInvalidInput) hold.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[e.name(fe)] = msgForTag(fe)
	}
	return fields
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "utf8":
		return "must be valid UTF-8"
	case "excludesall":
		return "contains forbidden characters"
	case "printascii":
		return "must contain printable ASCII only"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
