package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violation is a single failed field constraint.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError aggregates every constraint an entity failed.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}

	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, rule, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Rule: rule, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}

	return e
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		if name == "" {
			return fld.Name
		}

		return name
	})

	return v
}

// validateStruct runs the declared field constraints of s and converts any
// failures into a *ValidationError with json field paths.
func validateStruct(s any) *ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return &ValidationError{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out := &ValidationError{}
		out.add("", "invalid", err.Error())

		return out
	}

	out := &ValidationError{Violations: make([]Violation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.add(fieldPath(fe.Namespace()), fe.Tag(), describe(fe))
	}

	return out
}

// fieldPath turns "Bucket.tests.passes" into "bucket.tests.passes".
func fieldPath(namespace string) string {
	if namespace == "" {
		return namespace
	}

	head, rest, found := strings.Cut(namespace, ".")
	head = strings.ToLower(head[:1]) + head[1:]

	if !found {
		return head
	}

	return head + "." + rest
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		if unit := lengthUnit(fe.Kind()); unit != "" {
			return fmt.Sprintf("must have at least %s %s", fe.Param(), unit)
		}

		return "must be >= " + fe.Param()
	case "max", "lte":
		if unit := lengthUnit(fe.Kind()); unit != "" {
			return fmt.Sprintf("must have at most %s %s", fe.Param(), unit)
		}

		return "must be <= " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "len":
		return "must have length " + fe.Param()
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}

		return "failed " + fe.Tag()
	}
}

func lengthUnit(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return "characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return "elements"
	default:
		return ""
	}
}
