package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func newValidator() *validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Amounts are checked for presence by sign only. Size and precision are
	// ledger rules, checked before any arithmetic.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return float64(d.Sign())
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := parseTime(fl.Field().String())
		return err == nil
	})

	return &validate{v: v}
}

type validate struct {
	v *validator.Validate
}

// Struct validates req and converts failures into a ValidationError.
func (v *validate) Struct(req any) error {
	err := v.v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return &service.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("The %s field is required.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", name)
	case "url":
		return fmt.Sprintf("The %s format is invalid.", name)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", name, fe.Param())
	case "uuid":
		return fmt.Sprintf("The %s must be a valid UUID.", name)
	case "date":
		return fmt.Sprintf("The %s is not a valid date.", name)
	}
	return fmt.Sprintf("The %s is invalid.", name)
}

// decode reads a JSON body into req and validates it. An empty body
// decodes as an empty object.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &service.ValidationError{Fields: map[string]string{
				typeErr.Field: fmt.Sprintf("The %s is invalid.", strings.ReplaceAll(typeErr.Field, "_", " ")),
			}}
		}
		return errMalformedBody
	}
	return s.validate.Struct(req)
}

var errMalformedBody = errors.New("malformed JSON body")

// parseTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates, the
// latter in local time. An empty string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}

// optionalTime parses a field that already passed the date validator.
func optionalTime(s string) *time.Time {
	t, err := parseTime(s)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}
