package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/preferences"
)

// ErrValidation оборачивает ошибки проверки тел запросов.
var ErrValidation = errors.New("validation failed")

// Validator проверяет тела запросов.
type Validator struct {
	v *validator.Validate
}

// NewValidator создает валидатор с правилами palette, theme и locale.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("palette", func(fl validator.FieldLevel) bool {
		return entities.Color(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("theme", func(fl validator.FieldLevel) bool {
		return preferences.Theme(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		return preferences.Locale(fl.Field().String()).Valid()
	})
	return &Validator{v: v}
}

// Validate проверяет структуру и возвращает ошибку с ErrValidation.
func (v *Validator) Validate(req any) error {
	if err := v.v.Struct(req); err != nil {
		return &FieldsError{Fields: Fields(err), cause: err}
	}
	return nil
}

// FieldsError описывает ошибки по полям.
type FieldsError struct {
	Fields map[string]string
	cause  error
}

func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is позволяет проверять errors.Is(err, ErrValidation).
func (e *FieldsError) Is(target error) bool { return target == ErrValidation }

func (e *FieldsError) Unwrap() error { return e.cause }

// Fields переводит ошибки валидатора в сообщения по json-именам полей.
func Fields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"body": err.Error()}
	}

	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		field := jsonName(fe.Field())
		switch fe.Tag() {
		case "palette":
			out[field] = "must be one of: " + strings.Join(entities.PaletteNames(), ", ")
		case "theme":
			out[field] = "must be light or dark"
		case "locale":
			out[field] = "must be en or id"
		case "max":
			out[field] = "value is too long, max: " + fe.Param()
		default:
			out[field] = "invalid value"
		}
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "ColorTag":
		return "color_tag"
	default:
		return strings.ToLower(field)
	}
}
