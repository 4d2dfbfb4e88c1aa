// Package validate checks request shapes with struct tags.
package validate

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	v    *validator.Validate
	once sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
		_ = v.RegisterValidation("username", usernameChars)
	})
	return v
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Registration is the shape of a sign-up request after trimming.
type Registration struct {
	Email    string `json:"email" validate:"required,max=320,email"`
	Username string `json:"username" validate:"omitempty,min=3,max=64,username"`
	Password string `json:"password" validate:"required"`
}

// Login is the shape of a sign-in request.
type Login struct {
	Identifier string `json:"identifier" validate:"required,max=320"`
	Password   string `json:"password" validate:"required"`
}

// Struct validates s and returns one FieldError per failed field, or nil.
func Struct(s any) []FieldError {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Message: "is invalid"}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: e.Field(), Message: message(e)})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "username":
		return "may contain only letters, digits, '.', '_' and '-'"
	default:
		return "is invalid"
	}
}

func usernameChars(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}
