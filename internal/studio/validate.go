package studio

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterValidations adds the studio tags to v:
//
//	classname  the value is one of Classes
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("classname", func(fl validator.FieldLevel) bool {
		return ValidClass(fl.Field().String())
	})
}

// NewValidator returns a validator with the studio tags registered. Field
// names in errors come from json tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// Check validates s and converts the first failure into a ValidationError.
// A `msg` struct tag on the failing field overrides the generic message.
func Check(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(s, fe)}
}

func messageFor(s interface{}, fe validator.FieldError) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if msg := f.Tag.Get("msg"); msg != "" {
				return msg
			}
		}
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "classname":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(Classes, ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
