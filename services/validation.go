package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apierrors "photohunter/utils/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// validateStruct runs the struct rules of dto and turns the first failure
// into a 400 APIError.
func validateStruct(dto any) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apierrors.Validation(err.Error())
	}
	fe := verrs[0]
	if fe.Tag() == "password" {
		return apierrors.Validation(ValidatePassword(fmt.Sprint(fe.Value())).Error())
	}
	return apierrors.Validation(fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag()))
}
