// Package validation содержит функции валидации входных данных.
package validation

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength задаёт минимальную длину пароля в символах.
const MinPasswordLength = 6

var (
	validate     = validator.New()
	passwordRule = "required,min=" + strconv.Itoa(MinPasswordLength)
)

// IsValidEmail проверяет, что строка является одиночным адресом вида user@domain без отображаемого имени.
func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return validate.Var(password, passwordRule) == nil
}
