// Пакет валидации данных API композера. Содержит валидаторы полей
// черновиков и ключей нод. Использует библиотеку go-playground/validator.
//
// Основные возможности:
//   - Валидация полей запросов с использованием предопределенных валидаторов.
//   - Проверка формата данных регулярными выражениями.
package aimail

import (
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator"
	"github.com/gofrs/uuid"
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	err := v.RegisterValidation("draftTitle", draftTitleValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("nodeKey", nodeKeyValidator)
	if err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

func draftTitleValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if lenStr == 0 {
		return true
	}
	if !isValidTitleText(value) {
		return false
	}
	return lenStr <= 200
}

func nodeKeyValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := uuid.FromString(value)
	return err == nil
}

// Validate
func isValidTitleText(str string) bool {
	pt := `^[^\x00-\x08\x0B\x0C\x0E-\x1F]+$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}
