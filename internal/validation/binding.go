package validation

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/umeyka/umeyka-backend/internal/domain/valueobject"
	"github.com/umeyka/umeyka-backend/internal/models"
)

// RegisterBindings регистрирует собственные теги в валидаторе gin.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validation: unexpected validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Register добавляет теги skill_category и deal_role.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("skill_category", func(fl validator.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("deal_role", func(fl validator.FieldLevel) bool {
		_, err := valueobject.NewDealRole(fl.Field().String())
		return err == nil
	})
}

// Message превращает ошибку биндинга в читаемый текст для клиента.
func Message(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "некорректное тело запроса"
	}

	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("поле %s обязательно", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("поле %s должно быть не меньше %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("поле %s должно быть не больше %s", fe.Field(), fe.Param())
	case "skill_category":
		return fmt.Sprintf("неизвестная категория %q", fe.Value())
	case "deal_role":
		return "роль должна быть client или master"
	case "uuid", "uuid4":
		return fmt.Sprintf("поле %s должно быть UUID", fe.Field())
	default:
		return fmt.Sprintf("поле %s не прошло проверку %s", fe.Field(), fe.Tag())
	}
}
