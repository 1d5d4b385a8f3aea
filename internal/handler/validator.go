package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// RegisterValidators 在 gin 的校验器上注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	// 去掉 HTML 后是合法用户名即可，清洗由服务层完成
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		_, err := sanitize.Username(fl.Field().String())
		return err == nil
	})
}

// bindError 把绑定错误转换为可展示的校验错误
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return types.Validation("%s is required", fe.Field())
		case "username":
			_, uerr := sanitize.Username(fmt.Sprint(fe.Value()))
			if uerr != nil {
				return uerr
			}
		}
		return types.Validation("Invalid %s", fe.Field())
	}
	return types.Validation("Invalid request body")
}
