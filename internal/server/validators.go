package server

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cafe-orders/internal/models"
)

// Binding tags for the closed enumerations
const (
	TagPaymentMethod = "payment_method"
	TagOrderStatus   = "order_status"
	TagPaymentStatus = "payment_status"
	TagCategory      = "category"
)

var registerOnce sync.Once

// RegisterValidators installs the enum validators on gin's binding engine and
// reports fields by their json names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation(TagPaymentMethod, func(fl validator.FieldLevel) bool {
			return models.PaymentMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation(TagOrderStatus, func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation(TagPaymentStatus, func(fl validator.FieldLevel) bool {
			return models.PaymentStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation(TagCategory, func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
	})
}
