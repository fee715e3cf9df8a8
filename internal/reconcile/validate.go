package reconcile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidEntry = errors.New("invalid entry")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// ValidateEntry checks a manual capture: a YYYY-MM-DD date and no negative
// readings or amounts.
func ValidateEntry(entry interface{}) error {
	err := validatorInstance().Struct(entry)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return invalid(strings.Join(fields, ", "), "")
}

func invalid(field string, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: %s", ErrInvalidEntry, field)
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidEntry, field, reason)
}
