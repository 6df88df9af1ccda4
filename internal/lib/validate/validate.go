package validate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Struct validates a struct by its `validate` tags and returns a single
// human-readable error for the first failing field.
func Struct(s interface{}) error {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})

	err := instance.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		if f.Tag() == "required" {
			return fmt.Errorf("field %s is required", f.Field())
		}
		return fmt.Errorf("field %s failed on %s", f.Field(), f.Tag())
	}

	return err
}
