// Package validate dispatches to a value's own Validate method and records
// how often validation runs and fails.
package validate

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/amp-labs/osc/errors"
	"github.com/amp-labs/osc/logger"
)

// HasValidate is implemented by types that can check their own invariants.
type HasValidate interface {
	Validate() error
}

// HasValidateWithContext is the context-aware variant of HasValidate.
type HasValidateWithContext interface {
	Validate(ctx context.Context) error
}

// Validate runs value's Validate method. Nil values and types without a
// Validate method pass. Any failure, including a panic inside Validate, is
// returned wrapped in errors.ErrValidation.
func Validate(ctx context.Context, value any) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	canValidate := true
	typeName := fmt.Sprintf("%T", value)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s.Validate: %v", errors.ErrValidation, typeName, r)
		}

		hasError := strconv.FormatBool(err != nil)
		validationsTotal.WithLabelValues(strconv.FormatBool(canValidate), hasError).Inc()
		validationTime.WithLabelValues(typeName, hasError).
			Observe(float64(time.Since(start).Milliseconds()))
	}()

	if isNilish(value) {
		return nil
	}

	var inner error

	switch v := value.(type) {
	case HasValidate:
		inner = v.Validate()
	case HasValidateWithContext:
		inner = v.Validate(ctx)
	default:
		canValidate = false

		logger.Get(ctx).Warn("Validate called on unsupported type", "type", typeName)

		return nil
	}

	if inner != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, inner)
	}

	return nil
}

func isNilish(value any) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
