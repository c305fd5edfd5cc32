// Package validate checks usecase inputs and reports failures as
// VALIDATION errors.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct runs the `validate` tags of s.
func Struct(op string, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Invalid(op, "invalid input: %v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperror.Invalid(op, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s elements", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// Quantity requires q > 0 with at most three decimals.
func Quantity(op, field string, q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperror.Invalid(op, "%s must be greater than zero", field)
	}
	if !q.Equal(q.Truncate(3)) {
		return apperror.Invalid(op, "%s accepts at most 3 decimal places", field)
	}
	return nil
}

// Price requires p > 0 with at most two decimals.
func Price(op, field string, p decimal.Decimal) error {
	if !p.IsPositive() {
		return apperror.Invalid(op, "%s must be greater than zero", field)
	}
	return cents(op, field, p)
}

// NonNegativeMoney requires m >= 0 with at most two decimals.
func NonNegativeMoney(op, field string, m decimal.Decimal) error {
	if m.IsNegative() {
		return apperror.Invalid(op, "%s cannot be negative", field)
	}
	return cents(op, field, m)
}

// Percent requires 0 <= p <= 100 with at most two decimals.
func Percent(op, field string, p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return apperror.Invalid(op, "%s must be between 0 and 100", field)
	}
	return cents(op, field, p)
}

func cents(op, field string, m decimal.Decimal) error {
	if !m.Equal(m.Truncate(2)) {
		return apperror.Invalid(op, "%s accepts at most 2 decimal places", field)
	}
	return nil
}
