package model

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ValidationError reports caller side validation failures. It is produced
// before any network call is made.
type ValidationError struct {
	Resource string
	Fields   validation.Errors
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Resource, e.Fields.Error())
}

// Unwrap exposes the underlying field errors.
func (e *ValidationError) Unwrap() error {
	return e.Fields
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func newValidationError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		if len(fields) == 0 {
			return nil
		}
		return &ValidationError{Resource: resource, Fields: fields}
	}
	return err
}

// Validate checks the login form.
func (r LoginRequest) Validate() error {
	return newValidationError("login", validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	))
}

// Validate checks the medicine form. Quantity and price may be zero but not
// negative.
func (m Medicine) Validate() error {
	return newValidationError("medicine", validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.Company, validation.Required),
		validation.Field(&m.MfgDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&m.ExpDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&m.Quantity, validation.Min(0)),
		validation.Field(&m.Price, validation.Min(0.0)),
		validation.Field(&m.SupplierID, validation.Required),
	))
}

// Validate checks the customer form.
func (c Customer) Validate() error {
	return newValidationError("customer", validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.Email, is.EmailFormat),
	))
}

// Validate checks a single sale line.
func (i SaleItem) Validate() error {
	return newValidationError("sale item", i.fieldErrors())
}

func (i SaleItem) fieldErrors() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.MedicineID, validation.Required),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&i.UnitPrice, validation.Min(0.0)),
	)
}

// Validate checks the sale header and every line item.
func (s Sale) Validate() error {
	errs := validation.Errors{}
	if err := validation.ValidateStruct(&s,
		validation.Field(&s.SaleDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&s.Status, validation.Required, validation.In(SaleCompleted, SalePending, SaleCancelled)),
		// Skip keeps ozzo from recursing into SaleItem.Validate; lines are
		// checked below so their errors stay keyed by index.
		validation.Field(&s.Items, validation.Required, validation.Skip),
	); err != nil {
		var fields validation.Errors
		if !errors.As(err, &fields) {
			return err
		}
		for k, v := range fields {
			errs[k] = v
		}
	}

	for idx, item := range s.Items {
		if err := item.fieldErrors(); err != nil {
			errs[fmt.Sprintf("items[%d]", idx)] = err
		}
	}

	return newValidationError("sale", errs.Filter())
}
