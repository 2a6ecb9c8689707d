package queries

import (
	"context"

	"github.com/goliatone/go-medlocus/model"
)

// CreateMedicine adds a medicine and invalidates dependent results.
func (b *Bindings) CreateMedicine(ctx context.Context, m model.Medicine) (model.Medicine, error) {
	result, err := b.base.CreateMedicine(ctx, m)
	if err == nil {
		b.invalidateAfter(ctx, ResourceMedicines)
	}
	return result, err
}

// UpdateMedicine replaces medicine id and invalidates dependent results.
func (b *Bindings) UpdateMedicine(ctx context.Context, id int64, m model.Medicine) (model.Medicine, error) {
	result, err := b.base.UpdateMedicine(ctx, id, m)
	if err == nil {
		b.invalidateAfter(ctx, ResourceMedicines)
	}
	return result, err
}

// DeleteMedicine removes medicine id and invalidates dependent results.
func (b *Bindings) DeleteMedicine(ctx context.Context, id int64) error {
	err := b.base.DeleteMedicine(ctx, id)
	if err == nil {
		b.invalidateAfter(ctx, ResourceMedicines)
	}
	return err
}

// CreateCustomer adds a customer and invalidates dependent results.
func (b *Bindings) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	result, err := b.base.CreateCustomer(ctx, c)
	if err == nil {
		b.invalidateAfter(ctx, ResourceCustomers)
	}
	return result, err
}

// UpdateCustomer replaces customer id and invalidates dependent results.
func (b *Bindings) UpdateCustomer(ctx context.Context, id int64, c model.Customer) (model.Customer, error) {
	result, err := b.base.UpdateCustomer(ctx, id, c)
	if err == nil {
		b.invalidateAfter(ctx, ResourceCustomers)
	}
	return result, err
}

// DeleteCustomer removes customer id and invalidates dependent results.
func (b *Bindings) DeleteCustomer(ctx context.Context, id int64) error {
	err := b.base.DeleteCustomer(ctx, id)
	if err == nil {
		b.invalidateAfter(ctx, ResourceCustomers)
	}
	return err
}

// CreateSale records a sale. Stock, alerts, transactions and KPIs all move
// with it, so all of them are invalidated.
func (b *Bindings) CreateSale(ctx context.Context, s model.Sale) (model.Sale, error) {
	result, err := b.base.CreateSale(ctx, s)
	if err == nil {
		b.invalidateAfter(ctx, ResourceSales)
	}
	return result, err
}

// UpdateSale replaces the header of sale id and invalidates dependent results.
func (b *Bindings) UpdateSale(ctx context.Context, id int64, s model.Sale) (model.Sale, error) {
	result, err := b.base.UpdateSale(ctx, id, s)
	if err == nil {
		b.invalidateAfter(ctx, ResourceSales)
	}
	return result, err
}

// DeleteSale removes sale id and invalidates dependent results.
func (b *Bindings) DeleteSale(ctx context.Context, id int64) error {
	err := b.base.DeleteSale(ctx, id)
	if err == nil {
		b.invalidateAfter(ctx, ResourceSales)
	}
	return err
}
