package queries

import (
	"context"
	"time"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/model"
)

// API is the subset of the backend client the bindings call.
type API interface {
	KPIs(ctx context.Context) ([]model.KPI, error)
	Transactions(ctx context.Context, limit, page int) (model.TransactionPage, error)
	InventoryAlerts(ctx context.Context) ([]model.InventoryAlert, error)
	Medicines(ctx context.Context, search string) ([]model.Medicine, error)
	Medicine(ctx context.Context, id int64) (model.Medicine, error)
	CreateMedicine(ctx context.Context, m model.Medicine) (model.Medicine, error)
	UpdateMedicine(ctx context.Context, id int64, m model.Medicine) (model.Medicine, error)
	DeleteMedicine(ctx context.Context, id int64) error
	Customers(ctx context.Context, search string) ([]model.Customer, error)
	Customer(ctx context.Context, id int64) (model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, c model.Customer) (model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	Sales(ctx context.Context, f model.SaleFilter) (model.SalePage, error)
	Sale(ctx context.Context, id int64) (model.Sale, error)
	CreateSale(ctx context.Context, s model.Sale) (model.Sale, error)
	UpdateSale(ctx context.Context, id int64, s model.Sale) (model.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
	ReportSummary(ctx context.Context) (model.ReportSummary, error)
	Suppliers(ctx context.Context) ([]model.Supplier, error)
}

// Interface assertion to ensure the HTTP client satisfies API
var _ API = (*api.Client)(nil)

// Bindings ties every backend read to a cache key and every write to the
// invalidation table.
type Bindings struct {
	base   API
	cache  *cache.Cache
	logger logging.Logger
	retry  retryPolicy
}

// Option configures Bindings.
type Option func(*Bindings)

// WithReadRetry retries reads that fail with a network error up to attempts
// times in total, sleeping backoff, then twice backoff, between tries.
// API errors are never retried. The default is a single attempt.
func WithReadRetry(attempts int, backoff time.Duration) Option {
	return func(b *Bindings) {
		if attempts < 1 {
			attempts = 1
		}
		b.retry = retryPolicy{attempts: attempts, backoff: backoff}
	}
}

// WithLogger sets the bindings logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bindings) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates Bindings over base and c.
func New(base API, c *cache.Cache, opts ...Option) *Bindings {
	b := &Bindings{
		base:   base,
		cache:  c,
		logger: logging.Nop(),
		retry:  retryPolicy{attempts: 1},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cache returns the underlying cache.
func (b *Bindings) Cache() *cache.Cache {
	return b.cache
}

// Watch subscribes cb to changes of key. The returned handle is the only way
// to stop deliveries.
func (b *Bindings) Watch(key cache.Key, cb cache.Callback) *cache.Subscription {
	return b.cache.Subscribe(key, cb)
}

func read[T any](ctx context.Context, b *Bindings, key cache.Key, fetch cache.FetchFn[T]) (T, error) {
	return cache.GetOrFetch(ctx, b.cache, key, func(ctx context.Context) (T, error) {
		return withRetry(ctx, b.retry, b.logger, key, fetch)
	})
}

// KPIs returns the dashboard indicators.
func (b *Bindings) KPIs(ctx context.Context) ([]model.KPI, error) {
	return read(ctx, b, KPIKey(), b.base.KPIs)
}

// Transactions returns a page of recent transactions.
func (b *Bindings) Transactions(ctx context.Context, limit, page int) (model.TransactionPage, error) {
	return read(ctx, b, TransactionsKey(limit, page), func(ctx context.Context) (model.TransactionPage, error) {
		return b.base.Transactions(ctx, limit, page)
	})
}

// InventoryAlerts returns low-stock and expiring items.
func (b *Bindings) InventoryAlerts(ctx context.Context) ([]model.InventoryAlert, error) {
	return read(ctx, b, InventoryAlertsKey(), b.base.InventoryAlerts)
}

// Medicines lists or searches medicines.
func (b *Bindings) Medicines(ctx context.Context, search string) ([]model.Medicine, error) {
	return read(ctx, b, MedicinesKey(search), func(ctx context.Context) ([]model.Medicine, error) {
		return b.base.Medicines(ctx, search)
	})
}

// Medicine returns one medicine.
func (b *Bindings) Medicine(ctx context.Context, id int64) (model.Medicine, error) {
	return read(ctx, b, MedicineKey(id), func(ctx context.Context) (model.Medicine, error) {
		return b.base.Medicine(ctx, id)
	})
}

// Customers lists or searches customers.
func (b *Bindings) Customers(ctx context.Context, search string) ([]model.Customer, error) {
	return read(ctx, b, CustomersKey(search), func(ctx context.Context) ([]model.Customer, error) {
		return b.base.Customers(ctx, search)
	})
}

// Customer returns one customer.
func (b *Bindings) Customer(ctx context.Context, id int64) (model.Customer, error) {
	return read(ctx, b, CustomerKey(id), func(ctx context.Context) (model.Customer, error) {
		return b.base.Customer(ctx, id)
	})
}

// Sales returns the sales matching f.
func (b *Bindings) Sales(ctx context.Context, f model.SaleFilter) (model.SalePage, error) {
	return read(ctx, b, SalesKey(f), func(ctx context.Context) (model.SalePage, error) {
		return b.base.Sales(ctx, f)
	})
}

// Sale returns one sale with its items.
func (b *Bindings) Sale(ctx context.Context, id int64) (model.Sale, error) {
	return read(ctx, b, SaleKey(id), func(ctx context.Context) (model.Sale, error) {
		return b.base.Sale(ctx, id)
	})
}

// ReportSummary returns the aggregated report.
func (b *Bindings) ReportSummary(ctx context.Context) (model.ReportSummary, error) {
	return read(ctx, b, ReportSummaryKey(), b.base.ReportSummary)
}

// Suppliers returns the supplier list.
func (b *Bindings) Suppliers(ctx context.Context) ([]model.Supplier, error) {
	return read(ctx, b, SuppliersKey(), b.base.Suppliers)
}
