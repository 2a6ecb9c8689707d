package queries

import (
	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/model"
)

// Resource names. Every cache key built by this package starts with one.
const (
	ResourceKPIs            = "kpis"
	ResourceTransactions    = "transactions"
	ResourceInventoryAlerts = "inventory-alerts"
	ResourceMedicines       = "medicines"
	ResourceCustomers       = "customers"
	ResourceSales           = "sales"
	ResourceReportSummary   = "report-summary"
	ResourceSuppliers       = "suppliers"
)

const (
	defaultTransactionLimit = 10
	defaultTransactionPage  = 1
)

// KPIKey is the fixed key of the KPI list. Real-time deltas are merged into
// the entry stored under it.
func KPIKey() cache.Key {
	return cache.NewKey(ResourceKPIs)
}

// TransactionsKey normalizes limit and page the same way the api client does.
func TransactionsKey(limit, page int) cache.Key {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if page <= 0 {
		page = defaultTransactionPage
	}
	return cache.NewKey(ResourceTransactions, limit, page)
}

func InventoryAlertsKey() cache.Key {
	return cache.NewKey(ResourceInventoryAlerts)
}

// MedicinesKey addresses the full list when search is empty.
func MedicinesKey(search string) cache.Key {
	if search == "" {
		return cache.NewKey(ResourceMedicines)
	}
	return cache.NewKey(ResourceMedicines, "search", search)
}

func MedicineKey(id int64) cache.Key {
	return cache.NewKey(ResourceMedicines, "id", id)
}

// CustomersKey addresses the full list when search is empty.
func CustomersKey(search string) cache.Key {
	if search == "" {
		return cache.NewKey(ResourceCustomers)
	}
	return cache.NewKey(ResourceCustomers, "search", search)
}

func CustomerKey(id int64) cache.Key {
	return cache.NewKey(ResourceCustomers, "id", id)
}

func SalesKey(f model.SaleFilter) cache.Key {
	return cache.NewKey(ResourceSales, f.Search, f.Status, f.Limit, f.Page)
}

func SaleKey(id int64) cache.Key {
	return cache.NewKey(ResourceSales, "id", id)
}

func ReportSummaryKey() cache.Key {
	return cache.NewKey(ResourceReportSummary)
}

func SuppliersKey() cache.Key {
	return cache.NewKey(ResourceSuppliers)
}
