package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goliatone/go-medlocus/model"
)

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	return Do[model.LoginResponse](ctx, c, http.MethodPost, "/auth/login", req)
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	return Do[HealthStatus](ctx, c, http.MethodGet, "/health", nil)
}

// KPIs fetches the dashboard indicators.
func (c *Client) KPIs(ctx context.Context) ([]model.KPI, error) {
	return Do[[]model.KPI](ctx, c, http.MethodGet, "/kpis", nil)
}

// Transactions fetches a page of recent transactions. Non-positive values
// fall back to limit 10, page 1.
func (c *Client) Transactions(ctx context.Context, limit, page int) (model.TransactionPage, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	return Do[model.TransactionPage](ctx, c, http.MethodGet, "/transactions?"+q.Encode(), nil)
}

// InventoryAlerts fetches low-stock and expiring items.
func (c *Client) InventoryAlerts(ctx context.Context) ([]model.InventoryAlert, error) {
	return Do[[]model.InventoryAlert](ctx, c, http.MethodGet, "/inventory/alerts", nil)
}

// Medicines lists medicines, or searches them when search is not empty.
func (c *Client) Medicines(ctx context.Context, search string) ([]model.Medicine, error) {
	path := "/medicines"
	if search != "" {
		path = "/medicines/search?q=" + url.QueryEscape(search)
	}
	return Do[[]model.Medicine](ctx, c, http.MethodGet, path, nil)
}

// Medicine fetches one medicine.
func (c *Client) Medicine(ctx context.Context, id int64) (model.Medicine, error) {
	return Do[model.Medicine](ctx, c, http.MethodGet, fmt.Sprintf("/medicines/%d", id), nil)
}

// CreateMedicine adds a medicine.
func (c *Client) CreateMedicine(ctx context.Context, m model.Medicine) (model.Medicine, error) {
	return Do[model.Medicine](ctx, c, http.MethodPost, "/medicines", m)
}

// UpdateMedicine replaces medicine id.
func (c *Client) UpdateMedicine(ctx context.Context, id int64, m model.Medicine) (model.Medicine, error) {
	return Do[model.Medicine](ctx, c, http.MethodPut, fmt.Sprintf("/medicines/%d", id), m)
}

// DeleteMedicine removes medicine id.
func (c *Client) DeleteMedicine(ctx context.Context, id int64) error {
	_, err := Do[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/medicines/%d", id), nil)
	return err
}

// Customers lists customers, filtered by search when not empty.
func (c *Client) Customers(ctx context.Context, search string) ([]model.Customer, error) {
	path := "/customers"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	return Do[[]model.Customer](ctx, c, http.MethodGet, path, nil)
}

// Customer fetches one customer.
func (c *Client) Customer(ctx context.Context, id int64) (model.Customer, error) {
	return Do[model.Customer](ctx, c, http.MethodGet, fmt.Sprintf("/customers/%d", id), nil)
}

// CreateCustomer adds a customer.
func (c *Client) CreateCustomer(ctx context.Context, cu model.Customer) (model.Customer, error) {
	return Do[model.Customer](ctx, c, http.MethodPost, "/customers", cu)
}

// UpdateCustomer replaces customer id.
func (c *Client) UpdateCustomer(ctx context.Context, id int64, cu model.Customer) (model.Customer, error) {
	return Do[model.Customer](ctx, c, http.MethodPut, fmt.Sprintf("/customers/%d", id), cu)
}

// DeleteCustomer removes customer id.
func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := Do[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/customers/%d", id), nil)
	return err
}

// SalesQuery renders the query string for a sales listing; zero fields are
// left out.
func SalesQuery(f model.SaleFilter) string {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Sales lists sales matching f.
func (c *Client) Sales(ctx context.Context, f model.SaleFilter) (model.SalePage, error) {
	return Do[model.SalePage](ctx, c, http.MethodGet, "/sales"+SalesQuery(f), nil)
}

// Sale fetches one sale with its items.
func (c *Client) Sale(ctx context.Context, id int64) (model.Sale, error) {
	return Do[model.Sale](ctx, c, http.MethodGet, fmt.Sprintf("/sales/%d", id), nil)
}

// CreateSale records a sale and its line items.
func (c *Client) CreateSale(ctx context.Context, s model.Sale) (model.Sale, error) {
	return Do[model.Sale](ctx, c, http.MethodPost, "/sales", s)
}

// UpdateSale replaces the header of sale id.
func (c *Client) UpdateSale(ctx context.Context, id int64, s model.Sale) (model.Sale, error) {
	return Do[model.Sale](ctx, c, http.MethodPut, fmt.Sprintf("/sales/%d", id), s)
}

// DeleteSale removes sale id.
func (c *Client) DeleteSale(ctx context.Context, id int64) error {
	_, err := Do[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/sales/%d", id), nil)
	return err
}

// ReportSummary fetches the aggregated report.
func (c *Client) ReportSummary(ctx context.Context) (model.ReportSummary, error) {
	return Do[model.ReportSummary](ctx, c, http.MethodGet, "/reports/summary", nil)
}

// Suppliers lists suppliers for dropdowns.
func (c *Client) Suppliers(ctx context.Context) ([]model.Supplier, error) {
	return Do[[]model.Supplier](ctx, c, http.MethodGet, "/suppliers", nil)
}
