package mockapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/model"
	"github.com/goliatone/go-medlocus/pkg/testsupport"
)

var fixedNow = time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// newClient returns an API client served in process by a fresh Server.
func newClient(t *testing.T, login bool) *api.Client {
	t.Helper()

	srv := New(WithPrefix("/api"), WithClock(clock))
	var token string
	client := api.New("http://mock.local/api",
		api.WithHTTPClient(&http.Client{Transport: srv.Transport()}),
		api.WithTokenSource(api.TokenFunc(func() string { return token })),
	)
	if login {
		resp, err := client.Login(context.Background(), model.LoginRequest{Email: DemoEmail, Password: DemoPassword})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		token = resp.Token
	}
	return client
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	return apiErr.Status
}

func TestLogin(t *testing.T) {
	client := newClient(t, false)
	ctx := context.Background()

	_, err := client.Login(ctx, model.LoginRequest{Email: DemoEmail, Password: "wrong"})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid credentials" {
		t.Errorf("unexpected error %+v", apiErr)
	}

	resp, err := client.Login(ctx, model.LoginRequest{Email: DemoEmail, Password: DemoPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if diff := cmp.Diff(demoUser, resp.User); diff != "" {
		t.Errorf("unexpected user (-want +got):\n%s", diff)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
}

func TestAuthRequired(t *testing.T) {
	client := newClient(t, false)
	ctx := context.Background()

	if _, err := client.Health(ctx); err != nil {
		t.Fatalf("Health should not need a token: %v", err)
	}
	_, err := client.KPIs(ctx)
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}

	forged := api.New("http://mock.local",
		api.WithHTTPClient(&http.Client{Transport: New(WithClock(clock)).Transport()}),
		api.WithTokenSource(api.TokenFunc(func() string { return "not-a-jwt" })),
	)
	if _, err := forged.KPIs(ctx); !api.IsUnauthorized(err) {
		t.Fatalf("expected 401 for forged token, got %v", err)
	}
}

func TestTokenFromOtherServerRejected(t *testing.T) {
	other := New(WithClock(clock))
	token, err := other.issueToken(demoUser)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	srv := New(WithClock(clock))
	if err := srv.verifyToken(token); err == nil {
		t.Error("expected signature mismatch")
	}
	if err := other.verifyToken(token); err != nil {
		t.Errorf("expected own token to verify: %v", err)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	kpis, err := client.KPIs(ctx)
	if err != nil {
		t.Fatalf("KPIs: %v", err)
	}
	if len(kpis) != 4 || kpis[0].ID != "k1" || kpis[0].Value != 12540.75 {
		t.Errorf("unexpected kpis %+v", kpis)
	}

	page, err := client.Transactions(ctx, 4, 2)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	var ids []string
	for _, tx := range page.Items {
		ids = append(ids, tx.ID)
	}
	if diff := cmp.Diff([]string{"t5", "t6"}, ids); diff != "" || page.Total != 6 {
		t.Errorf("unexpected page total=%d (-want +got):\n%s", page.Total, diff)
	}

	alerts, err := client.InventoryAlerts(ctx)
	if err != nil {
		t.Fatalf("InventoryAlerts: %v", err)
	}
	if len(alerts) != 3 {
		t.Errorf("expected 3 alerts, got %d", len(alerts))
	}
}

func TestGoldenListings(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	suppliers, err := client.Suppliers(ctx)
	if err != nil {
		t.Fatalf("Suppliers: %v", err)
	}
	testsupport.CompareGoldenJSON(t, testsupport.GoldenPath("suppliers.json"), suppliers)

	customers, err := client.Customers(ctx, "")
	if err != nil {
		t.Fatalf("Customers: %v", err)
	}
	testsupport.CompareGoldenJSON(t, testsupport.GoldenPath("customers.json"), customers)
}

func medicineNames(ms []model.Medicine) []string {
	names := []string{}
	for _, m := range ms {
		names = append(names, m.Name)
	}
	return names
}

func TestMedicineSearch(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	tests := []struct {
		search string
		want   []string
	}{
		{search: "cipla", want: []string{"Omeprazole 20mg", "Paracetamol 500mg"}},
		{search: "carewell", want: []string{"Cetirizine 10mg", "Omeprazole 20mg"}},
		{search: "amox", want: []string{"Amoxicillin 250mg"}},
		{search: "nothing-matches", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got, err := client.Medicines(ctx, tt.search)
			if err != nil {
				t.Fatalf("Medicines: %v", err)
			}
			if diff := cmp.Diff(tt.want, medicineNames(got)); diff != "" {
				t.Errorf("unexpected results (-want +got):\n%s", diff)
			}
		})
	}

	m, err := client.Medicine(ctx, 3)
	if err != nil {
		t.Fatalf("Medicine: %v", err)
	}
	if m.SupplierName != "HealthLine Distributors" || m.ContactNo != "9800000002" {
		t.Errorf("expected supplier join, got %+v", m)
	}
}

func TestMedicineCRUD(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	_, err := client.CreateMedicine(ctx, model.Medicine{Name: "Nameless"})
	if got := apiStatus(t, err); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}

	created, err := client.CreateMedicine(ctx, model.Medicine{
		Name: "Azithromycin 500mg", Company: "Cipla", MfgDate: "2025-01-01", ExpDate: "2027-01-01",
		Quantity: 30, Price: 12.5, SupplierID: 1,
	})
	if err != nil {
		t.Fatalf("CreateMedicine: %v", err)
	}
	if created.MedicineID != 7 || created.SupplierName != "MediSupply Co" {
		t.Errorf("unexpected created medicine %+v", created)
	}

	created.Quantity = 25
	updated, err := client.UpdateMedicine(ctx, created.MedicineID, created)
	if err != nil {
		t.Fatalf("UpdateMedicine: %v", err)
	}
	if updated.Quantity != 25 || updated.CreatedAt != created.CreatedAt {
		t.Errorf("unexpected update %+v", updated)
	}

	if err := client.DeleteMedicine(ctx, created.MedicineID); err != nil {
		t.Fatalf("DeleteMedicine: %v", err)
	}
	if _, err := client.Medicine(ctx, created.MedicineID); !api.IsNotFound(err) {
		t.Errorf("expected 404 after delete, got %v", err)
	}
	if err := client.DeleteMedicine(ctx, created.MedicineID); !api.IsNotFound(err) {
		t.Errorf("expected 404 deleting twice, got %v", err)
	}
}

func TestCustomerCRUD(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	found, err := client.Customers(ctx, "9876543213")
	if err != nil {
		t.Fatalf("Customers: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Meera Singh" {
		t.Errorf("unexpected search result %+v", found)
	}

	created, err := client.CreateCustomer(ctx, model.Customer{Name: "Priya Desai", Email: "priya@pharmacy.invalid"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if created.CustomerID != 6 {
		t.Errorf("expected id 6, got %d", created.CustomerID)
	}

	if err := client.DeleteCustomer(ctx, 1); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
	sale, err := client.Sale(ctx, 1)
	if err != nil {
		t.Fatalf("Sale: %v", err)
	}
	if sale.CustomerID != nil || sale.CustomerName != "" {
		t.Errorf("expected sale detached from deleted customer, got %+v", sale)
	}
}

func saleIDs(p model.SalePage) []int64 {
	ids := []int64{}
	for _, s := range p.Items {
		ids = append(ids, s.SaleID)
	}
	return ids
}

func TestSalesListing(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter model.SaleFilter
		want   []int64
	}{
		{name: "newest first", want: []int64{1, 2, 3, 4}},
		{name: "status", filter: model.SaleFilter{Status: model.SalePending}, want: []int64{3}},
		{name: "customer name", filter: model.SaleFilter{Search: "anita"}, want: []int64{2}},
		{name: "sale id", filter: model.SaleFilter{Search: "4"}, want: []int64{4}},
		{name: "paged", filter: model.SaleFilter{Limit: 3, Page: 2}, want: []int64{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := client.Sales(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Sales: %v", err)
			}
			if diff := cmp.Diff(tt.want, saleIDs(page)); diff != "" {
				t.Errorf("unexpected sales (-want +got):\n%s", diff)
			}
		})
	}

	page, err := client.Sales(ctx, model.SaleFilter{})
	if err != nil {
		t.Fatalf("Sales: %v", err)
	}
	first := page.Items[0]
	if first.CustomerName != "Rajesh Sharma" || first.ItemCount != 2 || first.Items != nil {
		t.Errorf("unexpected listing row %+v", first)
	}
}

func TestSaleStockMovements(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	created, err := client.CreateSale(ctx, model.Sale{
		CustomerID: ptr[int64](2),
		SaleDate:   "2025-12-06",
		Status:     model.SaleCompleted,
		Items:      []model.SaleItem{{MedicineID: 3, Quantity: 2, UnitPrice: 8}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if created.SaleID != 5 || created.TotalAmount != 16 || created.CustomerName != "Anita Patel" {
		t.Errorf("unexpected sale %+v", created)
	}

	stock := func() int {
		t.Helper()
		m, err := client.Medicine(ctx, 3)
		if err != nil {
			t.Fatalf("Medicine: %v", err)
		}
		return m.Quantity
	}
	if got := stock(); got != 1 {
		t.Errorf("expected stock 1 after sale, got %d", got)
	}

	detail, err := client.Sale(ctx, created.SaleID)
	if err != nil {
		t.Fatalf("Sale: %v", err)
	}
	want := []model.SaleItem{{
		SaleItemID: 7, SaleID: 5, MedicineID: 3, MedicineName: "Amoxicillin 250mg", Company: "Lupin",
		Quantity: 2, UnitPrice: 8, Subtotal: 16,
	}}
	if diff := cmp.Diff(want, detail.Items); diff != "" {
		t.Errorf("unexpected items (-want +got):\n%s", diff)
	}

	if err := client.DeleteSale(ctx, created.SaleID); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}
	if got := stock(); got != 3 {
		t.Errorf("expected stock restored to 3, got %d", got)
	}

	_, err = client.CreateSale(ctx, model.Sale{SaleDate: "2025-12-06", Status: "lost"})
	if got := apiStatus(t, err); got != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid sale, got %d", got)
	}
}

func TestUpdateSaleKeepsItems(t *testing.T) {
	client := newClient(t, true)
	ctx := context.Background()

	updated, err := client.UpdateSale(ctx, 3, model.Sale{
		CustomerID: ptr[int64](3), SaleDate: "2025-12-04", Status: model.SaleCompleted, TotalAmount: 35,
	})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}
	if updated.Status != model.SaleCompleted || updated.ItemCount != 1 {
		t.Errorf("unexpected update %+v", updated)
	}
	if _, err := client.UpdateSale(ctx, 99, model.Sale{}); !api.IsNotFound(err) {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestReportSummary(t *testing.T) {
	client := newClient(t, true)

	got, err := client.ReportSummary(context.Background())
	if err != nil {
		t.Fatalf("ReportSummary: %v", err)
	}

	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	want := model.ReportSummary{
		TodaySales:     27.4,
		MonthSales:     61.3,
		TotalCustomers: 5,
		TotalMedicines: 6,
		LowStock:       2,
		ExpiringSoon:   2,
		TopMedicines: []model.TopMedicine{
			{Name: "Paracetamol 500mg", Company: "Cipla", TotalSold: 12, Revenue: 30},
			{Name: "Ibuprofen 400mg", Company: "Sun Pharma", TotalSold: 4, Revenue: 19},
			{Name: "Omeprazole 20mg", Company: "Cipla", TotalSold: 3, Revenue: 9.9},
			{Name: "Cetirizine 10mg", Company: "Dr. Reddy's", TotalSold: 2, Revenue: 2.4},
		},
		SalesTrend: []model.TrendPoint{
			{Date: "2025-12-03", Total: 14.9},
			{Date: "2025-12-05", Total: 19},
			{Date: "2025-12-06", Total: 27.4},
		},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestTransport_CanceledContext(t *testing.T) {
	srv := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://mock.local/health", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := srv.Transport().RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type warnRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (l *warnRecorder) Debug(string, ...any) {}
func (l *warnRecorder) Info(string, ...any)  {}
func (l *warnRecorder) Error(string, ...any) {}
func (l *warnRecorder) With(...any) logging.Logger {
	return l
}

func (l *warnRecorder) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestWriteFailuresAreLogged(t *testing.T) {
	logger := &warnRecorder{}
	srv := New(WithClock(clock), WithLogger(logger))

	w := brokenWriter{httptest.NewRecorder()}
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 written, got %d", w.Code)
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || logger.warns[0] != "write response" {
		t.Errorf("expected the failed write logged, got %v", logger.warns)
	}
}
