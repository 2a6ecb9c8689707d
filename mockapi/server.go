// Package mockapi serves the medlocus REST API from in-memory data. It backs
// local development and stands in for the real backend when the health
// probe fails at startup.
package mockapi

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/model"
	"github.com/goliatone/go-medlocus/realtime"
)

// Option configures a Server.
type Option func(*Server)

// WithPrefix mounts the routes below prefix, e.g. "/api".
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = strings.TrimRight(prefix, "/")
	}
}

// WithClock replaces time.Now for seed dates, tokens and reports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventInterval sets how often the notification socket emits events.
func WithEventInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.eventInterval = d
		}
	}
}

// Server is an http.Handler implementing the medlocus API.
type Server struct {
	prefix        string
	now           func() time.Time
	logger        logging.Logger
	eventInterval time.Duration
	secret        []byte

	db      *db
	handler http.Handler
}

var _ http.Handler = (*Server)(nil)

// New creates a Server with freshly seeded data.
func New(opts ...Option) *Server {
	s := &Server{
		now:           time.Now,
		logger:        logging.Nop(),
		eventInterval: realtime.DefaultMockInterval,
		secret:        []byte(uuid.NewString()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.db = newDB(s.now())

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = mux
	if s.prefix != "" {
		s.handler = http.StripPrefix(s.prefix, mux)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	mux.HandleFunc("GET /kpis", s.requireAuth(s.handleKPIs))
	mux.HandleFunc("GET /transactions", s.requireAuth(s.handleTransactions))
	mux.HandleFunc("GET /inventory/alerts", s.requireAuth(s.handleInventoryAlerts))
	mux.HandleFunc("GET /suppliers", s.requireAuth(s.handleSuppliers))
	mux.HandleFunc("GET /reports/summary", s.requireAuth(s.handleReportSummary))

	mux.HandleFunc("GET /medicines", s.requireAuth(s.handleMedicines))
	mux.HandleFunc("GET /medicines/search", s.requireAuth(s.handleMedicineSearch))
	mux.HandleFunc("GET /medicines/{id}", s.requireAuth(s.handleMedicine))
	mux.HandleFunc("POST /medicines", s.requireAuth(s.handleCreateMedicine))
	mux.HandleFunc("PUT /medicines/{id}", s.requireAuth(s.handleUpdateMedicine))
	mux.HandleFunc("DELETE /medicines/{id}", s.requireAuth(s.handleDeleteMedicine))

	mux.HandleFunc("GET /customers", s.requireAuth(s.handleCustomers))
	mux.HandleFunc("GET /customers/{id}", s.requireAuth(s.handleCustomer))
	mux.HandleFunc("POST /customers", s.requireAuth(s.handleCreateCustomer))
	mux.HandleFunc("PUT /customers/{id}", s.requireAuth(s.handleUpdateCustomer))
	mux.HandleFunc("DELETE /customers/{id}", s.requireAuth(s.handleDeleteCustomer))

	mux.HandleFunc("GET /sales", s.requireAuth(s.handleSales))
	mux.HandleFunc("GET /sales/{id}", s.requireAuth(s.handleSale))
	mux.HandleFunc("POST /sales", s.requireAuth(s.handleCreateSale))
	mux.HandleFunc("PUT /sales/{id}", s.requireAuth(s.handleUpdateSale))
	mux.HandleFunc("DELETE /sales/{id}", s.requireAuth(s.handleDeleteSale))

	mux.HandleFunc("GET /ws/notifications", s.requireAuth(s.handleNotifications))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "status", status, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeMessage(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// decodeValid decodes the request body into v and runs its validation.
func decodeValid[T interface{ Validate() error }](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	if err := v.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return v, false
	}
	return v, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthStatus{Status: "healthy", Message: "mock API"})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.KPIs())
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	if limit <= 0 {
		limit = 10
	}
	s.writeJSON(w, http.StatusOK, s.db.Transactions(limit, queryInt(r, "page")))
}

func (s *Server) handleInventoryAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.InventoryAlerts())
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.Suppliers())
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.ReportSummary(s.now()))
}

func (s *Server) handleMedicines(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.Medicines(""))
}

func (s *Server) handleMedicineSearch(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.Medicines(r.URL.Query().Get("q")))
}

func (s *Server) handleMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	m, err := s.db.Medicine(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Medicine not found")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMedicine(w http.ResponseWriter, r *http.Request) {
	m, ok := decodeValid[model.Medicine](s, w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusCreated, s.db.CreateMedicine(m, s.now()))
}

func (s *Server) handleUpdateMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	m, ok := decodeValid[model.Medicine](s, w, r)
	if !ok {
		return
	}
	m, err := s.db.UpdateMedicine(id, m, s.now())
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Medicine not found")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteMedicine(id); err != nil {
		s.writeError(w, http.StatusNotFound, "Medicine not found")
		return
	}
	s.writeMessage(w, "Medicine deleted successfully")
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.Customers(r.URL.Query().Get("search")))
}

func (s *Server) handleCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.db.Customer(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Customer not found")
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeValid[model.Customer](s, w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusCreated, s.db.CreateCustomer(c, s.now()))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, ok := decodeValid[model.Customer](s, w, r)
	if !ok {
		return
	}
	c, err := s.db.UpdateCustomer(id, c, s.now())
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Customer not found")
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteCustomer(id); err != nil {
		s.writeError(w, http.StatusNotFound, "Customer not found")
		return
	}
	s.writeMessage(w, "Customer deleted successfully")
}

func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeJSON(w, http.StatusOK, s.db.Sales(model.SaleFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Limit:  queryInt(r, "limit"),
		Page:   queryInt(r, "page"),
	}))
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	sale, err := s.db.Sale(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Sale not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	sale, ok := decodeValid[model.Sale](s, w, r)
	if !ok {
		return
	}
	if sale.CustomerID != nil {
		if _, err := s.db.Customer(*sale.CustomerID); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("customer %d does not exist", *sale.CustomerID))
			return
		}
	}
	s.writeJSON(w, http.StatusCreated, s.db.CreateSale(sale, s.now()))
}

func (s *Server) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var sale model.Sale
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sale, err := s.db.UpdateSale(id, sale, s.now())
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Sale not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteSale(id); err != nil {
		s.writeError(w, http.StatusNotFound, "Sale not found")
		return
	}
	s.writeMessage(w, "Sale deleted successfully")
}

func (s *Server) newEventSource() *realtime.MockSource {
	src := realtime.NewMockSource(s.eventInterval)
	src.ConnectDelay = 0
	src.Now = s.now
	src.Rand = rand.New(rand.NewSource(s.now().UnixNano()))
	return src
}
