package mockapi

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-medlocus/model"
)

var errNotFound = errors.New("not found")

const (
	lowStockThreshold = 5
	expiryWindowDays  = 30
	trendDays         = 7
	topMedicinesLimit = 10
)

// db is the in-memory backing data of a Server.
type db struct {
	mu sync.RWMutex

	kpis         []model.KPI
	transactions []model.Transaction
	alerts       []model.InventoryAlert
	suppliers    []model.Supplier
	medicines    []model.Medicine
	customers    []model.Customer
	sales        []model.Sale

	nextMedicine int64
	nextCustomer int64
	nextSale     int64
	nextSaleItem int64
}

func newDB(now time.Time) *db {
	d := &db{
		kpis:         seedKPIs(),
		transactions: seedTransactions(),
		alerts:       seedInventoryAlerts(),
		suppliers:    seedSuppliers(),
		medicines:    seedMedicines(now),
		customers:    seedCustomers(),
		sales:        seedSales(now),
	}
	for _, m := range d.medicines {
		d.nextMedicine = max(d.nextMedicine, m.MedicineID)
	}
	for _, c := range d.customers {
		d.nextCustomer = max(d.nextCustomer, c.CustomerID)
	}
	for _, s := range d.sales {
		d.nextSale = max(d.nextSale, s.SaleID)
		for _, it := range s.Items {
			d.nextSaleItem = max(d.nextSaleItem, it.SaleItemID)
		}
	}
	return d
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (d *db) KPIs() []model.KPI {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.KPI(nil), d.kpis...)
}

func (d *db) Transactions(limit, page int) model.TransactionPage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return model.TransactionPage{
		Items: paginate(d.transactions, limit, page),
		Total: len(d.transactions),
	}
}

func (d *db) InventoryAlerts() []model.InventoryAlert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.InventoryAlert(nil), d.alerts...)
}

func (d *db) Suppliers() []model.Supplier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Supplier(nil), d.suppliers...)
}

func (d *db) supplierName(id int64) (string, string) {
	for _, s := range d.suppliers {
		if s.SupplierID == id {
			return s.SupplierName, s.ContactNo
		}
	}
	return "", ""
}

func (d *db) withSupplier(m model.Medicine) model.Medicine {
	m.SupplierName, m.ContactNo = d.supplierName(m.SupplierID)
	return m
}

// Medicines lists medicines ordered by name. A non-empty search matches the
// name, company or supplier name.
func (d *db) Medicines(search string) []model.Medicine {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []model.Medicine{}
	for _, m := range d.medicines {
		m = d.withSupplier(m)
		if search != "" && !containsFold(m.Name, search) && !containsFold(m.Company, search) && !containsFold(m.SupplierName, search) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *db) medicineIndex(id int64) int {
	for i, m := range d.medicines {
		if m.MedicineID == id {
			return i
		}
	}
	return -1
}

func (d *db) Medicine(id int64) (model.Medicine, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.medicineIndex(id)
	if i < 0 {
		return model.Medicine{}, errNotFound
	}
	return d.withSupplier(d.medicines[i]), nil
}

func (d *db) CreateMedicine(m model.Medicine, now time.Time) model.Medicine {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextMedicine++
	m.MedicineID = d.nextMedicine
	m.CreatedAt = now.UTC().Format(time.RFC3339)
	m.UpdatedAt = m.CreatedAt
	m.SupplierName, m.ContactNo = "", ""
	d.medicines = append(d.medicines, m)
	return d.withSupplier(m)
}

func (d *db) UpdateMedicine(id int64, m model.Medicine, now time.Time) (model.Medicine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.medicineIndex(id)
	if i < 0 {
		return model.Medicine{}, errNotFound
	}
	m.MedicineID = id
	m.CreatedAt = d.medicines[i].CreatedAt
	m.UpdatedAt = now.UTC().Format(time.RFC3339)
	m.SupplierName, m.ContactNo = "", ""
	d.medicines[i] = m
	return d.withSupplier(m), nil
}

func (d *db) DeleteMedicine(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.medicineIndex(id)
	if i < 0 {
		return errNotFound
	}
	d.medicines = append(d.medicines[:i], d.medicines[i+1:]...)
	return nil
}

// Customers lists customers ordered by name. A non-empty search matches the
// name, email or phone.
func (d *db) Customers(search string) []model.Customer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []model.Customer{}
	for _, c := range d.customers {
		if search != "" && !containsFold(c.Name, search) && !containsFold(c.Email, search) && !containsFold(c.Phone, search) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *db) customerIndex(id int64) int {
	for i, c := range d.customers {
		if c.CustomerID == id {
			return i
		}
	}
	return -1
}

func (d *db) Customer(id int64) (model.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.customerIndex(id)
	if i < 0 {
		return model.Customer{}, errNotFound
	}
	return d.customers[i], nil
}

func (d *db) CreateCustomer(c model.Customer, now time.Time) model.Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextCustomer++
	c.CustomerID = d.nextCustomer
	c.CreatedAt = now.UTC().Format(time.RFC3339)
	c.UpdatedAt = c.CreatedAt
	d.customers = append(d.customers, c)
	return c
}

func (d *db) UpdateCustomer(id int64, c model.Customer, now time.Time) (model.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.customerIndex(id)
	if i < 0 {
		return model.Customer{}, errNotFound
	}
	c.CustomerID = id
	c.CreatedAt = d.customers[i].CreatedAt
	c.UpdatedAt = now.UTC().Format(time.RFC3339)
	d.customers[i] = c
	return c, nil
}

// DeleteCustomer removes the customer and detaches their sales.
func (d *db) DeleteCustomer(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.customerIndex(id)
	if i < 0 {
		return errNotFound
	}
	d.customers = append(d.customers[:i], d.customers[i+1:]...)
	for j := range d.sales {
		if d.sales[j].CustomerID != nil && *d.sales[j].CustomerID == id {
			d.sales[j].CustomerID = nil
		}
	}
	return nil
}

// header returns the listing form of s: customer joined, items dropped.
func (d *db) header(s model.Sale) model.Sale {
	s.ItemCount = len(s.Items)
	s.Items = nil
	s.CustomerName, s.CustomerEmail = "", ""
	if s.CustomerID != nil {
		if i := d.customerIndex(*s.CustomerID); i >= 0 {
			s.CustomerName = d.customers[i].Name
			s.CustomerEmail = d.customers[i].Email
		}
	}
	return s
}

// Sales lists sales newest first. Search matches the customer name or an
// exact sale id. Limit defaults to 50 and page to 1.
func (d *db) Sales(f model.SaleFilter) model.SalePage {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matched := []model.Sale{}
	for _, s := range d.sales {
		h := d.header(s)
		if f.Status != "" && h.Status != f.Status {
			continue
		}
		if f.Search != "" {
			id, err := strconv.ParseInt(f.Search, 10, 64)
			if !containsFold(h.CustomerName, f.Search) && (err != nil || id != h.SaleID) {
				continue
			}
		}
		matched = append(matched, h)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SaleDate != matched[j].SaleDate {
			return matched[i].SaleDate > matched[j].SaleDate
		}
		return matched[i].SaleID > matched[j].SaleID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return model.SalePage{Items: paginate(matched, limit, f.Page), Total: len(matched)}
}

func (d *db) saleIndex(id int64) int {
	for i, s := range d.sales {
		if s.SaleID == id {
			return i
		}
	}
	return -1
}

// Sale returns the sale with its items and their medicine names.
func (d *db) Sale(id int64) (model.Sale, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.saleIndex(id)
	if i < 0 {
		return model.Sale{}, errNotFound
	}
	s := d.sales[i]
	out := d.header(s)
	out.Items = make([]model.SaleItem, len(s.Items))
	for j, it := range s.Items {
		if k := d.medicineIndex(it.MedicineID); k >= 0 {
			it.MedicineName = d.medicines[k].Name
			it.Company = d.medicines[k].Company
		}
		out.Items[j] = it
	}
	return out, nil
}

// CreateSale prices s from its items and takes the sold quantities out of
// stock. Stock is only reduced when enough is available.
func (d *db) CreateSale(s model.Sale, now time.Time) model.Sale {
	d.mu.Lock()
	defer d.mu.Unlock()

	s = model.PrepareSale(s)
	d.nextSale++
	s.SaleID = d.nextSale
	s.CreatedAt = now.UTC().Format(time.RFC3339)
	s.UpdatedAt = s.CreatedAt
	for i := range s.Items {
		d.nextSaleItem++
		s.Items[i].SaleItemID = d.nextSaleItem
		s.Items[i].SaleID = s.SaleID
		if k := d.medicineIndex(s.Items[i].MedicineID); k >= 0 && d.medicines[k].Quantity >= s.Items[i].Quantity {
			d.medicines[k].Quantity -= s.Items[i].Quantity
		}
	}
	d.sales = append(d.sales, s)
	return d.header(s)
}

// UpdateSale replaces the header fields of sale id; items are kept.
func (d *db) UpdateSale(id int64, s model.Sale, now time.Time) (model.Sale, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.saleIndex(id)
	if i < 0 {
		return model.Sale{}, errNotFound
	}
	cur := d.sales[i]
	cur.CustomerID = s.CustomerID
	cur.SaleDate = s.SaleDate
	cur.TotalAmount = s.TotalAmount
	cur.Status = s.Status
	cur.Notes = s.Notes
	cur.UpdatedAt = now.UTC().Format(time.RFC3339)
	d.sales[i] = cur
	return d.header(cur), nil
}

// DeleteSale removes the sale and puts its quantities back in stock.
func (d *db) DeleteSale(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.saleIndex(id)
	if i < 0 {
		return errNotFound
	}
	for _, it := range d.sales[i].Items {
		if k := d.medicineIndex(it.MedicineID); k >= 0 {
			d.medicines[k].Quantity += it.Quantity
		}
	}
	d.sales = append(d.sales[:i], d.sales[i+1:]...)
	return nil
}

// ReportSummary aggregates completed sales and stock levels as of now.
func (d *db) ReportSummary(now time.Time) model.ReportSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	today := now.Format(model.DateLayout)
	month := now.Format("2006-01")
	trendStart := now.AddDate(0, 0, -trendDays).Format(model.DateLayout)
	topStart := now.AddDate(0, 0, -expiryWindowDays).Format(model.DateLayout)
	expiryEnd := now.AddDate(0, 0, expiryWindowDays).Format(model.DateLayout)

	r := model.ReportSummary{
		TotalCustomers: len(d.customers),
		TotalMedicines: len(d.medicines),
		TopMedicines:   []model.TopMedicine{},
		SalesTrend:     []model.TrendPoint{},
	}

	for _, m := range d.medicines {
		if m.Quantity < lowStockThreshold {
			r.LowStock++
		}
		if m.ExpDate >= today && m.ExpDate <= expiryEnd {
			r.ExpiringSoon++
		}
	}

	trend := map[string]float64{}
	top := map[int64]*model.TopMedicine{}
	for _, s := range d.sales {
		if s.Status != model.SaleCompleted {
			continue
		}
		if s.SaleDate == today {
			r.TodaySales += s.TotalAmount
		}
		if strings.HasPrefix(s.SaleDate, month) {
			r.MonthSales += s.TotalAmount
		}
		if s.SaleDate >= trendStart {
			trend[s.SaleDate] += s.TotalAmount
		}
		if s.SaleDate < topStart {
			continue
		}
		for _, it := range s.Items {
			t, ok := top[it.MedicineID]
			if !ok {
				t = &model.TopMedicine{}
				if k := d.medicineIndex(it.MedicineID); k >= 0 {
					t.Name = d.medicines[k].Name
					t.Company = d.medicines[k].Company
				}
				top[it.MedicineID] = t
			}
			t.TotalSold += it.Quantity
			t.Revenue += it.Subtotal
		}
	}

	for date, total := range trend {
		r.SalesTrend = append(r.SalesTrend, model.TrendPoint{Date: date, Total: total})
	}
	sort.Slice(r.SalesTrend, func(i, j int) bool { return r.SalesTrend[i].Date < r.SalesTrend[j].Date })

	for _, t := range top {
		r.TopMedicines = append(r.TopMedicines, *t)
	}
	sort.Slice(r.TopMedicines, func(i, j int) bool {
		if r.TopMedicines[i].TotalSold != r.TopMedicines[j].TotalSold {
			return r.TopMedicines[i].TotalSold > r.TopMedicines[j].TotalSold
		}
		return r.TopMedicines[i].Name < r.TopMedicines[j].Name
	})
	if len(r.TopMedicines) > topMedicinesLimit {
		r.TopMedicines = r.TopMedicines[:topMedicinesLimit]
	}
	return r
}

// paginate returns the page of items; page defaults to 1.
func paginate[T any](items []T, limit, page int) []T {
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if limit <= 0 || start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return append([]T(nil), items[start:end]...)
}
