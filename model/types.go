// Package model holds the record shapes exchanged with the medlocus API and
// the pure helpers that operate on them.
package model

// KPI is a dashboard indicator. Delta is the percent change against the
// previous period, not the real-time additive delta.
type KPI struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Value float64  `json:"value"`
	Delta *float64 `json:"delta,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

// Transaction statuses.
const (
	TransactionCompleted = "completed"
	TransactionPending   = "pending"
	TransactionRefunded  = "refunded"
)

// Transaction is a row of the recent transactions feed.
type Transaction struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Customer string  `json:"customer"`
	Items    int     `json:"items"`
	Total    float64 `json:"total"`
	Status   string  `json:"status"`
}

// TransactionPage is a page of transactions plus the unpaged total.
type TransactionPage struct {
	Items []Transaction `json:"items"`
	Total int           `json:"total"`
}

// InventoryAlert is a low-stock or expiring item.
type InventoryAlert struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Stock      int    `json:"stock"`
	ExpiryDate string `json:"expiryDate,omitempty"`
}

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginRequest carries credentials for /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Medicine is an inventory record.
type Medicine struct {
	MedicineID   int64   `json:"medicine_id,omitempty"`
	Name         string  `json:"name"`
	Company      string  `json:"company"`
	MfgDate      string  `json:"mfg_date"`
	ExpDate      string  `json:"exp_date"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	SupplierID   int64   `json:"supplier_id"`
	SupplierName string  `json:"supplier_name,omitempty"`
	ContactNo    string  `json:"contact_no,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// Customer is a pharmacy customer.
type Customer struct {
	CustomerID int64  `json:"customer_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Sale statuses.
const (
	SaleCompleted = "completed"
	SalePending   = "pending"
	SaleCancelled = "cancelled"
)

// Sale is a sale header with optional nested line items.
type Sale struct {
	SaleID        int64      `json:"sale_id,omitempty"`
	CustomerID    *int64     `json:"customer_id"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	SaleDate      string     `json:"sale_date"`
	TotalAmount   float64    `json:"total_amount"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	ItemCount     int        `json:"item_count,omitempty"`
	Items         []SaleItem `json:"items,omitempty"`
	CreatedAt     string     `json:"created_at,omitempty"`
	UpdatedAt     string     `json:"updated_at,omitempty"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	SaleItemID   int64   `json:"sale_item_id,omitempty"`
	SaleID       int64   `json:"sale_id,omitempty"`
	MedicineID   int64   `json:"medicine_id"`
	MedicineName string  `json:"medicine_name,omitempty"`
	Company      string  `json:"company,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Subtotal     float64 `json:"subtotal"`
}

// SalePage is a page of sales plus the unpaged total.
type SalePage struct {
	Items []Sale `json:"items"`
	Total int    `json:"total"`
}

// SaleFilter narrows a sales listing. Zero values are omitted from the query.
type SaleFilter struct {
	Search string
	Status string
	Limit  int
	Page   int
}

// TopMedicine is a best seller row of the report summary.
type TopMedicine struct {
	Name      string  `json:"name"`
	Company   string  `json:"company"`
	TotalSold int     `json:"total_sold"`
	Revenue   float64 `json:"revenue"`
}

// TrendPoint is a daily total of the report summary.
type TrendPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// ReportSummary is the aggregated reporting payload.
type ReportSummary struct {
	TodaySales     float64       `json:"today_sales"`
	MonthSales     float64       `json:"month_sales"`
	TotalCustomers int           `json:"total_customers"`
	TotalMedicines int           `json:"total_medicines"`
	LowStock       int           `json:"low_stock"`
	ExpiringSoon   int           `json:"expiring_soon"`
	TopMedicines   []TopMedicine `json:"top_medicines"`
	SalesTrend     []TrendPoint  `json:"sales_trend"`
}

// Supplier feeds the medicine form dropdown.
type Supplier struct {
	SupplierID   int64  `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	ContactNo    string `json:"contact_no,omitempty"`
}

// KPIDelta is a real-time additive adjustment to the KPI with ID.
type KPIDelta struct {
	ID    string  `json:"id" msgpack:"id"`
	Value float64 `json:"value" msgpack:"value"`
}

// Notification is a real-time informational message.
type Notification struct {
	ID        string `json:"id" msgpack:"id"`
	Message   string `json:"message" msgpack:"message"`
	CreatedAt string `json:"createdAt" msgpack:"createdAt"`
}
