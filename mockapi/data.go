package mockapi

import (
	"time"

	"github.com/goliatone/go-medlocus/model"
)

func ptr[T any](v T) *T { return &v }

func seedKPIs() []model.KPI {
	return []model.KPI{
		{ID: "k1", Label: "Today's Sales", Value: 12540.75, Delta: ptr(4.3), Unit: "USD"},
		{ID: "k2", Label: "Pending Prescriptions", Value: 12, Delta: ptr(-8.0)},
		{ID: "k3", Label: "Low Stock Items", Value: 7, Delta: ptr(1.5)},
		{ID: "k4", Label: "Total Inventory Value", Value: 245000, Delta: ptr(2.1), Unit: "USD"},
	}
}

func seedTransactions() []model.Transaction {
	return []model.Transaction{
		{ID: "t1", Date: "2025-12-06T09:12:00Z", Customer: "R. Sharma", Items: 3, Total: 250.5, Status: model.TransactionCompleted},
		{ID: "t2", Date: "2025-12-06T08:45:00Z", Customer: "A. Patel", Items: 2, Total: 180.25, Status: model.TransactionCompleted},
		{ID: "t3", Date: "2025-12-06T08:30:00Z", Customer: "S. Kumar", Items: 5, Total: 420.0, Status: model.TransactionPending},
		{ID: "t4", Date: "2025-12-06T07:15:00Z", Customer: "M. Singh", Items: 1, Total: 95.0, Status: model.TransactionCompleted},
		{ID: "t5", Date: "2025-12-06T06:50:00Z", Customer: "K. Reddy", Items: 4, Total: 320.75, Status: model.TransactionCompleted},
		{ID: "t6", Date: "2025-12-05T18:20:00Z", Customer: "P. Desai", Items: 2, Total: 150.0, Status: model.TransactionRefunded},
	}
}

func seedInventoryAlerts() []model.InventoryAlert {
	return []model.InventoryAlert{
		{ID: "i1", Name: "Paracetamol 500mg", SKU: "PAR-500", Stock: 2, ExpiryDate: "2026-01-15"},
		{ID: "i2", Name: "Insulin vials", SKU: "INS-001", Stock: 4},
		{ID: "i3", Name: "Amoxicillin 250mg", SKU: "AMX-250", Stock: 5, ExpiryDate: "2025-12-20"},
	}
}

func seedSuppliers() []model.Supplier {
	return []model.Supplier{
		{SupplierID: 1, SupplierName: "MediSupply Co", ContactNo: "9800000001"},
		{SupplierID: 2, SupplierName: "HealthLine Distributors", ContactNo: "9800000002"},
		{SupplierID: 3, SupplierName: "CareWell Pharma", ContactNo: "9800000003"},
	}
}

// seedMedicines returns the catalogue. Expiry dates of the last two items
// are relative to now so the expiring count is never empty.
func seedMedicines(now time.Time) []model.Medicine {
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format(model.DateLayout)
	}
	return []model.Medicine{
		{MedicineID: 1, Name: "Paracetamol 500mg", Company: "Cipla", MfgDate: "2024-01-10", ExpDate: "2027-01-10", Quantity: 120, Price: 2.5, SupplierID: 1},
		{MedicineID: 2, Name: "Ibuprofen 400mg", Company: "Sun Pharma", MfgDate: "2024-02-01", ExpDate: "2026-08-01", Quantity: 80, Price: 4.75, SupplierID: 1},
		{MedicineID: 3, Name: "Amoxicillin 250mg", Company: "Lupin", MfgDate: "2024-03-15", ExpDate: "2026-09-15", Quantity: 3, Price: 8.0, SupplierID: 2},
		{MedicineID: 4, Name: "Cetirizine 10mg", Company: "Dr. Reddy's", MfgDate: "2024-04-20", ExpDate: "2027-04-20", Quantity: 60, Price: 1.2, SupplierID: 3},
		{MedicineID: 5, Name: "Insulin Glargine", Company: "Biocon", MfgDate: "2024-05-05", ExpDate: day(20), Quantity: 4, Price: 35.0, SupplierID: 2},
		{MedicineID: 6, Name: "Omeprazole 20mg", Company: "Cipla", MfgDate: "2024-06-01", ExpDate: day(10), Quantity: 45, Price: 3.3, SupplierID: 3},
	}
}

func seedCustomers() []model.Customer {
	return []model.Customer{
		{CustomerID: 1, Name: "Rajesh Sharma", Email: "rajesh.sharma@email.com", Phone: "9876543210", Address: "123 Main St, Mumbai"},
		{CustomerID: 2, Name: "Anita Patel", Email: "anita.patel@email.com", Phone: "9876543211", Address: "456 Park Ave, Delhi"},
		{CustomerID: 3, Name: "Suresh Kumar", Email: "suresh.kumar@email.com", Phone: "9876543212", Address: "789 Market Rd, Bangalore"},
		{CustomerID: 4, Name: "Meera Singh", Email: "meera.singh@email.com", Phone: "9876543213", Address: "321 Garden St, Pune"},
		{CustomerID: 5, Name: "Kiran Reddy", Email: "kiran.reddy@email.com", Phone: "9876543214", Address: "654 Lake View, Hyderabad"},
	}
}

// seedSales returns sales dated relative to now, already priced.
func seedSales(now time.Time) []model.Sale {
	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format(model.DateLayout)
	}
	sales := []model.Sale{
		{
			SaleID: 1, CustomerID: ptr[int64](1), SaleDate: day(0), Status: model.SaleCompleted,
			Items: []model.SaleItem{
				{SaleItemID: 1, MedicineID: 1, Quantity: 10, UnitPrice: 2.5},
				{SaleItemID: 2, MedicineID: 4, Quantity: 2, UnitPrice: 1.2},
			},
		},
		{
			SaleID: 2, CustomerID: ptr[int64](2), SaleDate: day(-1), Status: model.SaleCompleted,
			Items: []model.SaleItem{
				{SaleItemID: 3, MedicineID: 2, Quantity: 4, UnitPrice: 4.75},
			},
		},
		{
			SaleID: 3, CustomerID: ptr[int64](3), SaleDate: day(-2), Status: model.SalePending, Notes: "awaiting prescription",
			Items: []model.SaleItem{
				{SaleItemID: 4, MedicineID: 5, Quantity: 1, UnitPrice: 35.0},
			},
		},
		{
			SaleID: 4, SaleDate: day(-3), Status: model.SaleCompleted, Notes: "walk-in",
			Items: []model.SaleItem{
				{SaleItemID: 5, MedicineID: 6, Quantity: 3, UnitPrice: 3.3},
				{SaleItemID: 6, MedicineID: 1, Quantity: 2, UnitPrice: 2.5},
			},
		},
	}
	for i := range sales {
		sales[i] = model.PrepareSale(sales[i])
		for j := range sales[i].Items {
			sales[i].Items[j].SaleID = sales[i].SaleID
		}
	}
	return sales
}
