package model

import "github.com/shopspring/decimal"

// LineTotal is quantity * unit price rounded to cents.
func (i SaleItem) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.UnitPrice).
		Mul(decimal.NewFromInt(int64(i.Quantity))).
		Round(2)
}

// SaleTotal sums the line totals of items.
func SaleTotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// PrepareSale returns a copy of s with every item subtotal, the item count
// and the total amount derived from the line items.
func PrepareSale(s Sale) Sale {
	if len(s.Items) == 0 {
		s.Items = nil
		s.ItemCount = 0
		s.TotalAmount = 0
		return s
	}

	items := make([]SaleItem, len(s.Items))
	for i, item := range s.Items {
		item.Subtotal = item.LineTotal().InexactFloat64()
		items[i] = item
	}

	s.Items = items
	s.ItemCount = len(items)
	s.TotalAmount = SaleTotal(items).InexactFloat64()
	return s
}
