package procurement

import "github.com/niaga-erp/niaga/internal/inventory"

// ReservedByProduct nets the order's reservation movements per product:
// ORDER movements reserve, ORDER_CANCEL movements release.
func ReservedByProduct(movements []inventory.StockMovement) map[int64]int64 {
	reserved := make(map[int64]int64)
	for _, m := range movements {
		switch m.Source {
		case inventory.SourceOrder, inventory.SourceOrderCancel:
			reserved[m.ProductID] -= m.Signed()
		}
	}
	for id, qty := range reserved {
		if qty < 0 {
			reserved[id] = 0
		}
	}
	return reserved
}

// CheckAvailability decides per item whether the ledger can supply it.
// Stock already reserved for the linked order counts toward availability,
// and items of the same product compete for the same stock.
func CheckAvailability(poID int64, items []Item, stock, reserved map[int64]int64) StockCheck {
	required := make(map[int64]int64)
	for _, it := range items {
		required[it.ProductID] += it.Quantity
	}
	check := StockCheck{POID: poID, Items: make([]ItemAvailability, 0, len(items)), AllAvailable: true}
	for _, it := range items {
		supply := stock[it.ProductID] + reserved[it.ProductID]
		need := required[it.ProductID]
		row := ItemAvailability{
			ItemID:       it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Required:     it.Quantity,
			CurrentStock: stock[it.ProductID],
			Reserved:     reserved[it.ProductID],
			Available:    supply >= need,
		}
		if !row.Available {
			row.Shortfall = need - supply
			check.AllAvailable = false
		}
		check.Items = append(check.Items, row)
	}
	return check
}
