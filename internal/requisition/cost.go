package requisition

import "github.com/shopspring/decimal"

// PacksToShip converts the approved quantity into whole packs using the
// orderable's rounding rules.
func PacksToShip(li LineItem) int64 {
	if li.Skipped || li.ApprovedQuantity == nil {
		return 0
	}
	quantity := *li.ApprovedQuantity
	orderable := li.Orderable
	if orderable.NetContent <= 0 || quantity <= 0 {
		return 0
	}

	packs := quantity / orderable.NetContent
	remainder := quantity % orderable.NetContent
	if remainder > 0 && remainder > orderable.PackRoundingThreshold {
		packs++
	}
	if packs == 0 && !orderable.RoundToZero {
		packs = 1
	}
	return packs
}

// TotalCost is packs to ship times price per pack. A missing price counts
// as zero.
func TotalCost(li LineItem) decimal.Decimal {
	if li.PricePerPack == nil {
		return decimal.Zero
	}
	return li.PricePerPack.Mul(decimal.NewFromInt(PacksToShip(li)))
}

// CostOf returns the stored total cost of a line item, zero when absent.
func CostOf(li LineItem) decimal.Decimal {
	if li.TotalCost == nil {
		return decimal.Zero
	}
	return *li.TotalCost
}

// QuantityOf returns the approved quantity of a line item, zero when absent.
func QuantityOf(li LineItem) int64 {
	if li.ApprovedQuantity == nil {
		return 0
	}
	return *li.ApprovedQuantity
}
