// Package pricing holds the server-side money rules: service fee, totals,
// discounts, client/server amount comparison and photo price resolution.
// Every function here is pure.
package pricing

import (
	"math"
	"sort"
)

const (
	// ServiceFeeRate is applied on top of the subtotal of every paid checkout.
	ServiceFeeRate = 0.10
	// Tolerance is the largest client/server difference treated as rounding noise.
	Tolerance = 0.01
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Round rounds to currency precision (two decimals, half away from zero).
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts an amount to integer minor units.
func Cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func ServiceFee(subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	return Round(subtotal * ServiceFeeRate)
}

func Total(subtotal, fee float64) float64 {
	return Round(subtotal + fee)
}

// AmountsDiffer reports whether a client-submitted amount deviates from the
// authoritative one by more than Tolerance.
func AmountsDiffer(client, server float64) bool {
	return math.Abs(client-server) > Tolerance
}

// ApplyDiscount returns price after the discount, never below zero.
func ApplyDiscount(price float64, kind DiscountType, value float64) float64 {
	var out float64
	switch kind {
	case DiscountPercentage:
		if value > 100 {
			value = 100
		}
		out = price - price*value/100
	case DiscountFixed:
		out = price - value
	default:
		out = price
	}
	if out < 0 {
		return 0
	}
	return Round(out)
}

type Tier struct {
	MinQuantity  int
	PricePerUnit float64
	DisplayOrder int
}

type Package struct {
	ID           string
	Name         string
	Quantity     int
	Price        float64
	DisplayOrder int
}

type QuoteMode string

const (
	QuoteTier        QuoteMode = "tier"
	QuotePackage     QuoteMode = "package"
	QuotePackageUnit QuoteMode = "package_unit"
)

type PhotoQuote struct {
	Mode         QuoteMode
	Quantity     int
	PricePerUnit float64
	Package      *Package
	Total        float64
}

// ResolvePhotoPrice picks the price for quantity photos.
//
// Tiers win when the event has any: the tier with the largest MinQuantity not
// above quantity is used. Without a matching tier the smallest package that
// covers the quantity is used (cheaper first, then DisplayOrder). When no
// package covers it, the package with the cheapest effective unit price is
// applied per photo. ok is false when nothing can price the request.
func ResolvePhotoPrice(tiers []Tier, packages []Package, quantity int) (PhotoQuote, bool) {
	if quantity <= 0 {
		return PhotoQuote{}, false
	}

	if tier, ok := pickTier(tiers, quantity); ok {
		return PhotoQuote{
			Mode:         QuoteTier,
			Quantity:     quantity,
			PricePerUnit: tier.PricePerUnit,
			Total:        Round(tier.PricePerUnit * float64(quantity)),
		}, true
	}

	if len(packages) == 0 {
		return PhotoQuote{}, false
	}

	sorted := make([]Package, len(packages))
	copy(sorted, packages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	var best *Package
	for i := range sorted {
		p := &sorted[i]
		if p.Quantity < quantity {
			continue
		}
		if best == nil || p.Quantity < best.Quantity ||
			(p.Quantity == best.Quantity && p.Price < best.Price) {
			best = p
		}
	}
	if best != nil {
		pkg := *best
		return PhotoQuote{
			Mode:         QuotePackage,
			Quantity:     quantity,
			PricePerUnit: Round(pkg.Price / float64(pkg.Quantity)),
			Package:      &pkg,
			Total:        Round(pkg.Price),
		}, true
	}

	var cheapest *Package
	var cheapestUnit float64
	for i := range sorted {
		p := &sorted[i]
		if p.Quantity <= 0 {
			continue
		}
		unit := p.Price / float64(p.Quantity)
		if cheapest == nil || unit < cheapestUnit {
			cheapest, cheapestUnit = p, unit
		}
	}
	if cheapest == nil {
		return PhotoQuote{}, false
	}
	pkg := *cheapest
	return PhotoQuote{
		Mode:         QuotePackageUnit,
		Quantity:     quantity,
		PricePerUnit: Round(cheapestUnit),
		Package:      &pkg,
		Total:        Round(cheapestUnit * float64(quantity)),
	}, true
}

func pickTier(tiers []Tier, quantity int) (Tier, bool) {
	if len(tiers) == 0 {
		return Tier{}, false
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MinQuantity != sorted[j].MinQuantity {
			return sorted[i].MinQuantity < sorted[j].MinQuantity
		}
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	var (
		picked Tier
		found  bool
	)
	for _, t := range sorted {
		if t.MinQuantity > quantity {
			break
		}
		if found && t.MinQuantity == picked.MinQuantity {
			continue
		}
		picked, found = t, true
	}
	return picked, found
}
