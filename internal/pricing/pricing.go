// Package pricing computes checkout totals from cart subtotal, distance to the
// nearest service area, admin charge configuration and a promo discount.
package pricing

import (
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Surcharge is one percentage-of-subtotal line.
type Surcharge struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Amount  float64 `json:"amount"`
}

// Breakdown is an itemized checkout total. Only Total is rounded.
type Breakdown struct {
	Subtotal    float64     `json:"subtotal"`
	Surcharges  []Surcharge `json:"surcharges"`
	DistanceKm  *float64    `json:"distanceKm,omitempty"`
	DeliveryFee float64     `json:"deliveryFee"`
	Discount    float64     `json:"discount"`
	Total       float64     `json:"total"`
}

// Line is a priced cart line.
type Line struct {
	Price    float64
	Quantity int
}

// Subtotal sums price*quantity over lines.
func Subtotal(lines []Line) float64 {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.InexactFloat64()
}

// DeliveryFee charges ratePerKm for every km beyond the free radius. A nil
// distance means the address is unknown and nothing is charged.
func DeliveryFee(distanceKm *float64, charge models.DeliveryCharge) float64 {
	return deliveryFee(distanceKm, charge).InexactFloat64()
}

func deliveryFee(distanceKm *float64, charge models.DeliveryCharge) decimal.Decimal {
	if distanceKm == nil {
		return decimal.Zero
	}
	beyond := decimal.NewFromFloat(*distanceKm).Sub(decimal.NewFromFloat(charge.FreeUptoKm))
	if beyond.IsNegative() {
		return decimal.Zero
	}
	return beyond.Mul(decimal.NewFromFloat(charge.RatePerKm))
}

// PromoDiscount returns the discount a promo grants on subtotal. Flat
// discounts are independent of subtotal and may exceed it.
func PromoDiscount(promo models.PromoCode, subtotal float64) float64 {
	if promo.Type == models.PromoTypePercent {
		return decimal.NewFromFloat(subtotal).Mul(decimal.NewFromFloat(promo.Value)).Div(hundred).InexactFloat64()
	}
	return promo.Value
}

// ComputeTotal prices a checkout. Each surcharge is taken off the subtotal,
// never off a running total. The total is rounded to 2 places once and
// floored at zero.
func ComputeTotal(subtotal float64, distanceKm *float64, charges models.ChargeConfig, discount float64) Breakdown {
	sub := decimal.NewFromFloat(subtotal)
	total := sub

	surcharges := make([]Surcharge, 0, len(charges.OtherCharges))
	for _, oc := range charges.OtherCharges {
		amount := sub.Mul(decimal.NewFromFloat(oc.Percent)).Div(hundred)
		total = total.Add(amount)
		surcharges = append(surcharges, Surcharge{
			Name:    oc.Name,
			Percent: oc.Percent,
			Amount:  amount.InexactFloat64(),
		})
	}

	fee := deliveryFee(distanceKm, charges.DeliveryCharge)
	total = total.Add(fee).Sub(decimal.NewFromFloat(discount)).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:    subtotal,
		Surcharges:  surcharges,
		DistanceKm:  distanceKm,
		DeliveryFee: fee.InexactFloat64(),
		Discount:    discount,
		Total:       total.InexactFloat64(),
	}
}

// ToMinorUnits converts a rupee amount to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts paise back to rupees.
func FromMinorUnits(amount int64) float64 {
	return decimal.NewFromInt(amount).Div(hundred).InexactFloat64()
}
