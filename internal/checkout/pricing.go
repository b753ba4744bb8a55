package checkout

import (
	"bookstore-be/internal/config"

	"github.com/shopspring/decimal"
)

// Pricing turns a subtotal into the charged amounts.
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingCost      decimal.Decimal
}

type Quote struct {
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

func NewPricing(cfg config.Pricing) Pricing {
	return Pricing{
		TaxRate:               cfg.TaxRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingCost:      cfg.FlatShippingCost,
	}
}

// Quote rounds tax and total to cents. Shipping is free strictly above the
// threshold.
func (p Pricing) Quote(subtotal decimal.Decimal) Quote {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)

	shipping := p.FlatShippingCost.Round(2)
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Quote{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        subtotal.Add(tax).Add(shipping).Round(2),
	}
}
