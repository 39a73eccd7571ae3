package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID                 string
	SellerID           string
	Name               string
	BasePrice          decimal.Decimal
	DiscountPercentage *decimal.Decimal
	Variants           []Variant
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Variant overrides the product's price and discount when its own are set.
type Variant struct {
	ID                 string
	ProductID          string
	Name               string
	Price              *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	Stock              int
}

func (p Product) VariantByName(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

func (p Product) VariantByID(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// FinalPrice is price × (1 − discount/100) rounded to cents, where the
// variant's price and discount take precedence over the product's.
func FinalPrice(p Product, v *Variant) decimal.Decimal {
	price := p.BasePrice
	if v != nil && v.Price != nil {
		price = *v.Price
	}

	discount := decimal.Zero
	switch {
	case v != nil && v.DiscountPercentage != nil:
		discount = *v.DiscountPercentage
	case p.DiscountPercentage != nil:
		discount = *p.DiscountPercentage
	}

	factor := decimal.NewFromInt(1).Sub(discount.Div(hundred))
	return price.Mul(factor).Round(2)
}
