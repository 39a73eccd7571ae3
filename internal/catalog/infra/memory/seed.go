package memory

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dwikikusuma/shoping-market/internal/catalog/domain"
)

// seedFile is the YAML layout of a catalog seed:
//
//	products:
//	  - id: p-mug
//	    seller_id: s-1
//	    name: Mug
//	    base_price: "100.00"
//	    variants:
//	      - {id: v-red, name: Red, stock: 10}
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID        string        `yaml:"id"`
	SellerID  string        `yaml:"seller_id"`
	Name      string        `yaml:"name"`
	BasePrice string        `yaml:"base_price"`
	Discount  string        `yaml:"discount_percentage"`
	Variants  []seedVariant `yaml:"variants"`
}

type seedVariant struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Discount string `yaml:"discount_percentage"`
	Stock    int    `yaml:"stock"`
}

// LoadSeed reads a YAML product list into the store and returns how many
// products it loaded.
func (s *ProductStore) LoadSeed(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse seed: %w", err)
	}

	for _, sp := range f.Products {
		p, err := sp.product()
		if err != nil {
			return 0, fmt.Errorf("product %s: %w", sp.ID, err)
		}
		s.Put(p)
	}
	return len(f.Products), nil
}

func (sp seedProduct) product() (domain.Product, error) {
	base, err := decimal.NewFromString(sp.BasePrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("base_price: %w", err)
	}
	p := domain.Product{ID: sp.ID, SellerID: sp.SellerID, Name: sp.Name, BasePrice: base}
	if p.DiscountPercentage, err = optionalDecimal(sp.Discount); err != nil {
		return domain.Product{}, fmt.Errorf("discount_percentage: %w", err)
	}

	for _, sv := range sp.Variants {
		v := domain.Variant{ID: sv.ID, ProductID: sp.ID, Name: sv.Name, Stock: sv.Stock}
		if v.Price, err = optionalDecimal(sv.Price); err != nil {
			return domain.Product{}, fmt.Errorf("variant %s price: %w", sv.ID, err)
		}
		if v.DiscountPercentage, err = optionalDecimal(sv.Discount); err != nil {
			return domain.Product{}, fmt.Errorf("variant %s discount: %w", sv.ID, err)
		}
		p.Variants = append(p.Variants, v)
	}
	return p, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
