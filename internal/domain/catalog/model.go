package catalog

import (
	"fmt"
	"strconv"
)

type Product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Catalog is the fixed product list shown to buyers. IDs are 1-based.
type Catalog []Product

func Default() Catalog {
	return Catalog{
		{ID: 1, Name: "Produto 1", Price: 50.00},
		{ID: 2, Name: "Produto 2", Price: 75.00},
		{ID: 3, Name: "Produto 3", Price: 100.00},
	}
}

func (c Catalog) Find(id int) (Product, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Lookup resolves a product from its textual id, as found in command
// arguments and callback data.
func (c Catalog) Lookup(raw string) (Product, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return Product{}, fmt.Errorf("invalid product id %q: %w", raw, err)
	}
	p, ok := c.Find(id)
	if !ok {
		return Product{}, fmt.Errorf("product %d not found", id)
	}
	return p, nil
}
