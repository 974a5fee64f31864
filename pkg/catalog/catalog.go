// Package catalog provides the product catalog for the recommendation engine.
//
// The catalog is a fixed, read-mostly list of products loaded once at process
// start. It is safe for unsynchronized concurrent reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Product represents a single product in the store catalog.
type Product struct {
	// ID is the catalog identifier of the product.
	ID string `json:"id"`

	// Name is the display name of the product.
	Name string `json:"name"`

	// Description is a short marketing description.
	Description string `json:"description,omitempty"`

	// Price is the current price in the store currency.
	Price float64 `json:"price"`

	// OriginalPrice is the pre-discount price (0 if not discounted).
	OriginalPrice float64 `json:"original_price,omitempty"`

	// Category is the product category (e.g., "Produce", "Dairy", "Bakery").
	Category string `json:"category"`

	// Stock is the number of units currently in stock.
	Stock int `json:"stock"`

	// Unit is the selling unit (e.g., "liter", "pack", "loaf").
	Unit string `json:"unit"`

	// IsVegan indicates the product contains no animal products.
	IsVegan bool `json:"is_vegan,omitempty"`

	// IsVegetarian indicates the product is vegetarian.
	IsVegetarian bool `json:"is_vegetarian,omitempty"`

	// IsOrganic indicates the product is certified organic.
	IsOrganic bool `json:"is_organic,omitempty"`
}

// Catalog is an immutable, ordered collection of products with id-based lookup.
//
// Build one with New or Default and share it freely between goroutines.
type Catalog struct {
	products []Product
	byID     map[string]*Product
}

// New creates a Catalog from the given product list.
//
// The input order is preserved; it is the order used for deterministic
// catalog-based padding. Duplicate ids keep the first occurrence.
func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]*Product, len(products)),
	}
	for _, p := range products {
		if _, ok := c.byID[p.ID]; ok {
			continue
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = &c.products[len(c.products)-1]
	}
	return c
}

// LoadFromJSON loads a catalog from a JSON file containing an array of products.
func LoadFromJSON(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	return New(products), nil
}

// Find returns the product with the given id, or nil if the id is not in the catalog.
func (c *Catalog) Find(id string) *Product {
	return c.byID[id]
}

// Products returns the products in catalog order.
//
// The returned slice is shared; callers must not mutate it.
func (c *Catalog) Products() []Product {
	return c.products
}

// Len returns the number of products in the catalog.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Default returns the built-in grocery catalog.
func Default() *Catalog {
	return New(defaultProducts)
}

var defaultProducts = []Product{
	{ID: "1", Name: "Organic Bananas (1 Dozen)", Description: "Sweet, perfectly ripe organic bananas.", Price: 60, Category: "Produce", Stock: 150, Unit: "dozen", IsVegan: true, IsOrganic: true},
	{ID: "2", Name: "Fresh Avocados (Pack of 2)", Description: "Creamy, nutrient-dense avocados.", Price: 240, Category: "Produce", Stock: 40, Unit: "pack", IsVegan: true},
	{ID: "3", Name: "Red Strawberries (Box)", Description: "Juicy, sweet red strawberries.", Price: 250, OriginalPrice: 299, Category: "Produce", Stock: 30, Unit: "box", IsVegan: true},
	{ID: "4", Name: "Organic Baby Spinach", Description: "Fresh, tender baby spinach leaves.", Price: 80, Category: "Produce", Stock: 60, Unit: "bag", IsVegan: true, IsVegetarian: true, IsOrganic: true},
	{ID: "5", Name: "Crisp Carrots (1kg)", Description: "Crunchy, sweet organic carrots.", Price: 60, Category: "Produce", Stock: 80, Unit: "kg", IsVegan: true, IsVegetarian: true},
	{ID: "6", Name: "Whole Milk (1L)", Description: "Fresh, pasteurized whole milk.", Price: 72, Category: "Dairy", Stock: 40, Unit: "liter", IsVegetarian: true},
	{ID: "7", Name: "Almond Milk (Unsweetened)", Description: "Smooth, nutty almond milk.", Price: 299, Category: "Dairy", Stock: 25, Unit: "liter", IsVegan: true},
	{ID: "8", Name: "Greek Yogurt (400g)", Description: "Creamy, protein-rich Greek yogurt.", Price: 250, Category: "Dairy", Stock: 35, Unit: "tub", IsVegetarian: true},
	{ID: "9", Name: "Farm Fresh Eggs (Pack of 6)", Description: "Free-range eggs from happy hens.", Price: 85, Category: "Dairy", Stock: 50, Unit: "pack", IsVegetarian: true},
	{ID: "10", Name: "Cheddar Cheese Block", Description: "Aged cheddar with rich, sharp flavor.", Price: 340, Category: "Dairy", Stock: 30, Unit: "block", IsVegetarian: true},
	{ID: "11", Name: "Sourdough Bread Loaf", Description: "Artisan sourdough with crispy crust.", Price: 120, Category: "Bakery", Stock: 20, Unit: "loaf", IsVegan: true},
	{ID: "12", Name: "Croissants (Pack of 4)", Description: "Buttery, flaky French croissants.", Price: 180, Category: "Bakery", Stock: 15, Unit: "pack", IsVegetarian: true},
}
