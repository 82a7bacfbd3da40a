package receipt

import "slices"

// Category is an expense category and its allowed subcategories
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

var categories = []Category{
	{Name: "Travel", Subcategories: []string{"Airfare", "Hotel", "Car Rental", "Meals", "Other"}},
	{Name: "Office", Subcategories: []string{"Supplies", "Equipment", "Software", "Other"}},
	{Name: "Training", Subcategories: []string{"Conference", "Course", "Books", "Other"}},
	{Name: "Entertainment", Subcategories: []string{"Client", "Team", "Other"}},
	{Name: "Transportation", Subcategories: []string{"Taxi", "Parking", "Gas", "Other"}},
}

// Categories returns the category taxonomy in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Subcategories: slices.Clone(c.Subcategories)}
	}
	return out
}

// IsCategory reports whether name is a known category
func IsCategory(name string) bool {
	return slices.ContainsFunc(categories, func(c Category) bool { return c.Name == name })
}

// IsSubcategory reports whether sub belongs to category
func IsSubcategory(category, sub string) bool {
	for _, c := range categories {
		if c.Name == category {
			return slices.Contains(c.Subcategories, sub)
		}
	}
	return false
}
