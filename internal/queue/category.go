package queue

import (
	"fmt"
	"strings"
)

// CategoryRegistry is the set of service categories, loaded once at
// startup. Retired categories are kept so restored tickets still resolve.
type CategoryRegistry struct {
	byID map[string]Category
	list []Category
}

// NewCategoryRegistry validates categories and builds the registry. Ids
// must be unique and every category needs a name and a known class.
func NewCategoryRegistry(categories []Category) (*CategoryRegistry, error) {
	r := &CategoryRegistry{
		byID: make(map[string]Category, len(categories)),
		list: make([]Category, 0, len(categories)),
	}
	for _, c := range categories {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("category %q has an empty id", c.Name)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category %s has an empty name", c.ID)
		}
		class, err := ParsePriorityClass(string(c.PriorityClass))
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.ID, err)
		}
		c.PriorityClass = class
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %s", c.ID)
		}
		r.byID[c.ID] = c
		r.list = append(r.list, c)
	}
	return r, nil
}

// Resolve returns the category with the given id for issuing a ticket.
// Retired categories are refused.
func (r *CategoryRegistry) Resolve(id string) (Category, error) {
	c, ok := r.byID[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrInvalidCategory, id)
	}
	if c.Retired {
		return Category{}, fmt.Errorf("%w: %q is retired", ErrInvalidCategory, id)
	}
	return c, nil
}

// Has reports whether id names a category, retired or not.
func (r *CategoryRegistry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns the active categories in configuration order.
func (r *CategoryRegistry) List() []Category {
	out := make([]Category, 0, len(r.list))
	for _, c := range r.list {
		if !c.Retired {
			out = append(out, c)
		}
	}
	return out
}

// All returns every category, retired ones included.
func (r *CategoryRegistry) All() []Category {
	out := make([]Category, len(r.list))
	copy(out, r.list)
	return out
}

// retire registers id as a retired category. Restore uses it for tickets
// whose category row is gone.
func (r *CategoryRegistry) retire(id string, class PriorityClass) {
	if _, err := ParsePriorityClass(string(class)); err != nil {
		class = ClassGeneral
	}
	c := Category{ID: id, Name: id, PriorityClass: class, Retired: true}
	r.byID[id] = c
	r.list = append(r.list, c)
}
