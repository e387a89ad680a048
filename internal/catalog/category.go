package catalog

import (
	"fmt"
	"strings"
)

// Category identifies the slot a part occupies in a build.
type Category uint8

// The declaration order is the display order of the order table.
const (
	CategoryCPU Category = iota
	CategoryMotherboard
	CategoryRAM
	CategoryGPU
	CategoryStorage
	CategoryPSU
	CategoryCase
	CategoryCooling
	CategoryMonitor

	categoryCount
)

// CategoryCount is the number of known categories.
const CategoryCount = int(categoryCount)

var categoryKeys = [categoryCount]string{
	CategoryCPU:         "cpu",
	CategoryMotherboard: "motherboard",
	CategoryRAM:         "ram",
	CategoryGPU:         "gpu",
	CategoryStorage:     "storage",
	CategoryPSU:         "psu",
	CategoryCase:        "case",
	CategoryCooling:     "cooling",
	CategoryMonitor:     "monitor",
}

var categoryLabels = [categoryCount]string{
	CategoryCPU:         "Processor",
	CategoryMotherboard: "Motherboard",
	CategoryRAM:         "Memory",
	CategoryGPU:         "Graphics Card",
	CategoryStorage:     "Storage",
	CategoryPSU:         "Power Supply",
	CategoryCase:        "Case",
	CategoryCooling:     "Cooling",
	CategoryMonitor:     "Monitor",
}

// Categories returns the fixed, ordered category list.
func Categories() []Category {
	out := make([]Category, 0, CategoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// ParseCategory maps a category key such as "ram" to its Category.
func ParseCategory(value string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	for i, k := range categoryKeys {
		if k == key {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", value)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c < categoryCount
}

// String returns the category key.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryKeys[c]
}

// Label returns a human readable category name.
func (c Category) Label() string {
	if !c.Valid() {
		return c.String()
	}
	return categoryLabels[c]
}

// MultiSelect reports whether a build may hold several parts of this category.
func (c Category) MultiSelect() bool {
	switch c {
	case CategoryRAM, CategoryStorage, CategoryCooling, CategoryMonitor:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(categoryKeys[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CategoryInfo is the public payload describing a category.
type CategoryInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	MultiSelect bool   `json:"multiSelect"`
	Position    int    `json:"position"`
}

// CategoryInfos lists every category in display order.
func CategoryInfos() []CategoryInfo {
	out := make([]CategoryInfo, 0, CategoryCount)
	for i, c := range Categories() {
		out = append(out, CategoryInfo{Key: c.String(), Label: c.Label(), MultiSelect: c.MultiSelect(), Position: i})
	}
	return out
}
