// Package units converts quantities between measurement units of the same
// physical category (mass, volume, count).
//
// Each unit has a multiplier to its category's base unit: grams for mass,
// milliliters for volume, and 1 for countable units. Unit names are matched
// case-insensitively after trimming. Unknown names convert 1:1 and are
// considered compatible with every unit; use Known to reject them up front.
package units

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Category string

const (
	Mass    Category = "mass"
	Volume  Category = "volume"
	Count   Category = "count"
	Unknown Category = ""
)

// divisionPrecision bounds the digits kept when dividing by a non-integer
// multiplier such as 28.3495.
const divisionPrecision = 16

type unit struct {
	category   Category
	multiplier decimal.Decimal
}

var table = map[string]unit{}

func register(c Category, multiplier string, names ...string) {
	m := decimal.RequireFromString(multiplier)
	for _, n := range names {
		table[n] = unit{category: c, multiplier: m}
	}
}

func init() {
	register(Mass, "1000", "kg", "kilogram", "kilograms", "kilogramo", "kilogramos")
	register(Mass, "1", "g", "gram", "grams", "gramo", "gramos")
	register(Mass, "28.3495", "oz", "ounce", "ounces", "onza", "onzas")

	register(Volume, "1000", "l", "liter", "liters", "litre", "litres", "litro", "litros")
	register(Volume, "1", "ml", "milliliter", "milliliters", "millilitre", "millilitres", "mililitro", "mililitros")
	register(Volume, "29.5735", "fl_oz", "fluid_ounce", "fluid_ounces", "onza_fluida", "onzas_fluidas")

	register(Count, "1", "unit", "units", "piece", "pieces", "unidad", "unidades", "pieza", "piezas")
}

func lookup(name string) (unit, bool) {
	u, ok := table[normalize(name)]
	return u, ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Known reports whether name is in the conversion table.
func Known(name string) bool {
	_, ok := lookup(name)
	return ok
}

// CategoryOf returns the category of name, or Unknown.
func CategoryOf(name string) Category {
	u, ok := lookup(name)
	if !ok {
		return Unknown
	}
	return u.category
}

// Compatible reports whether a quantity in from can be meaningfully
// expressed in to. Unknown units are compatible with anything.
func Compatible(from, to string) bool {
	a, okA := lookup(from)
	b, okB := lookup(to)
	if !okA || !okB {
		return true
	}
	return a.category == b.category
}

// Convert expresses qty (in from) in to. The same unit returns qty
// unchanged; an unknown unit on either side counts as multiplier 1.
func Convert(qty decimal.Decimal, from, to string) decimal.Decimal {
	if normalize(from) == normalize(to) {
		return qty
	}
	base := qty
	if u, ok := lookup(from); ok {
		base = qty.Mul(u.multiplier)
	}
	u, ok := lookup(to)
	if !ok || u.multiplier.Equal(decimal.NewFromInt(1)) {
		return base
	}
	return base.DivRound(u.multiplier, divisionPrecision)
}
