package sources

import (
	"fmt"
	"strings"
)

// Commodity name aliasing maps upstream labels to canonical identifiers.
// The same product is labelled many ways across sources ("CORN", "Ngano",
// "UNGA WA NGANO", "Maize flour (2kg)"); everything resolves to one of four
// canonical commodities, once, at request-parsing or row-matching time.

// Commodity is a canonical commodity identifier
type Commodity string

const (
	CommodityWheat      Commodity = "WHEAT"
	CommodityMaize      Commodity = "MAIZE"
	CommodityWheatFlour Commodity = "WHEAT_FLOUR"
	CommodityMaizeFlour Commodity = "MAIZE_FLOUR"
)

// commodityAlias is one known upstream label for a canonical commodity.
type commodityAlias struct {
	label     string
	commodity Commodity
}

// Flour aliases are consulted before grain aliases: flour labels usually
// contain the grain name ("WHEAT FLOUR" contains "WHEAT"), so the more
// specific table has to win. Order within each table is longest-first for
// the same reason. Labels are stored in normalized form (upper case, no
// punctuation, single spaces).
var flourAliases = []commodityAlias{
	{"UNGA WA NGANO", CommodityWheatFlour},
	{"WHEAT FLOUR", CommodityWheatFlour},
	{"ATTA", CommodityWheatFlour},
	{"UNGA WA MAHINDI", CommodityMaizeFlour},
	{"UGALI FLOUR", CommodityMaizeFlour},
	{"MAIZE FLOUR", CommodityMaizeFlour},
	{"CORN FLOUR", CommodityMaizeFlour},
	{"POSHO", CommodityMaizeFlour},
}

var grainAliases = []commodityAlias{
	{"MAHINDI", CommodityMaize},
	{"MAIZE", CommodityMaize},
	{"CORN", CommodityMaize},
	{"NGANO", CommodityWheat},
	{"WHEAT", CommodityWheat},
}

// AllCommodities returns the four canonical commodities in stable order.
func AllCommodities() []Commodity {
	return []Commodity{CommodityWheat, CommodityMaize, CommodityWheatFlour, CommodityMaizeFlour}
}

// DefaultCommodities returns the grain commodities fetched when a request
// names none.
func DefaultCommodities() []Commodity {
	return []Commodity{CommodityWheat, CommodityMaize}
}

// Class returns the product type of a canonical commodity.
func (c Commodity) Class() ProductType {
	if strings.HasSuffix(string(c), "_FLOUR") {
		return ProductFlour
	}
	return ProductGrain
}

// ParseCommodity resolves a caller-supplied commodity name to its canonical
// form. Unknown names are a validation error, distinct from "no data found".
func ParseCommodity(name string) (Commodity, error) {
	c, ok := MatchCommodity(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommodity, name)
	}
	return c, nil
}

// MatchCommodity resolves an upstream label (or caller-supplied name) to a
// canonical commodity. Matching is case-insensitive substring containment in
// either direction, flour aliases first.
func MatchCommodity(label string) (Commodity, bool) {
	name := normalizeName(label)
	if name == "" {
		return "", false
	}

	// Exact canonical identifiers short-circuit the alias scan.
	switch name {
	case "WHEAT":
		return CommodityWheat, true
	case "MAIZE":
		return CommodityMaize, true
	case "WHEAT FLOUR":
		return CommodityWheatFlour, true
	case "MAIZE FLOUR":
		return CommodityMaizeFlour, true
	}

	for _, a := range flourAliases {
		if strings.Contains(name, a.label) || strings.Contains(a.label, name) {
			return a.commodity, true
		}
	}
	for _, a := range grainAliases {
		if strings.Contains(name, a.label) || strings.Contains(a.label, name) {
			return a.commodity, true
		}
	}

	return "", false
}

// IsEquivalentName checks whether two labels resolve to the same commodity.
func IsEquivalentName(name1, name2 string) bool {
	c1, ok1 := MatchCommodity(name1)
	c2, ok2 := MatchCommodity(name2)
	return ok1 && ok2 && c1 == c2
}

// normalizeName upper-cases a label and flattens punctuation so that
// "Wheat-Flour", "WHEAT_FLOUR" and "wheat flour" all compare equal.
func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
