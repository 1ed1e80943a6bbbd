package client

import (
	"testing"

	"karta/internal/app/dto"
)

func TestFilterMatches(t *testing.T) {
	listing := dto.Listing{ID: "l-1", Title: "Vintage Road Bike", PriceCents: 25000}

	price := func(v int64) *int64 { return &v }

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero value matches", Filter{}, true},
		{"title substring", Filter{Title: "road"}, true},
		{"title mixed case", Filter{Title: "vInTaGe"}, true},
		{"title with surrounding spaces", Filter{Title: "  bike "}, true},
		{"title miss", Filter{Title: "sofa"}, false},
		{"price at cap", Filter{MaxPriceCents: price(25000)}, true},
		{"price over cap", Filter{MaxPriceCents: price(24999)}, false},
		{"zero cap excludes priced items", Filter{MaxPriceCents: price(0)}, false},
		{"both constraints", Filter{Title: "bike", MaxPriceCents: price(30000)}, true},
		{"title ok price not", Filter{Title: "bike", MaxPriceCents: price(100)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(listing); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterZeroCapMatchesFreeListing(t *testing.T) {
	free := dto.Listing{ID: "l-2", Title: "Giveaway", PriceCents: 0}
	cap := int64(0)
	if !(Filter{MaxPriceCents: &cap}).Matches(free) {
		t.Fatalf("zero cap must still match a free listing")
	}
}
