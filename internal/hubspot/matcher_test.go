package hubspot

import (
	"testing"

	"leadcheck_backend/internal/dupcheck"
)

func TestRatioBounds(t *testing.T) {
	if got := ratio("casa verde", "casa verde"); got != 100 {
		t.Fatalf("identical strings: expected 100, got %d", got)
	}
	if got := ratio("", ""); got != 100 {
		t.Fatalf("two empty strings: expected 100, got %d", got)
	}
	if got := ratio("casa", ""); got != 0 {
		t.Fatalf("one empty string: expected 0, got %d", got)
	}
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	if got := tokenSortRatio("verde casa", "casa verde"); got != 100 {
		t.Fatalf("reordered words: expected 100, got %d", got)
	}
}

func TestTokenSetRatioHandlesPartialOverlap(t *testing.T) {
	// Shared core "casa verde" against a superset scores high.
	got := tokenSetRatio("casa verde", "casa verde al mare")
	if got != 100 {
		t.Fatalf("subset name: expected 100, got %d", got)
	}

	if got := tokenSetRatio("casa verde", "pensjonat bursztyn"); got >= mediumNameScore {
		t.Fatalf("unrelated names scored %d, expected below %d", got, mediumNameScore)
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Poland", "pl"},
		{"polska", "pl"},
		{"PL", "pl"},
		{"Deutschland", "de"},
		{"Narnia", "narnia"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeCountry(tt.in); got != tt.want {
			t.Fatalf("normalizeCountry(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocationMatchCityAndCountry(t *testing.T) {
	lead := dupcheck.Lead{Country: "Poland", City: "Gdańsk"}

	match, _ := locationMatch(lead, map[string]string{"country": "PL", "city": "Gdansk"})
	if !match {
		t.Fatal("expected same city and country to match")
	}

	match, _ = locationMatch(lead, map[string]string{"country": "PL", "city": "Warszawa"})
	if match {
		t.Fatal("expected different city to fail despite same country")
	}
}

func TestLocationMatchCityInAddressFallback(t *testing.T) {
	lead := dupcheck.Lead{Country: "Poland", City: "Sopot"}

	match, _ := locationMatch(lead, map[string]string{"address": "ul. Morska 12, 81-700 Sopot"})
	if !match {
		t.Fatal("expected city found in address to match")
	}
}

func TestLocationMatchCountryOnly(t *testing.T) {
	lead := dupcheck.Lead{Country: "Germany"}

	if match, _ := locationMatch(lead, map[string]string{"country": "Deutschland"}); !match {
		t.Fatal("expected country aliases to match")
	}
	if match, _ := locationMatch(lead, map[string]string{"country": "Italy"}); match {
		t.Fatal("expected different countries to fail")
	}
}

func TestBookingSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.booking.com/hotel/it/casa-verde.it.html", "casa-verde"},
		{"https://booking.com/hotel/pl/pensjonat-bursztyn.html?aid=12", "pensjonat-bursztyn"},
		{"https://www.Booking.com/hotel/de/Haus-Sonne.html", "haus-sonne"},
		{"https://www.airbnb.com/rooms/12345", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := bookingSlug(tt.in); got != tt.want {
			t.Fatalf("bookingSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAcceptDealThresholds(t *testing.T) {
	tests := []struct {
		name    string
		signals candidateSignals
		want    bool
	}{
		{"strong score accepted without location", candidateSignals{score: 95, sameWordCount: true}, true},
		{"medium score needs location", candidateSignals{score: 88, location: true, sameWordCount: true}, true},
		{"medium score without location rejected", candidateSignals{score: 88, sameWordCount: true}, false},
		{"below medium always rejected", candidateSignals{score: 80, location: true, sameWordCount: true}, false},
		{"perfect score same word count accepted", candidateSignals{score: 100, sameWordCount: true}, true},
		{"perfect score extra words rejected without confirmation", candidateSignals{score: 100}, false},
		{"perfect score extra words accepted on city", candidateSignals{score: 100, cityMatch: true}, true},
		{"perfect score extra words decided by equal slug", candidateSignals{score: 100, slugCompared: true, slugEqual: true}, true},
		{"perfect score extra words rejected on differing slug despite city", candidateSignals{score: 100, slugCompared: true, cityMatch: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := acceptDeal(tt.signals); got != tt.want {
				t.Fatalf("acceptDeal(%+v) = %t, want %t", tt.signals, got, tt.want)
			}
		})
	}
}

func TestBestDealMatchSlugDecidesPerfectScoreMismatch(t *testing.T) {
	lead := dupcheck.Lead{
		PropertyName: "Oasis",
		Country:      "Spain",
		City:         "Ronda",
		BookingURL:   "https://www.booking.com/hotel/es/oasis-rural.es.html",
	}

	// Same slug: accepted even though the cities differ.
	match := bestDealMatch(lead, "oasis", []searchResult{
		{ID: "1", Properties: map[string]string{
			"dealname":    "Oasis Rural",
			"country":     "ES",
			"city":        "Granada",
			"booking_url": "https://www.booking.com/hotel/es/oasis-rural.html",
		}},
	})
	if match == nil {
		t.Fatal("expected equal booking slug to confirm the match")
	}

	// Different slug: rejected even though the city matches.
	match = bestDealMatch(lead, "oasis", []searchResult{
		{ID: "2", Properties: map[string]string{
			"dealname":    "Oasis Rural",
			"country":     "ES",
			"city":        "Ronda",
			"booking_url": "https://www.booking.com/hotel/es/oasis-spa-resort.html",
		}},
	})
	if match != nil {
		t.Fatalf("expected differing booking slug to reject, got %+v", match)
	}
}

func TestBestDealMatchPicksHighestAcceptedScore(t *testing.T) {
	lead := dupcheck.Lead{PropertyName: "Casa Verde", Country: "Italy", City: "Positano"}

	candidates := []searchResult{
		{ID: "1", Properties: map[string]string{"dealname": "Casa Verde al Mare", "country": "IT", "city": "Positano"}},
		{ID: "2", Properties: map[string]string{"dealname": "Casa Verde", "country": "IT", "city": "Positano"}},
		{ID: "3", Properties: map[string]string{"dealname": "Pensjonat Bursztyn", "country": "PL", "city": "Sopot"}},
	}

	match := bestDealMatch(lead, "casa verde", candidates)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != "1" && match.ID != "2" {
		t.Fatalf("expected a casa verde deal, got %q", match.ID)
	}
	if match.Score < strongNameScore {
		t.Fatalf("expected strong score, got %d", match.Score)
	}
	if !match.LocationMatch {
		t.Fatal("expected location to match")
	}
}

func TestBestDealMatchRejectsSupersetNameWithoutLocation(t *testing.T) {
	lead := dupcheck.Lead{PropertyName: "Oasis", Country: "Spain", City: "Ronda"}

	candidates := []searchResult{
		{ID: "1", Properties: map[string]string{"dealname": "Oasis Rural", "country": "ES", "city": "Granada"}},
	}

	if match := bestDealMatch(lead, "oasis", candidates); match != nil {
		t.Fatalf("expected superset name in another city to be rejected, got %+v", match)
	}
}

func TestBestDealMatchNoCandidates(t *testing.T) {
	lead := dupcheck.Lead{PropertyName: "Casa Verde"}
	if match := bestDealMatch(lead, "casa verde", nil); match != nil {
		t.Fatalf("expected nil, got %+v", match)
	}
	if match := bestDealMatch(lead, "casa verde", []searchResult{{ID: "1", Properties: map[string]string{}}}); match != nil {
		t.Fatalf("expected nil for candidate without a name, got %+v", match)
	}
}
