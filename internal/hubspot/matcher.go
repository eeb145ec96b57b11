package hubspot

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/platform/textnorm"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Match thresholds. Precedence (email > phone > fuzzy name+location) is fixed;
// the thresholds are the tunable policy.
const (
	strongNameScore = 92
	mediumNameScore = 85
	cityMatchScore  = 90
)

// countryCodes maps common spellings to ISO codes so "Poland", "polska" and
// "pl" compare equal.
var countryCodes = map[string]string{
	"pl": "pl", "poland": "pl", "polska": "pl",
	"de": "de", "germany": "de", "deutschland": "de",
	"es": "es", "spain": "es", "espana": "es",
	"hr": "hr", "croatia": "hr", "hrvatska": "hr",
	"it": "it", "italy": "it", "italia": "it",
	"fr": "fr", "france": "fr",
	"at": "at", "austria": "at", "osterreich": "at",
	"ch": "ch", "switzerland": "ch", "schweiz": "ch",
	"nl": "nl", "netherlands": "nl", "nederland": "nl",
	"be": "be", "belgium": "be", "belgique": "be",
	"pt": "pt", "portugal": "pt",
	"cz": "cz", "czech republic": "cz", "czechia": "cz",
	"sk": "sk", "slovakia": "sk",
	"hu": "hu", "hungary": "hu",
	"ro": "ro", "romania": "ro",
	"bg": "bg", "bulgaria": "bg",
	"gr": "gr", "greece": "gr",
	"si": "si", "slovenia": "si",
	"ee": "ee", "estonia": "ee",
	"lv": "lv", "latvia": "lv",
	"lt": "lt", "lithuania": "lt",
}

var levenshtein = metrics.NewLevenshtein()

// ratio is a 0-100 similarity between two already-normalized strings.
func ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return int(math.Round(strutil.Similarity(a, b, levenshtein) * 100))
}

// tokenSortRatio compares the strings with their words sorted, so word order
// does not affect the score.
func tokenSortRatio(a, b string) int {
	return ratio(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the shared-token core against each side's full token
// set, scoring reorderings and partial overlaps high.
func tokenSetRatio(a, b string) int {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var shared, onlyA, onlyB []string
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared = append(shared, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range setB {
		if _, ok := setA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(base, combinedA)
	if s := ratio(base, combinedB); s > best {
		best = s
	}
	if s := ratio(combinedA, combinedB); s > best {
		best = s
	}
	return best
}

// nameScore is the headline similarity between two normalized property names.
func nameScore(a, b string) int {
	set := tokenSetRatio(a, b)
	sorted := tokenSortRatio(a, b)
	if sorted > set {
		return sorted
	}
	return set
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}

func normalizeCountry(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if code, ok := countryCodes[lowered]; ok {
		return code
	}
	return lowered
}

// locationMatch compares lead and deal locations. With a city on both sides,
// country and city must both agree; with only an address on the deal, a city
// substring counts; otherwise the country decides.
func locationMatch(lead dupcheck.Lead, props map[string]string) (bool, string) {
	leadCountry := normalizeCountry(lead.Country)
	dealCountry := normalizeCountry(props["country"])
	leadCity := textnorm.Fold(lead.City)
	dealCity := textnorm.Fold(props["city"])
	dealAddress := textnorm.Fold(props["address"])

	countryMatch := leadCountry != "" && dealCountry != "" && leadCountry == dealCountry

	switch {
	case leadCity != "" && dealCity != "":
		cityMatch := ratio(leadCity, dealCity) >= cityMatchScore
		return countryMatch && cityMatch, fmt.Sprintf("country:%t, city:%t", countryMatch, cityMatch)
	case leadCity != "" && dealAddress != "":
		cityMatch := strings.Contains(dealAddress, leadCity)
		return cityMatch, fmt.Sprintf("city_in_address:%t", cityMatch)
	default:
		return countryMatch, fmt.Sprintf("country:%t", countryMatch)
	}
}

// bookingSlugPattern pulls the property slug out of a booking.com hotel URL,
// e.g. "casa-verde" from booking.com/hotel/it/casa-verde.it.html.
var bookingSlugPattern = regexp.MustCompile(`booking\.com/hotel/[^/]+/([^.?/]+)`)

func bookingSlug(raw string) string {
	m := bookingSlugPattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return ""
	}
	return m[1]
}

// candidateSignals collects everything the acceptance rules look at for one
// candidate deal.
type candidateSignals struct {
	score         int
	location      bool
	sameWordCount bool
	slugCompared  bool // both sides had a parseable booking.com slug
	slugEqual     bool
	cityMatch     bool // both cities present and similar, country ignored
}

// bestDealMatch scores every candidate deal against the lead and returns the
// best one clearing the acceptance rules, or nil.
func bestDealMatch(lead dupcheck.Lead, normalizedName string, candidates []searchResult) *dupcheck.DealMatch {
	leadWordCount := len(strings.Fields(normalizedName))
	leadSlug := bookingSlug(lead.BookingURL)
	leadCity := textnorm.Fold(lead.City)

	var best *dupcheck.DealMatch
	for _, deal := range candidates {
		dealName := deal.Properties["dealname"]
		if dealName == "" {
			continue
		}

		normalizedDeal := textnorm.Name(dealName)
		location, locationDetails := locationMatch(lead, deal.Properties)
		dealSlug := bookingSlug(deal.Properties["booking_url"])
		dealCity := textnorm.Fold(deal.Properties["city"])

		signals := candidateSignals{
			score:         nameScore(normalizedName, normalizedDeal),
			location:      location,
			sameWordCount: leadWordCount == len(strings.Fields(normalizedDeal)),
			slugCompared:  leadSlug != "" && dealSlug != "",
			slugEqual:     leadSlug != "" && leadSlug == dealSlug,
			cityMatch:     leadCity != "" && dealCity != "" && ratio(leadCity, dealCity) >= cityMatchScore,
		}

		if !acceptDeal(signals) {
			continue
		}

		if best == nil || signals.score > best.Score {
			detail := locationDetails
			if signals.slugCompared {
				detail = fmt.Sprintf("%s, slug:%t", detail, signals.slugEqual)
			}
			best = &dupcheck.DealMatch{
				ID:            deal.ID,
				Name:          dealName,
				Stage:         deal.Properties["dealstage"],
				Score:         signals.score,
				LocationMatch: location,
				Signals:       fmt.Sprintf("name_fuzzy_%d; %s", signals.score, detail),
			}
		}
	}

	return best
}

// acceptDeal applies the acceptance policy. A perfect name score with a word
// count mismatch needs confirmation, otherwise "Oasis" would swallow
// "Oasis Rural": a booking.com slug on both sides is the strongest signal and
// decides alone; without comparable slugs the city decides.
func acceptDeal(s candidateSignals) bool {
	if s.score == 100 && !s.sameWordCount {
		if s.slugCompared {
			return s.slugEqual
		}
		return s.cityMatch
	}
	if s.score >= strongNameScore {
		return true
	}
	if s.score >= mediumNameScore && s.location {
		return true
	}
	return false
}
