// Package domainrules filters out leads whose email belongs to an agency,
// booking platform, or property management company rather than a property
// owner. Blocked leads skip the remote duplicate checks entirely.
package domainrules

import (
	"strings"

	"leadcheck_backend/platform/textnorm"
)

// blockedDomains are exact domain matches.
var blockedDomains = map[string]struct{}{
	// Property management companies
	"holidu.com":            {},
	"awaze.com":             {},
	"belvilla.com":          {},
	"bestfewo.de":           {},
	"e-domizil.de":          {},
	"secra.de":              {},
	"homerti.com":           {},
	"landfolk.com":          {},
	"placeyourplace.es":     {},
	"staymoovers.com":       {},
	"gastgeberservice.com":  {},
	"villaforyou.com":       {},
	"die-fewoagentur.de":    {},
	"travanto.de":           {},
	"dancenter.com":         {},
	"strandperlen.de":       {},
	"v-office.com":          {},
	"interhome.group":       {},
	"interhome.com":         {},
	"novasol.com":           {},
	"novasol.dk":            {},
	"guestready.com":        {},
	"homerez.com":           {},
	"helloguest.com":        {},
	"helloguest.co.uk":      {},
	"plumguide.com":         {},
	"sykescottages.co.uk":   {},
	"sykescottages.com":     {},
	"lomarengas.com":        {},
	"esmark.com":            {},
	"italianway.com":        {},
	"bungalownet.com":       {},
	"altido.com":            {},
	"happyholidayhomes.com": {},
	"cityrelay.com":         {},
	"hostnfly.com":          {},
	"houst.com":             {},
	"onefinestay.com":       {},
	"halldis.com":           {},
	"friendlyrentals.com":   {},
	"travelopo.com":         {},
	"passthekeys.com":       {},
	"nestify.com":           {},
	"vacasa.com":            {},
	"hostmaker.com":         {},
	"ruralidays.com":        {},
	"bnblord.com":           {},
	"adriagate.com":         {},
	"adriatic.hr":           {},
	"apartments.hr":         {},
	"rentistra.com":         {},
	"rentistria.com":        {},
	"stayfritz.com":         {},
	"go-to-travel.hr":       {},
	"hostelier.eu":          {},

	// Booking platforms and OTAs
	"booking.com":           {},
	"booking.de":            {},
	"booking.fr":            {},
	"booking.it":            {},
	"booking.es":            {},
	"booking.pl":            {},
	"booking.hr":            {},
	"airbnb.com":            {},
	"airbnb.de":             {},
	"airbnb.fr":             {},
	"airbnb.it":             {},
	"airbnb.es":             {},
	"airbnb.pl":             {},
	"airbnb.co.uk":          {},
	"expedia.com":           {},
	"expedia.de":            {},
	"expedia.it":            {},
	"expedia.co.uk":         {},
	"tripadvisor.com":       {},
	"tripadvisor.de":        {},
	"tripadvisor.it":        {},
	"tripadvisor.fr":        {},
	"tripadvisor.es":        {},
	"tripadvisor.co.uk":     {},
	"vrbo.com":              {},
	"vrbo.it":               {},
	"homeaway.com":          {},
	"homeaway.co.uk":        {},
	"homeaway.de":           {},
	"homeaway.fr":           {},
	"homeaway.es":           {},
	"homeaway.it":           {},
	"agoda.com":             {},
	"hotels.com":            {},
	"hotels.de":             {},
	"hotels.it":             {},
	"trivago.com":           {},
	"trivago.de":            {},
	"trivago.it":            {},
	"trivago.co.uk":         {},
	"hometogo.com":          {},
	"hometogo.de":           {},
	"hometogo.it":           {},
	"hometogo.co.uk":        {},
	"hometogo.fr":           {},
	"hometogo.es":           {},
	"hometogo.pl":           {},
	"hometogo.hr":           {},
	"rentalsunited.com":     {},
	"kayak.com":             {},
	"skyscanner.com":        {},
	"momondo.com":           {},
	"9flats.com":            {},
	"wimdu.com":             {},
	"flipkey.com":           {},
	"holidaylettings.co.uk": {},
	"ownersdirect.co.uk":    {},

	// Travel agencies and tour operators
	"tui.com":         {},
	"tui.de":          {},
	"tui.co.uk":       {},
	"tui.it":          {},
	"tui.es":          {},
	"thomascook.com":  {},
	"lastminute.com":  {},
	"opodo.com":       {},
	"edreams.com":     {},
	"sail-croatia.com": {},

	// Tourist boards and visitor bureaus
	"croatia.hr":       {},
	"italia.it":        {},
	"istria.hr":        {},
	"visit-istria.com": {},
	"infozagreb.hr":    {},
	"tzdubrovnik.hr":   {},
	"visitsplit.com":   {},
	"warsawtour.pl":    {},
	"krakow.travel":    {},
	"visitgdansk.com":  {},
	"poland.travel":    {},
	"esmadrid.com":     {},
	"spain.info":       {},
	"visitberlin.de":   {},
	"germany.travel":   {},

	// Real estate portals
	"casa.it":        {},
	"immobiliare.it": {},
	"idealista.it":   {},
}

// blockedDomainPatterns match if the domain contains the pattern. Mostly typo
// domains and platform-forwarding addresses.
var blockedDomainPatterns = []string{
	"gmail.pl",
	"gimail.com",
	"hmail.com",
	"gmai.com",
	"booking.com@holidu",
	"novasol.booking",
}

// blockedEmailPatterns match against the full address.
var blockedEmailPatterns = []string{
	"novasol.booking.com@awaze.com",
	"cs.bookingcom@holidu.com",
	"lhs-booking@holidu.com",
	"bookingservice@secra.de",
	"partnerprogramm@e-domizil.de",
	"service.fh@belvilla.com",
	"booking.com@bestfewo.de",
	"n/a",
}

// Blocked reports whether the email should be excluded from outreach and, if
// so, the rule that matched.
func Blocked(email string) (bool, string) {
	if email == "" {
		return false, ""
	}

	lowered := strings.ToLower(strings.TrimSpace(email))

	// Placeholder values exported from upstream tooling.
	if lowered == "n/a" || lowered == "na" {
		return true, "blocked_email_pattern:n/a"
	}

	domain := textnorm.EmailDomain(lowered)
	if domain != "" {
		if _, ok := blockedDomains[domain]; ok {
			return true, "blocked_domain:" + domain
		}

		for _, pattern := range blockedDomainPatterns {
			if strings.Contains(domain, pattern) {
				return true, "blocked_pattern:" + pattern
			}
		}
	}

	for _, pattern := range blockedEmailPatterns {
		if strings.Contains(lowered, pattern) {
			return true, "blocked_email_pattern:" + pattern
		}
	}

	return false, ""
}

// RuleCount returns the number of active blocking rules, for startup logging.
func RuleCount() int {
	return len(blockedDomains) + len(blockedDomainPatterns) + len(blockedEmailPatterns)
}
