// Package dupcheck implements the duplicate-check pipeline: matching leads
// against the CRM and the property record store, and orchestrating batch runs.
package dupcheck

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Lead is one record awaiting duplicate verification. Leads are owned by the
// external lead datastore; this job only reads them and writes back outcomes.
type Lead struct {
	PropertyUUID   uuid.UUID  `json:"property_uuid"`
	HostUUID       *uuid.UUID `json:"host_uuid"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	PropertyName   string     `json:"property_name"`
	Country        string     `json:"country"`
	City           string     `json:"city"`
	Phone          string     `json:"phone"`
	BookingURL     string     `json:"booking_url"`
	ComputedScore  *float64   `json:"computed_score"`
	SkipProcessing *bool      `json:"skip_processing"`
}

// FullName joins the lead's first and last name.
func (l Lead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// ContactMatch is a CRM contact found for a lead.
type ContactMatch struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	MatchedBy string // "email_exact" or "phone_exact"
}

// DealMatch is a CRM deal accepted by the fuzzy-match cascade.
type DealMatch struct {
	ID            string
	Name          string
	Stage         string
	Score         int
	LocationMatch bool
	Signals       string
}

// RecordMatch is a row in the property record store matching the lead's
// property of interest.
type RecordMatch struct {
	ID      string
	Name    string
	Country string
	Score   int
}

// Result is the outcome of one lead's duplicate check. It is computed fresh
// each run and attached to the lead in the datastore, never cached.
type Result struct {
	Contact *ContactMatch
	Deal    *DealMatch
	Record  *RecordMatch

	AlreadyInPipeline bool
	ExistsOnAlohaCamp bool
	DomainBlocked     bool
	BlockReason       string
	DecisionReason    string

	// Err is set when a check stage failed after retries; the lead is then
	// recorded as errored instead of processed.
	Err error
}

// IsDuplicate reports whether any system already knows this lead.
func (r Result) IsDuplicate() bool {
	return r.AlreadyInPipeline || r.ExistsOnAlohaCamp
}

// ContactSearcher finds an existing CRM contact by the lead's identifying fields.
type ContactSearcher interface {
	SearchContact(ctx context.Context, email, phone string) (*ContactMatch, error)
}

// DealSearcher finds an existing CRM deal matching the lead's property.
type DealSearcher interface {
	SearchDeals(ctx context.Context, lead Lead) (*DealMatch, error)
}

// PropertyFinder finds the lead's property of interest in the record store.
type PropertyFinder interface {
	FindProperty(ctx context.Context, lead Lead) (*RecordMatch, error)
}

// LeadSource provides pages of unprocessed leads.
type LeadSource interface {
	CountUnprocessed(ctx context.Context) (int, error)
	FetchUnprocessed(ctx context.Context, limit, offset int) ([]Lead, error)
}

// ResultWriter persists a lead's outcome back to the datastore.
type ResultWriter interface {
	WriteResult(ctx context.Context, lead Lead, result Result) error
	RecordFailure(ctx context.Context, lead Lead, stage string, cause error) error
}
