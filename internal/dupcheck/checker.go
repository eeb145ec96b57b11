package dupcheck

import (
	"context"
	"fmt"

	"leadcheck_backend/internal/domainrules"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/phone"
)

// Checker runs the duplicate-check cascade for one lead: domain rules first,
// then CRM contact, then CRM deal, then the record store fallback. Each lead
// is checked fresh; nothing is cached between runs.
type Checker struct {
	contacts ContactSearcher
	deals    DealSearcher
	records  PropertyFinder
	log      *logger.Logger
}

// NewChecker creates a checker. records may be nil when the record store is
// not configured; the fallback stage is then skipped.
func NewChecker(contacts ContactSearcher, deals DealSearcher, records PropertyFinder, log *logger.Logger) *Checker {
	return &Checker{
		contacts: contacts,
		deals:    deals,
		records:  records,
		log:      log,
	}
}

// Check computes the duplicate verdict for one lead. A blocked domain decides
// the lead without any remote call. Remote stage failures land in Result.Err
// and never panic the run; whatever was found before the failure is kept.
func (c *Checker) Check(ctx context.Context, lead Lead) Result {
	var result Result

	if blocked, reason := domainrules.Blocked(lead.Email); blocked {
		result.DomainBlocked = true
		result.BlockReason = reason
		result.DecisionReason = "domain_blocked"
		c.log.DuplicateFound(lead.PropertyUUID.String(), result.DecisionReason)
		return result
	}

	contact, err := c.contacts.SearchContact(ctx, lead.Email, phone.NormalizeE164(lead.Phone))
	if err != nil {
		result.Err = fmt.Errorf("contact search: %w", err)
		return result
	}
	if contact != nil {
		result.Contact = contact
		result.AlreadyInPipeline = true
		result.DecisionReason = "contact_" + contact.MatchedBy
		c.log.DuplicateFound(lead.PropertyUUID.String(), result.DecisionReason)
		return result
	}

	deal, err := c.deals.SearchDeals(ctx, lead)
	if err != nil {
		result.Err = fmt.Errorf("deal search: %w", err)
		return result
	}
	if deal != nil {
		result.Deal = deal
		result.AlreadyInPipeline = true
		result.DecisionReason = fmt.Sprintf("deal_score_%d", deal.Score)
		c.log.DuplicateFound(lead.PropertyUUID.String(), result.DecisionReason)
		return result
	}

	if c.records != nil {
		record, err := c.records.FindProperty(ctx, lead)
		if err != nil {
			result.Err = fmt.Errorf("record lookup: %w", err)
			return result
		}
		if record != nil {
			result.Record = record
			result.ExistsOnAlohaCamp = true
			result.DecisionReason = "aloha_exists"
			c.log.DuplicateFound(lead.PropertyUUID.String(), result.DecisionReason)
			return result
		}
	}

	result.DecisionReason = "no_match"
	return result
}
