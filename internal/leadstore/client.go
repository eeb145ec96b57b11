// Package leadstore provides the REST client for the hosted lead datastore.
// It is the only component that reads leads and the only one that writes
// outcomes back.
package leadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/config"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/throttle"
)

const (
	leadViewPath         = "/rest/v1/lead_pipeline_view"
	duplicateChecksPath  = "/rest/v1/duplicate_checks"
	operationsStatusPath = "/rest/v1/operations_status"
	defaultHTTPTimeout   = 30 * time.Second
)

// Client reads unprocessed leads from the pipeline view and persists
// duplicate-check outcomes. All traffic is plain REST against the datastore's
// hosted endpoint; the service key travels in both the apikey and bearer
// headers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	caller     *throttle.Caller
	log        *logger.Logger
	now        func() time.Time
}

// NewClient creates a new lead datastore client. maxRetries bounds how many
// failed runs a lead survives before it is parked as permanently failed.
func NewClient(cfg config.LeadStoreConfig, maxRetries int, caller *throttle.Caller, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimSuffix(cfg.GetLeadStoreURL(), "/"),
		apiKey:     cfg.GetLeadStoreAPIKey(),
		maxRetries: maxRetries,
		caller:     caller,
		log:        log,
		now:        time.Now,
	}
}

// CountUnprocessed returns how many leads still await a duplicate check.
func (c *Client) CountUnprocessed(ctx context.Context) (int, error) {
	query := unprocessedFilter()
	query.Set("select", "property_uuid")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+leadViewPath+"?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.StoreError("count", err)
		return 0, apperr.Wrap(apperr.KindSourceUnavailable, "lead datastore unreachable", err).WithOp("leadstore.CountUnprocessed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.StoreError("count", fmt.Errorf("status %d", resp.StatusCode))
		return 0, apperr.SourceUnavailable(fmt.Sprintf("lead count failed with status %d", resp.StatusCode)).WithOp("leadstore.CountUnprocessed")
	}

	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// FetchUnprocessed returns up to limit leads from the given offset, ordered by
// computed score descending with unscored leads last. The view cannot filter
// on the skip flag, so twice the page is fetched and flagged leads are
// dropped client-side before trimming.
func (c *Client) FetchUnprocessed(ctx context.Context, limit, offset int) ([]dupcheck.Lead, error) {
	query := unprocessedFilter()
	query.Set("select", "*")
	query.Set("order", "computed_score.desc.nullslast")
	query.Set("limit", strconv.Itoa(limit*2))
	query.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+leadViewPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.StoreError("fetch", err)
		return nil, apperr.Wrap(apperr.KindSourceUnavailable, "lead datastore unreachable", err).WithOp("leadstore.FetchUnprocessed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.StoreError("fetch", fmt.Errorf("status %d", resp.StatusCode))
		return nil, apperr.SourceUnavailable(fmt.Sprintf("lead fetch failed with status %d", resp.StatusCode)).WithOp("leadstore.FetchUnprocessed")
	}

	var rows []dupcheck.Lead
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceUnavailable, "malformed lead page", err).WithOp("leadstore.FetchUnprocessed")
	}

	leads := make([]dupcheck.Lead, 0, limit)
	for _, lead := range rows {
		if lead.SkipProcessing != nil && *lead.SkipProcessing {
			continue
		}
		leads = append(leads, lead)
		if len(leads) == limit {
			break
		}
	}

	return leads, nil
}

type checkRow struct {
	PropertyUUID      string  `json:"property_uuid"`
	AlreadyInPipeline bool    `json:"already_in_pipeline"`
	ExistsOnAlohaCamp bool    `json:"exists_on_alohacamp"`
	DomainRulesCheck  bool    `json:"domain_rules_check"`
	Decision          string  `json:"decision"`
	CheckedAt         string  `json:"checked_at"`
	FetchedAt         *string `json:"fetched_at,omitempty"`
}

type statusRow struct {
	RetryCount        int     `json:"retry_count"`
	LastError         *string `json:"last_error"`
	PermanentlyFailed bool    `json:"permanently_failed"`
}

// WriteResult upserts the lead's duplicate-check row and marks the pipeline
// stage finished. The stage flag is written only after the check row lands so
// a half-written outcome stays visible as unfinished.
func (c *Client) WriteResult(ctx context.Context, lead dupcheck.Lead, result dupcheck.Result) error {
	checkedAt := c.now().UTC().Format(time.RFC3339)
	row := checkRow{
		PropertyUUID:      lead.PropertyUUID.String(),
		AlreadyInPipeline: result.AlreadyInPipeline,
		ExistsOnAlohaCamp: result.ExistsOnAlohaCamp,
		DomainRulesCheck:  !result.DomainBlocked,
		Decision:          result.DecisionReason,
		CheckedAt:         checkedAt,
		FetchedAt:         &checkedAt,
	}

	if err := c.upsertCheck(ctx, row); err != nil {
		return err
	}

	return c.upsertStatus(ctx, lead.PropertyUUID.String(), map[string]any{
		"check_pipeline_finished": true,
		"last_error":              nil,
	})
}

// RecordFailure bumps the lead's retry counter and stores the cause. A lead
// reaching the retry budget is parked as permanently failed and leaves the
// unprocessed pool.
func (c *Client) RecordFailure(ctx context.Context, lead dupcheck.Lead, stage string, cause error) error {
	id := lead.PropertyUUID.String()

	current, err := c.fetchStatus(ctx, id)
	if err != nil {
		return err
	}

	retries := current.RetryCount + 1
	message := fmt.Sprintf("%s: %v", stage, cause)
	patch := map[string]any{
		"retry_count":   retries,
		"last_error":    message,
		"last_error_at": c.now().UTC().Format(time.RFC3339),
	}
	if retries >= c.maxRetries {
		patch["permanently_failed"] = true
	}

	return c.upsertStatus(ctx, id, patch)
}

func (c *Client) upsertCheck(ctx context.Context, row checkRow) error {
	body, err := json.Marshal(row)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("on_conflict", "property_uuid")

	return c.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+duplicateChecksPath+"?"+query.Encode(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		c.setHeaders(req)
		req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

		return c.doWrite(req, "leadstore.upsertCheck")
	})
}

func (c *Client) fetchStatus(ctx context.Context, propertyUUID string) (statusRow, error) {
	query := url.Values{}
	query.Set("property_uuid", "eq."+propertyUUID)
	query.Set("select", "retry_count,last_error,permanently_failed")

	var row statusRow
	err := c.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+operationsStatusPath+"?"+query.Encode(), nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &throttle.RetryAfterError{}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status fetch failed with status %d", resp.StatusCode)
		}

		var rows []statusRow
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			row = rows[0]
		}
		return nil
	})
	if err != nil {
		return statusRow{}, apperr.Wrap(apperr.KindWriteFailed, "operations status read failed", err).WithOp("leadstore.fetchStatus")
	}

	return row, nil
}

// upsertStatus merges fields into the lead's operations row, creating the row
// when the lead has none yet. A plain update would match zero rows for a
// first-time failure and lose the escalation.
func (c *Client) upsertStatus(ctx context.Context, propertyUUID string, fields map[string]any) error {
	row := make(map[string]any, len(fields)+1)
	row["property_uuid"] = propertyUUID
	for key, value := range fields {
		row[key] = value
	}

	body, err := json.Marshal(row)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("on_conflict", "property_uuid")

	return c.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+operationsStatusPath+"?"+query.Encode(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		c.setHeaders(req)
		req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

		return c.doWrite(req, "leadstore.upsertStatus")
	})
}

func (c *Client) doWrite(req *http.Request, op string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.StoreError(op, err)
		return apperr.Wrap(apperr.KindWriteFailed, "lead datastore write failed", err).WithOp(op)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &throttle.RetryAfterError{}
	case resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.StoreError(op, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
		return apperr.WriteFailed(fmt.Sprintf("write failed with status %d", resp.StatusCode)).WithOp(op)
	default:
		return nil
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// unprocessedFilter selects leads that have an email and a property name,
// have not been checked yet, and are not parked as permanently failed.
func unprocessedFilter() url.Values {
	query := url.Values{}
	query.Set("email", "not.is.null")
	query.Set("property_name", "not.is.null")
	query.Set("duplicate_check_completed_at", "is.null")
	query.Set("permanently_failed", "not.is.true")
	return query
}

// parseContentRangeTotal extracts the total from a "0-24/3573" style header.
func parseContentRangeTotal(header string) (int, error) {
	slash := strings.LastIndex(header, "/")
	if slash < 0 || slash == len(header)-1 {
		return 0, apperr.SourceUnavailable("lead count missing from response").WithOp("leadstore.CountUnprocessed")
	}
	total := header[slash+1:]
	if total == "*" {
		return 0, apperr.SourceUnavailable("lead count not reported by datastore").WithOp("leadstore.CountUnprocessed")
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindSourceUnavailable, "malformed lead count", err).WithOp("leadstore.CountUnprocessed")
	}
	return n, nil
}
