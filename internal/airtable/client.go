// Package airtable provides the tabular record store client used as the
// fallback duplicate source when the CRM has no match.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/config"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/textnorm"
	"leadcheck_backend/platform/throttle"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	maxRecords         = 100
	recordMatchScore   = 90
	defaultHTTPTimeout = 30 * time.Second
)

// Record store field names.
const (
	fieldPropertyName = "Property Name"
	fieldCountry      = "Property Country"
	fieldHostEmail    = "Host Email (from Host)"
	fieldProvince     = "Province"
)

var levenshtein = metrics.NewLevenshtein()

// Client lists records from one table of the record store and fuzzy-matches
// them against a lead's property name. A missing token disables the client;
// disabled lookups succeed with no match so the pipeline degrades instead of
// failing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	baseID     string
	tableID    string
	enabled    bool
	caller     *throttle.Caller
	log        *logger.Logger
}

// NewClient creates a new record store client.
func NewClient(cfg config.TabularConfig, caller *throttle.Caller, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimSuffix(cfg.GetAirtableBaseURL(), "/"),
		token:      cfg.GetAirtableToken(),
		baseID:     cfg.GetAirtableBaseID(),
		tableID:    cfg.GetAirtableTableID(),
		enabled:    cfg.IsAirtableEnabled(),
		caller:     caller,
		log:        log,
	}
}

type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

// FindProperty searches the record store for the lead's property by fuzzy
// name match. A name hit additionally needs a country agreement when both
// sides carry one. Returns nil when nothing clears the threshold.
func (c *Client) FindProperty(ctx context.Context, lead dupcheck.Lead) (*dupcheck.RecordMatch, error) {
	if !c.enabled {
		return nil, nil
	}

	leadName := textnorm.Name(lead.PropertyName)
	if leadName == "" {
		return nil, nil
	}

	records, err := c.listRecords(ctx, lead.PropertyName)
	if err != nil {
		return nil, err
	}

	leadCountry := textnorm.Fold(lead.Country)

	var best *dupcheck.RecordMatch
	for _, rec := range records {
		recName := fieldString(rec.Fields, fieldPropertyName)
		if recName == "" {
			continue
		}

		score := nameScore(leadName, textnorm.Name(recName))
		if score < recordMatchScore {
			continue
		}

		recCountry := textnorm.Fold(fieldString(rec.Fields, fieldCountry))
		if leadCountry != "" && recCountry != "" && leadCountry != recCountry {
			continue
		}

		if best == nil || score > best.Score {
			best = &dupcheck.RecordMatch{
				ID:      rec.ID,
				Name:    recName,
				Country: recCountry,
				Score:   score,
			}
		}
	}

	return best, nil
}

// listRecords fetches candidate rows, pre-filtered server-side on the first
// word of the property name to keep the page small.
func (c *Client) listRecords(ctx context.Context, propertyName string) ([]record, error) {
	query := url.Values{}
	query.Set("maxRecords", fmt.Sprint(maxRecords))
	query.Add("fields[]", fieldPropertyName)
	query.Add("fields[]", fieldCountry)
	query.Add("fields[]", fieldHostEmail)
	query.Add("fields[]", fieldProvince)
	if tokens := textnorm.Tokens(propertyName); len(tokens) > 0 {
		query.Set("filterByFormula", fmt.Sprintf(`SEARCH(%q, LOWER({%s}))`, tokens[0], fieldPropertyName))
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s?%s", c.baseURL, c.baseID, c.tableID, query.Encode())

	var result listResponse
	err := c.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Error("record store request failed", "error", err)
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&result)
		case http.StatusTooManyRequests:
			return &throttle.RetryAfterError{}
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.CheckFailed("unauthorized: invalid record store token").WithOp("airtable.listRecords")
		case http.StatusNotFound:
			return apperr.CheckFailed("record store base or table not found").WithOp("airtable.listRecords")
		default:
			c.log.Error("record store upstream error", "status", resp.StatusCode)
			return fmt.Errorf("record store status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}

	return result.Records, nil
}

// fieldString reads a field that the record store may return as a string or
// as a list of strings (lookup fields).
func fieldString(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func nameScore(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return int(math.Round(strutil.Similarity(a, b, levenshtein) * 100))
}
