// Package hubspot provides the HTTP client and match cascade for the CRM.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/config"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/textnorm"
	"leadcheck_backend/platform/throttle"
)

const (
	contactsSearchPath = "/crm/v3/objects/contacts/search"
	dealsSearchPath    = "/crm/v3/objects/deals/search"
	dealSearchLimit    = 20
	defaultHTTPTimeout = 30 * time.Second
)

// Client talks to the CRM search endpoints. Contact lookups go through the
// general CRM limiter; free-text deal searches go through the stricter search
// limiter, mirroring the upstream's separate quotas.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	crmCaller    *throttle.Caller
	searchCaller *throttle.Caller
	log          *logger.Logger
}

// NewClient creates a new CRM client.
func NewClient(cfg config.CRMConfig, crmCaller, searchCaller *throttle.Caller, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:      strings.TrimSuffix(cfg.GetHubSpotBaseURL(), "/"),
		token:        cfg.GetHubSpotToken(),
		crmCaller:    crmCaller,
		searchCaller: searchCaller,
		log:          log,
	}
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups,omitempty"`
	Query        string              `json:"query,omitempty"`
	Limit        int                 `json:"limit,omitempty"`
	Properties   []string            `json:"properties"`
}

type searchResult struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchResponse struct {
	Total   int            `json:"total"`
	Results []searchResult `json:"results"`
}

// SearchContact looks up an existing contact by exact email first, then by
// phone against both the phone and mobilephone properties. The first hit wins.
// A lead with neither email nor phone skips the contact stage without error.
func (c *Client) SearchContact(ctx context.Context, email, phone string) (*dupcheck.ContactMatch, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email != "" {
		payload := searchRequest{
			FilterGroups: []searchFilterGroup{
				{Filters: []searchFilter{{PropertyName: "email", Operator: "EQ", Value: email}}},
			},
			Properties: []string{"email", "firstname", "lastname", "phone", "mobilephone"},
		}

		match, err := c.contactSearch(ctx, payload, "email_exact")
		if err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	if phone = strings.TrimSpace(phone); phone != "" {
		payload := searchRequest{
			FilterGroups: []searchFilterGroup{
				{Filters: []searchFilter{{PropertyName: "phone", Operator: "EQ", Value: phone}}},
				{Filters: []searchFilter{{PropertyName: "mobilephone", Operator: "EQ", Value: phone}}},
			},
			Properties: []string{"email", "firstname", "lastname", "phone", "mobilephone"},
		}

		match, err := c.contactSearch(ctx, payload, "phone_exact")
		if err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	return nil, nil
}

func (c *Client) contactSearch(ctx context.Context, payload searchRequest, matchedBy string) (*dupcheck.ContactMatch, error) {
	resp, err := c.search(ctx, c.crmCaller, contactsSearchPath, payload)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	contact := resp.Results[0]
	name := strings.TrimSpace(contact.Properties["firstname"] + " " + contact.Properties["lastname"])
	contactPhone := contact.Properties["phone"]
	if contactPhone == "" {
		contactPhone = contact.Properties["mobilephone"]
	}

	return &dupcheck.ContactMatch{
		ID:        contact.ID,
		Name:      name,
		Email:     contact.Properties["email"],
		Phone:     contactPhone,
		MatchedBy: matchedBy,
	}, nil
}

// SearchDeals runs a free-text deal search with the lead's normalized property
// name and scores candidates with the fuzzy-match cascade. Returns the best
// accepted match, or nil when nothing clears the acceptance rules.
func (c *Client) SearchDeals(ctx context.Context, lead dupcheck.Lead) (*dupcheck.DealMatch, error) {
	normalized := textnorm.Name(lead.PropertyName)
	if normalized == "" {
		return nil, nil
	}

	tokens := strings.Fields(normalized)
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}

	payload := searchRequest{
		Query:      strings.Join(tokens, " "),
		Limit:      dealSearchLimit,
		Properties: []string{"dealname", "dealstage", "country", "city", "address", "booking_url"},
	}

	resp, err := c.search(ctx, c.searchCaller, dealsSearchPath, payload)
	if err != nil {
		return nil, err
	}

	return bestDealMatch(lead, normalized, resp.Results), nil
}

func (c *Client) search(ctx context.Context, caller *throttle.Caller, path string, payload searchRequest) (searchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return searchResponse{}, fmt.Errorf("marshal search payload: %w", err)
	}

	var result searchResponse
	err = caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Error("crm request failed", "path", path, "error", err)
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&result)
		case http.StatusTooManyRequests:
			return &throttle.RetryAfterError{Delay: retryAfter(resp)}
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.CheckFailed("unauthorized: invalid CRM token").WithOp("hubspot.search")
		case http.StatusBadRequest:
			return apperr.CheckFailed("bad request: invalid search payload").WithOp("hubspot.search")
		default:
			c.log.Error("crm upstream error", "path", path, "status", resp.StatusCode)
			return fmt.Errorf("crm status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return searchResponse{}, err
	}

	return result, nil
}

func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
