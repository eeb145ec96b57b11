package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/throttle"
)

type crmConfigStub struct {
	baseURL string
}

func (s crmConfigStub) GetHubSpotToken() string   { return "test-token" }
func (s crmConfigStub) GetHubSpotBaseURL() string { return s.baseURL }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.New("development")
	caller := throttle.NewCaller(throttle.NewWindowLimiter("test", 1000, time.Second), 2, time.Millisecond, log)
	client := NewClient(crmConfigStub{baseURL: server.URL}, caller, caller, log)
	return client, server
}

func searchResultsBody(results ...searchResult) []byte {
	body, _ := json.Marshal(searchResponse{Total: len(results), Results: results})
	return body
}

func TestSearchContactMatchesByEmailFirst(t *testing.T) {
	var requests []searchRequest

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != contactsSearchPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests = append(requests, req)

		w.Write(searchResultsBody(searchResult{
			ID: "301",
			Properties: map[string]string{
				"email":     "maria@example.com",
				"firstname": "Maria",
				"lastname":  "Rossi",
				"phone":     "+393331234567",
			},
		}))
	}))

	match, err := client.SearchContact(context.Background(), "Maria@Example.com", "+393331234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.MatchedBy != "email_exact" {
		t.Fatalf("expected email_exact, got %q", match.MatchedBy)
	}
	if match.ID != "301" || match.Name != "Maria Rossi" {
		t.Fatalf("unexpected match %+v", match)
	}

	if len(requests) != 1 {
		t.Fatalf("expected a single request, got %d", len(requests))
	}
	filter := requests[0].FilterGroups[0].Filters[0]
	if filter.PropertyName != "email" || filter.Value != "maria@example.com" {
		t.Fatalf("expected lowercased email filter, got %+v", filter)
	}
}

func TestSearchContactFallsBackToPhone(t *testing.T) {
	calls := 0

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)

		// First call filters on email and finds nothing.
		if calls == 1 {
			if req.FilterGroups[0].Filters[0].PropertyName != "email" {
				t.Fatalf("expected email filter first, got %+v", req.FilterGroups)
			}
			w.Write(searchResultsBody())
			return
		}

		// Second call must OR the phone and mobilephone properties.
		if len(req.FilterGroups) != 2 {
			t.Fatalf("expected two filter groups for phone search, got %d", len(req.FilterGroups))
		}
		w.Write(searchResultsBody(searchResult{
			ID:         "88",
			Properties: map[string]string{"mobilephone": "+48501502503"},
		}))
	}))

	match, err := client.SearchContact(context.Background(), "host@example.com", "+48501502503")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil || match.MatchedBy != "phone_exact" {
		t.Fatalf("expected phone_exact match, got %+v", match)
	}
	if match.Phone != "+48501502503" {
		t.Fatalf("expected mobilephone to back-fill phone, got %q", match.Phone)
	}
	if calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
}

func TestSearchContactSkipsMissingIdentifiers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty identifiers")
	}))

	match, err := client.SearchContact(context.Background(), "", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match, got %+v", match)
	}
}

func TestSearchRetriesAfterThrottleResponse(t *testing.T) {
	calls := 0

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(searchResultsBody(searchResult{ID: "1", Properties: map[string]string{"email": "a@b.com"}}))
	}))

	match, err := client.SearchContact(context.Background(), "a@b.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected match after retry")
	}
	if calls != 2 {
		t.Fatalf("expected retry, got %d calls", calls)
	}
}

func TestSearchPersistentThrottleExhaustsBudget(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.SearchContact(context.Background(), "a@b.com", "")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if apperr.GetKind(err) != apperr.KindRateLimited {
		t.Fatalf("expected KindRateLimited, got %v", err)
	}
}

func TestSearchUnauthorizedIsNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.SearchContact(context.Background(), "a@b.com", "")
	if apperr.GetKind(err) != apperr.KindCheckFailed {
		t.Fatalf("expected KindCheckFailed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries, got %d calls", calls)
	}
}

func TestSearchDealsQueriesFirstThreeTokensAndScores(t *testing.T) {
	var received searchRequest

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dealsSearchPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)

		w.Write(searchResultsBody(
			searchResult{ID: "d1", Properties: map[string]string{
				"dealname": "Apartament Zlota Plaza Gdansk",
				"country":  "PL", "city": "Gdansk", "dealstage": "qualified",
			}},
			searchResult{ID: "d2", Properties: map[string]string{
				"dealname": "Hotel Bergblick", "country": "AT", "city": "Innsbruck",
			}},
		))
	}))

	lead := dupcheck.Lead{
		PropertyName: "Apartament Złota Plaża Gdańsk nad Morzem",
		Country:      "Poland",
		City:         "Gdańsk",
	}

	match, err := client.SearchDeals(context.Background(), lead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a deal match")
	}
	if match.ID != "d1" || match.Stage != "qualified" {
		t.Fatalf("unexpected match %+v", match)
	}
	if !match.LocationMatch {
		t.Fatal("expected location match")
	}

	if received.Query != "apartament zlota plaza" {
		t.Fatalf("expected first three normalized tokens as query, got %q", received.Query)
	}
	if received.Limit != dealSearchLimit {
		t.Fatalf("expected limit %d, got %d", dealSearchLimit, received.Limit)
	}
}

func TestSearchDealsSkipsLeadWithoutPropertyName(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a property name")
	}))

	match, err := client.SearchDeals(context.Background(), dupcheck.Lead{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected nil match, got %+v", match)
	}
}
