// Command duplicate-check-csv runs the duplicate cascade over leads from a
// CSV file instead of the lead datastore. It is an ad-hoc verification tool:
// the verdicts go to an output CSV, and a random sample of unmatched rows is
// printed for manual spot checks.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadcheck_backend/internal/airtable"
	"leadcheck_backend/internal/dupcheck"
	"leadcheck_backend/internal/hubspot"
	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/config"
	"leadcheck_backend/platform/logger"
	"leadcheck_backend/platform/throttle"

	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		inputPath  = flag.String("input", "", "input CSV with lead rows (required)")
		outputPath = flag.String("output", "duplicate-check-results.csv", "output CSV for verdicts")
		limit      = flag.Int("limit", 0, "stop after this many rows (0 = all)")
		sample     = flag.Int("sample", 10, "number of unmatched rows to print for manual review")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: duplicate-check-csv -input leads.csv [-output out.csv] [-limit n] [-sample n]")
		return apperr.ExitFatal
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return apperr.ExitFatal
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crmCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("crm", cfg.GetCRMAPILimit(), 10*time.Second),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)
	searchCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("crm_search", cfg.GetSearchAPILimit(), time.Second),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)
	recordCaller := throttle.NewCaller(
		throttle.NewWindowLimiter("record_store", cfg.GetSearchAPILimit(), time.Second),
		cfg.GetMaxRetries(), cfg.GetRateLimitPause(), log,
	)

	crm := hubspot.NewClient(cfg, crmCaller, searchCaller, log)

	var records dupcheck.PropertyFinder
	if cfg.IsAirtableEnabled() {
		records = airtable.NewClient(cfg, recordCaller, log)
	}

	checker := dupcheck.NewChecker(crm, crm, records, log)

	leads, err := readLeads(*inputPath, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read input:", err)
		return apperr.ExitFatal
	}
	log.Info("csv_loaded", "rows", len(leads))

	out, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create output:", err)
		return apperr.ExitFatal
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	defer writer.Flush()

	header := []string{"property_name", "email", "country", "city", "duplicate", "decision", "match_name", "score", "error"}
	if err := writer.Write(header); err != nil {
		fmt.Fprintln(os.Stderr, "write output:", err)
		return apperr.ExitFatal
	}

	var unmatched []dupcheck.Lead
	failed := 0

	for i, lead := range leads {
		if ctx.Err() != nil {
			break
		}

		result := checker.Check(ctx, lead)
		if result.Err != nil {
			failed++
		}
		if result.Err == nil && !result.IsDuplicate() && !result.DomainBlocked {
			unmatched = append(unmatched, lead)
		}

		if err := writer.Write(resultRow(lead, result)); err != nil {
			fmt.Fprintln(os.Stderr, "write output:", err)
			return apperr.ExitFatal
		}

		if (i+1)%cfg.GetLogEvery() == 0 {
			log.Info("csv_progress", "processed", i+1, "of", len(leads))
		}
	}

	printSample(unmatched, *sample)
	log.Info("csv_done", "rows", len(leads), "unmatched", len(unmatched), "failed", failed)

	if failed > 0 {
		return apperr.ExitPartial
	}
	return 0
}

// readLeads parses the input CSV. Column names are matched case-insensitively
// and unknown columns are ignored, so exports straight from the datastore
// work unmodified.
func readLeads(path string, limit int) ([]dupcheck.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["property_name"]; !ok {
		return nil, fmt.Errorf("missing required column property_name")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var leads []dupcheck.Lead
	for _, row := range rows[1:] {
		id, err := uuid.Parse(field(row, "property_uuid"))
		if err != nil {
			id = uuid.New()
		}

		leads = append(leads, dupcheck.Lead{
			PropertyUUID: id,
			Email:        field(row, "email"),
			FirstName:    field(row, "first_name"),
			LastName:     field(row, "last_name"),
			PropertyName: field(row, "property_name"),
			Country:      field(row, "country"),
			City:         field(row, "city"),
			Phone:        field(row, "phone"),
			BookingURL:   field(row, "booking_url"),
		})
		if limit > 0 && len(leads) == limit {
			break
		}
	}

	return leads, nil
}

func resultRow(lead dupcheck.Lead, result dupcheck.Result) []string {
	matchName := ""
	score := ""
	switch {
	case result.Contact != nil:
		matchName = result.Contact.Name
	case result.Deal != nil:
		matchName = result.Deal.Name
		score = fmt.Sprint(result.Deal.Score)
	case result.Record != nil:
		matchName = result.Record.Name
		score = fmt.Sprint(result.Record.Score)
	}

	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	return []string{
		lead.PropertyName,
		lead.Email,
		lead.Country,
		lead.City,
		fmt.Sprint(result.IsDuplicate()),
		result.DecisionReason,
		matchName,
		score,
		errText,
	}
}

func printSample(unmatched []dupcheck.Lead, n int) {
	if n <= 0 || len(unmatched) == 0 {
		return
	}
	if n > len(unmatched) {
		n = len(unmatched)
	}

	picks := rand.Perm(len(unmatched))[:n]
	fmt.Printf("\n%d unmatched rows for manual review:\n", n)
	for _, i := range picks {
		lead := unmatched[i]
		fmt.Printf("  %-40s %-25s %s, %s\n", lead.PropertyName, lead.Email, lead.City, lead.Country)
	}
}
