/*
Package tempo implements the time ledger against a Tempo-compatible REST API
(v4).

PURPOSE:
  One concrete worklog.TimeLedger: list a day's entries, create and delete
  entries, submit a period for approval. Entries are attributed to the
  configured account; the directory client resolves that account id from the
  tracker credentials at startup.

DESIGN:
  Durations cross this boundary as whole seconds; dates as "2006-01-02"
  strings; created entries start at a fixed 09:00:00 wall time, which the
  ledger service requires but nothing downstream reads. Failures are
  classified into the worklog error taxonomy before they leave the package.
*/
package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

const serviceName = "ledger"

// DefaultBaseURL is the hosted service endpoint.
const DefaultBaseURL = "https://api.tempo.io/4"

// startTime is the fixed wall time stamped on every created entry.
const startTime = "09:00:00"

// Config carries connection and attribution settings.
type Config struct {
	BaseURL   string // empty means DefaultBaseURL
	APIToken  string // bearer token
	AccountID string // entries are listed for and attributed to this account
	Timeout   time.Duration
}

// Client talks to the ledger service. Implements worklog.TimeLedger.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, &worklog.ValidationError{Field: "apiToken", Message: "required"}
	}
	if cfg.AccountID == "" {
		return nil, &worklog.ValidationError{Field: "accountID", Message: "required"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

type wireWorklog struct {
	TempoWorklogID int64 `json:"tempoWorklogId"`
	Issue          struct {
		Key string `json:"key"`
	} `json:"issue"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	StartDate        string `json:"startDate"`
	Description      string `json:"description"`
}

func (w wireWorklog) toEntry() (worklog.LedgerEntry, error) {
	date, err := schedule.ParseDate(w.StartDate)
	if err != nil {
		return worklog.LedgerEntry{}, err
	}
	return worklog.LedgerEntry{
		ID:          strconv.FormatInt(w.TempoWorklogID, 10),
		ItemKey:     w.Issue.Key,
		Date:        date,
		Duration:    time.Duration(w.TimeSpentSeconds) * time.Second,
		Description: w.Description,
	}, nil
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// ListEntries returns the person's entries for one day. An empty personID
// falls back to the configured account.
func (c *Client) ListEntries(ctx context.Context, personID string, date schedule.Date) ([]worklog.LedgerEntry, error) {
	account := personID
	if account == "" {
		account = c.cfg.AccountID
	}
	query := url.Values{"from": {date.String()}, "to": {date.String()}}
	var out struct {
		Results []wireWorklog `json:"results"`
	}
	path := "/worklogs/user/" + url.PathEscape(account)
	if err := c.call(ctx, "list-entries", http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}

	entries := make([]worklog.LedgerEntry, 0, len(out.Results))
	for _, w := range out.Results {
		entry, err := w.toEntry()
		if err != nil {
			log.Printf("[Ledger] Warning: skipping malformed entry %d: %v", w.TempoWorklogID, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) CreateEntry(ctx context.Context, entry worklog.LedgerEntry) (worklog.LedgerEntry, error) {
	if entry.ItemKey == "" {
		return worklog.LedgerEntry{}, &worklog.ValidationError{Field: "itemKey", Message: "required"}
	}
	if entry.Duration <= 0 || entry.Duration%time.Second != 0 {
		return worklog.LedgerEntry{}, &worklog.ValidationError{Field: "duration", Message: "must be positive whole seconds"}
	}

	payload := map[string]interface{}{
		"issueKey":         entry.ItemKey,
		"timeSpentSeconds": int64(entry.Duration / time.Second),
		"startDate":        entry.Date.String(),
		"startTime":        startTime,
		"authorAccountId":  c.cfg.AccountID,
		"description":      entry.Description,
	}
	var out wireWorklog
	if err := c.call(ctx, "create-entry", http.MethodPost, "/worklogs", nil, payload, &out); err != nil {
		return worklog.LedgerEntry{}, err
	}

	created := entry
	created.ID = strconv.FormatInt(out.TempoWorklogID, 10)
	log.Printf("[Ledger] Created %s: %ds on %s", entry.ItemKey, int64(entry.Duration/time.Second), entry.Date)
	return created, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	if id == "" {
		return &worklog.ValidationError{Field: "id", Message: "required"}
	}
	return c.call(ctx, "delete-entry", http.MethodDelete, "/worklogs/"+url.PathEscape(id), nil, nil, nil)
}

// SubmitPeriod submits a period for approval. The service's own period key
// for the month is looked up first; the passed "2006-01" key is the
// documented fallback when the lookup cannot resolve one.
func (c *Client) SubmitPeriod(ctx context.Context, periodKey string) error {
	key := c.resolvePeriodKey(ctx, periodKey)
	payload := map[string]interface{}{
		"worker": map[string]string{"accountId": c.cfg.AccountID},
		"period": map[string]string{"key": key},
	}
	if err := c.call(ctx, "submit-period", http.MethodPost, "/timesheet-approvals/submit", nil, payload, nil); err != nil {
		return err
	}
	log.Printf("[Ledger] Submitted period %s", key)
	return nil
}

// resolvePeriodKey finds the service period covering the month named by
// fallback ("2006-01"), comparing ISO date strings the way the service
// returns them. Lookup failures keep the fallback.
func (c *Client) resolvePeriodKey(ctx context.Context, fallback string) string {
	var out struct {
		Results []struct {
			Key      string `json:"key"`
			DateFrom string `json:"dateFrom"`
			DateTo   string `json:"dateTo"`
		} `json:"results"`
	}
	if err := c.call(ctx, "list-periods", http.MethodGet, "/timesheet-approvals/periods", nil, nil, &out); err != nil {
		log.Printf("[Ledger] Warning: period lookup failed, using %s: %v", fallback, err)
		return fallback
	}

	probe := fallback + "-15"
	for _, p := range out.Results {
		if p.Key == "" || p.DateFrom == "" || p.DateTo == "" {
			continue
		}
		if p.DateFrom <= probe && probe <= p.DateTo {
			return p.Key
		}
	}
	log.Printf("[Ledger] Warning: no service period covers %s, using fallback key", fallback)
	return fallback
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, payload, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &worklog.ServiceError{Service: serviceName, Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &worklog.ServiceError{Service: serviceName, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if kind := worklog.ClassifyTransportError(err); kind != nil {
			return &worklog.ServiceError{Service: serviceName, Op: op, Err: kind}
		}
		return &worklog.ServiceError{Service: serviceName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := worklog.ClassifyStatus(resp.StatusCode)
		if kind == nil {
			kind = fmt.Errorf("unexpected status")
		}
		return &worklog.ServiceError{Service: serviceName, Op: op, Status: resp.StatusCode, Err: kind}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &worklog.ServiceError{Service: serviceName, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

var _ worklog.TimeLedger = (*Client)(nil)
