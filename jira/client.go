/*
Package jira implements the work-item directory against a Jira-compatible
REST API (v3).

PURPOSE:
  One concrete worklog.WorkItemDirectory: active-item queries by status,
  point-in-time queries via historical JQL (status WAS ... ON ...), item
  detail for description generation and the live overhead-item listing the
  staleness check consumes.

DESIGN:
  The person is pinned by the credentials: queries use currentUser(), so the
  personID argument of the directory interface is accepted and ignored.
  Every failure is classified into the worklog error taxonomy before it
  leaves this package; callers never see raw transport errors.

SEE ALSO:
  - adf.go: plain-text extraction from rich-text document trees
  - worklog/errors.go: the taxonomy this client produces
*/
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

const serviceName = "tracker"

// defaultActiveStatuses qualify an item for regular allocation.
var defaultActiveStatuses = []string{"IN DEVELOPMENT", "CODE REVIEW"}

// Config carries the connection and query settings.
type Config struct {
	BaseURL  string // e.g. "https://example.atlassian.net"
	Email    string
	APIToken string

	// ActiveStatuses qualify items for allocation. Empty means the default
	// development/review pair.
	ActiveStatuses []string

	// OverheadProject is the project whose in-progress items the staleness
	// check compares against. Empty disables ListOverhead.
	OverheadProject string

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// Client talks to the tracker. Implements worklog.WorkItemDirectory and
// worklog.OverheadLister.
type Client struct {
	cfg  Config
	http *http.Client

	accountID string // resolved lazily from /myself
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &worklog.ValidationError{Field: "baseURL", Message: "required"}
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, &worklog.ValidationError{Field: "credentials", Message: "email and api token required"}
	}
	if len(cfg.ActiveStatuses) == 0 {
		cfg.ActiveStatuses = defaultActiveStatuses
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// =============================================================================
// WIRE SHAPES
// =============================================================================

type searchResponse struct {
	Issues []issue `json:"issues"`
}

type issue struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Comment     commentField    `json:"comment"`
	Sprint      json.RawMessage `json:"sprint"`
}

type commentField struct {
	Comments []struct {
		Body json.RawMessage `json:"body"`
	} `json:"comments"`
}

// =============================================================================
// DIRECTORY OPERATIONS
// =============================================================================

// AccountID resolves the credential owner's account identifier, cached after
// the first call. The ledger client needs it to attribute entries.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if c.accountID != "" {
		return c.accountID, nil
	}
	var out struct {
		AccountID string `json:"accountId"`
	}
	if err := c.get(ctx, "myself", "/rest/api/3/myself", nil, &out); err != nil {
		return "", err
	}
	if out.AccountID == "" {
		return "", &worklog.ServiceError{Service: serviceName, Op: "myself", Err: fmt.Errorf("empty account id")}
	}
	c.accountID = out.AccountID
	return c.accountID, nil
}

// ListActive returns the credential owner's items currently in a qualifying
// status.
func (c *Client) ListActive(ctx context.Context, personID string) ([]worklog.WorkItem, error) {
	jql := fmt.Sprintf("assignee = currentUser() AND status IN (%s)", quoteList(c.cfg.ActiveStatuses))
	return c.search(ctx, "search-active", jql, "summary")
}

// ListActiveAsOf returns items that were in a qualifying status on a
// historical date, via status WAS ... ON ... clauses.
func (c *Client) ListActiveAsOf(ctx context.Context, personID string, date schedule.Date) ([]worklog.WorkItem, error) {
	clauses := make([]string, len(c.cfg.ActiveStatuses))
	for i, status := range c.cfg.ActiveStatuses {
		clauses[i] = fmt.Sprintf("status WAS %q ON %q", status, date.String())
	}
	jql := fmt.Sprintf("assignee = currentUser() AND (%s)", strings.Join(clauses, " OR "))
	return c.search(ctx, "search-as-of", jql, "summary")
}

// GetDetail fetches one item's long form: title, rich-text description and
// its last three annotations, oldest first.
func (c *Client) GetDetail(ctx context.Context, itemKey string) (worklog.ItemDetail, error) {
	query := url.Values{"fields": {"summary,description,comment"}}
	var out issue
	if err := c.get(ctx, "get-item", "/rest/api/3/issue/"+itemKey, query, &out); err != nil {
		return worklog.ItemDetail{}, err
	}

	detail := worklog.ItemDetail{
		Title:       out.Fields.Summary,
		Description: extractText(out.Fields.Description),
	}
	comments := out.Fields.Comment.Comments
	if len(comments) > 3 {
		comments = comments[len(comments)-3:]
	}
	for _, comment := range comments {
		if text := extractText(comment.Body); text != "" {
			detail.RecentAnnotations = append(detail.RecentAnnotations, text)
		}
	}
	return detail, nil
}

// ListOverhead returns the overhead project's in-progress items with their
// cycle field filled from the sprint name. Implements worklog.OverheadLister.
func (c *Client) ListOverhead(ctx context.Context) ([]worklog.WorkItem, error) {
	if c.cfg.OverheadProject == "" {
		return nil, nil
	}
	jql := fmt.Sprintf("project = %s AND status = \"In Progress\"", c.cfg.OverheadProject)

	query := url.Values{
		"jql":        {jql},
		"fields":     {"summary,sprint"},
		"maxResults": {"50"},
	}
	var out searchResponse
	if err := c.get(ctx, "search-overhead", "/rest/api/3/search/jql", query, &out); err != nil {
		return nil, err
	}

	items := make([]worklog.WorkItem, 0, len(out.Issues))
	for _, is := range out.Issues {
		items = append(items, worklog.WorkItem{
			Key:   is.Key,
			Title: is.Fields.Summary,
			Cycle: sprintName(is.Fields.Sprint),
		})
	}
	log.Printf("[Tracker] %d live overhead items", len(items))
	return items, nil
}

func (c *Client) search(ctx context.Context, op, jql, fields string) ([]worklog.WorkItem, error) {
	query := url.Values{
		"jql":        {jql},
		"fields":     {fields},
		"maxResults": {"50"},
	}
	var out searchResponse
	if err := c.get(ctx, op, "/rest/api/3/search/jql", query, &out); err != nil {
		return nil, err
	}

	items := make([]worklog.WorkItem, 0, len(out.Issues))
	for _, is := range out.Issues {
		items = append(items, worklog.WorkItem{Key: is.Key, Title: is.Fields.Summary})
	}
	return items, nil
}

// sprintName reads the name from a sprint field that arrives as either a
// single object or a list (last entry wins).
func sprintName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var one struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &one); err == nil && one.Name != "" {
		return one.Name
	}
	var many []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[len(many)-1].Name
	}
	return ""
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &worklog.ServiceError{Service: serviceName, Op: op, Err: err}
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
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

var (
	_ worklog.WorkItemDirectory = (*Client)(nil)
	_ worklog.OverheadLister    = (*Client)(nil)
)
