package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:         srv.URL,
		Email:           "alice@example.com",
		APIToken:        "token",
		OverheadProject: "OH",
		Timeout:         2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Email: "a@b.c", APIToken: "t"})
	assert.True(t, worklog.IsValidation(err))

	_, err = NewClient(Config{BaseURL: "https://x"})
	assert.True(t, worklog.IsValidation(err))
}

func TestListActive(t *testing.T) {
	var gotJQL string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search/jql", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "alice@example.com", user)
		assert.Equal(t, "token", pass)
		gotJQL = r.URL.Query().Get("jql")
		w.Write([]byte(`{"issues":[
			{"key":"DEV-1","fields":{"summary":"Importer"}},
			{"key":"DEV-2","fields":{"summary":"Exporter"}}
		]}`))
	}))

	items, err := client.ListActive(context.Background(), "ignored")

	require.NoError(t, err)
	assert.Equal(t, []worklog.WorkItem{
		{Key: "DEV-1", Title: "Importer"},
		{Key: "DEV-2", Title: "Exporter"},
	}, items)
	assert.Equal(t, `assignee = currentUser() AND status IN ("IN DEVELOPMENT", "CODE REVIEW")`, gotJQL)
}

func TestListActiveAsOfUsesHistoricalClauses(t *testing.T) {
	var gotJQL string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotJQL = r.URL.Query().Get("jql")
		w.Write([]byte(`{"issues":[]}`))
	}))

	_, err := client.ListActiveAsOf(context.Background(), "ignored", schedule.NewDate(2026, time.January, 5))

	require.NoError(t, err)
	assert.Equal(t,
		`assignee = currentUser() AND (status WAS "IN DEVELOPMENT" ON "2026-01-05" OR status WAS "CODE REVIEW" ON "2026-01-05")`,
		gotJQL)
}

func TestGetDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/issue/DEV-1", r.URL.Path)
		assert.Equal(t, "summary,description,comment", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"key":"DEV-1","fields":{
			"summary":"Importer",
			"description":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Parse the feed."}]}]},
			"comment":{"comments":[
				{"body":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"one"}]}]}},
				{"body":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"two"}]}]}},
				{"body":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"three"}]}]}},
				{"body":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"four"}]}]}}
			]}
		}}`))
	}))

	detail, err := client.GetDetail(context.Background(), "DEV-1")

	require.NoError(t, err)
	assert.Equal(t, "Importer", detail.Title)
	assert.Equal(t, "Parse the feed.", detail.Description)
	// Only the last three annotations survive, oldest first.
	assert.Equal(t, []string{"two", "three", "four"}, detail.RecentAnnotations)
}

func TestListOverheadReadsSprintShapes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("jql"), "project = OH")
		w.Write([]byte(`{"issues":[
			{"key":"OH-1","fields":{"summary":"Ceremonies","sprint":{"name":"PI.26.1.JAN.09 Sprint 2"}}},
			{"key":"OH-2","fields":{"summary":"Support","sprint":[{"name":"old"},{"name":"PI.26.2.MAR.20"}]}},
			{"key":"OH-3","fields":{"summary":"Admin PI.26.1.JAN.09"}}
		]}`))
	}))

	items, err := client.ListOverhead(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "PI.26.1.JAN.09 Sprint 2", items[0].Cycle)
	assert.Equal(t, "PI.26.2.MAR.20", items[1].Cycle)
	assert.Empty(t, items[2].Cycle) // cycle parse falls back to the title downstream
}

func TestAccountIDCached(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/rest/api/3/myself", r.URL.Path)
		w.Write([]byte(`{"accountId":"abc-123"}`))
	}))

	id, err := client.AccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	id, err = client.AccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, 1, calls)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, worklog.IsAuthentication},
		{"forbidden", http.StatusForbidden, worklog.IsAuthentication},
		{"not found", http.StatusNotFound, worklog.IsNotFound},
		{"bad gateway", http.StatusBadGateway, worklog.IsTransient},
		{"service unavailable", http.StatusServiceUnavailable, worklog.IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.ListActive(context.Background(), "ignored")

			require.Error(t, err)
			assert.True(t, tt.check(err))

			var svcErr *worklog.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, "tracker", svcErr.Service)
			assert.Equal(t, tt.status, svcErr.Status)
		})
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	client.http.Timeout = 20 * time.Millisecond

	_, err := client.ListActive(context.Background(), "ignored")

	require.Error(t, err)
	assert.True(t, worklog.IsTransient(err))
}
