package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ntewolde/local-buyer-intelligence/pkg/api"
	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
	"github.com/ntewolde/local-buyer-intelligence/pkg/session"
)

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	sess, err := session.Open(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)
	require.NoError(t, sess.SetToken("test-token"))
	return api.New(baseURL, sess)
}

func TestGenerateValidatesBeforeAnyRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	orch := NewOrchestrator(newClient(t, srv.URL))
	ctx := context.Background()

	_, err := orch.Generate(ctx, GenerateParams{ZipCodes: "78701"})
	require.ErrorIs(t, err, ErrNoGeography)

	_, err = orch.Generate(ctx, GenerateParams{GeographyID: 1})
	require.ErrorIs(t, err, ErrNoZipCodes)

	require.Zero(t, calls, "validation failures must not reach the network")
}

func TestGenerateDefaultsCategoryAndOmitsEmptyName(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"id":3,"service_category":"general","generated_at":"2025-06-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	orch := NewOrchestrator(newClient(t, srv.URL))
	rep, err := orch.Generate(context.Background(), GenerateParams{
		GeographyID: 9,
		ZipCodes:    "78701,78702",
	})
	require.NoError(t, err)
	require.Equal(t, 3, rep.ID)

	require.Equal(t, int64(9), gjson.Get(gotBody, "geography_id").Int())
	require.Equal(t, "78701,78702", gjson.Get(gotBody, "zip_codes").String())
	require.Equal(t, "general", gjson.Get(gotBody, "service_category").String())
	require.False(t, gjson.Get(gotBody, "report_name").Exists(), "unset report_name must be omitted")
}

func TestGenerateSendsReportName(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"id":4,"service_category":"lawn_care","generated_at":"2025-06-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	orch := NewOrchestrator(newClient(t, srv.URL))
	_, err := orch.Generate(context.Background(), GenerateParams{
		GeographyID:     9,
		ZipCodes:        "78701",
		ServiceCategory: intel.CategoryLawnCare,
		ReportName:      "Spring push",
	})
	require.NoError(t, err)
	require.Equal(t, "lawn_care", gjson.Get(gotBody, "service_category").String())
	require.Equal(t, "Spring push", gjson.Get(gotBody, "report_name").String())
}

func TestGenerateSurfacesServerDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"No census data for geography 9"}`))
	}))
	defer srv.Close()

	orch := NewOrchestrator(newClient(t, srv.URL))
	_, err := orch.Generate(context.Background(), GenerateParams{GeographyID: 9, ZipCodes: "78701"})

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "No census data for geography 9", apiErr.Detail)
}

func TestListSortsMostRecentFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"service_category":"general","generated_at":"2025-01-01T00:00:00Z"},
			{"id":3,"service_category":"general","generated_at":"2025-03-01T00:00:00Z"},
			{"id":2,"service_category":"general","generated_at":"2025-02-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	reports, err := NewOrchestrator(newClient(t, srv.URL)).List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Equal(t, []int{3, 2, 1}, []int{reports[0].ID, reports[1].ID, reports[2].ID})
}

func TestListForwardsFilters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewOrchestrator(newClient(t, srv.URL)).List(context.Background(), ListFilter{
		GeographyID:     4,
		ServiceCategory: intel.CategoryFireworks,
		Limit:           10,
	})
	require.NoError(t, err)
	require.Contains(t, gotQuery, "geography_id=4")
	require.Contains(t, gotQuery, "service_category=fireworks")
	require.Contains(t, gotQuery, "limit=10")
}
