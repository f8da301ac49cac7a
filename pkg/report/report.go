// Package report drives intelligence report generation, listing and export.
// Generation is a single synchronous request/response; reports are immutable
// once created, the client only reads and exports them.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"

	"github.com/tidwall/sjson"

	"github.com/ntewolde/local-buyer-intelligence/pkg/api"
	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// Pre-flight validation failures, raised before any network call.
var (
	ErrNoGeography = errors.New("a target geography is required")
	ErrNoZipCodes  = errors.New("at least one ZIP code is required")
)

// GenerateParams carries the report generation inputs. ZipCodes is the
// comma-separated string the server expects. An empty ServiceCategory
// defaults to general.
type GenerateParams struct {
	GeographyID     int
	ZipCodes        string
	ServiceCategory intel.ServiceCategory
	ReportName      string
}

// ListFilter narrows ListReports. Zero values mean no filtering.
type ListFilter struct {
	GeographyID     int
	ServiceCategory intel.ServiceCategory
	Limit           int
}

// Orchestrator coordinates report generation and the report list.
type Orchestrator struct {
	api *api.Client
}

func NewOrchestrator(client *api.Client) *Orchestrator {
	return &Orchestrator{api: client}
}

// Generate requests a new report and returns the created object directly,
// so an inline consumer (e.g. a heatmap view) can use the payload without
// waiting for a list refresh. List pages still re-fetch to observe it.
//
// Note: there is no guard against generating a report while an import for
// the same geography is still running; such a report may be based on
// partial data. Check run status first when freshness matters.
func (o *Orchestrator) Generate(ctx context.Context, p GenerateParams) (intel.IntelligenceReport, error) {
	if p.GeographyID <= 0 {
		return intel.IntelligenceReport{}, ErrNoGeography
	}
	if p.ZipCodes == "" {
		return intel.IntelligenceReport{}, ErrNoZipCodes
	}
	category := p.ServiceCategory
	if category == "" {
		category = intel.CategoryGeneral
	}

	// Built field by field so an unset report_name is omitted entirely
	// rather than sent as "".
	body := "{}"
	body, _ = sjson.Set(body, "geography_id", p.GeographyID)
	body, _ = sjson.Set(body, "zip_codes", p.ZipCodes)
	body, _ = sjson.Set(body, "service_category", string(category))
	if p.ReportName != "" {
		body, _ = sjson.Set(body, "report_name", p.ReportName)
	}

	res, err := o.api.PostJSON(ctx, "/intelligence/reports", []byte(body), "Failed to generate report")
	if err != nil {
		return intel.IntelligenceReport{}, err
	}

	var rep intel.IntelligenceReport
	if err := json.Unmarshal(res, &rep); err != nil {
		return intel.IntelligenceReport{}, &api.Error{Detail: "Failed to decode report response", Err: err}
	}
	return rep, nil
}

// List fetches previously generated reports, most recent first by
// generated_at. Like the run history, ordering is a client contract and the
// list is always a full re-fetch.
func (o *Orchestrator) List(ctx context.Context, filter ListFilter) ([]intel.IntelligenceReport, error) {
	var query url.Values
	set := func(k, v string) {
		if query == nil {
			query = url.Values{}
		}
		query.Set(k, v)
	}
	if filter.GeographyID > 0 {
		set("geography_id", strconv.Itoa(filter.GeographyID))
	}
	if filter.ServiceCategory != "" {
		set("service_category", string(filter.ServiceCategory))
	}
	if filter.Limit > 0 {
		set("limit", strconv.Itoa(filter.Limit))
	}

	body, err := o.api.Get(ctx, "/intelligence/reports", query, "Failed to fetch reports")
	if err != nil {
		return nil, err
	}

	var reports []intel.IntelligenceReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, &api.Error{Detail: "Failed to decode reports response", Err: err}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt.Time)
	})
	return reports, nil
}
