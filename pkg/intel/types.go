// Package intel holds the client-visible data model of the Local Buyer
// Intelligence service, plus the geography and channel endpoint wrappers.
// The server is the system of record for every entity here; the client only
// holds transient, re-fetchable copies.
package intel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GeographyType is the closed set of administrative area kinds.
type GeographyType string

const (
	GeographyCity   GeographyType = "city"
	GeographyCounty GeographyType = "county"
	GeographyState  GeographyType = "state"
)

func (t GeographyType) Valid() bool {
	switch t {
	case GeographyCity, GeographyCounty, GeographyState:
		return true
	}
	return false
}

// ChannelType is the closed set of outreach channel kinds.
type ChannelType string

const (
	ChannelHOA                 ChannelType = "HOA"
	ChannelPropertyManager     ChannelType = "PROPERTY_MANAGER"
	ChannelSchool              ChannelType = "SCHOOL"
	ChannelChurch              ChannelType = "CHURCH"
	ChannelVenue               ChannelType = "VENUE"
	ChannelMedia               ChannelType = "MEDIA"
	ChannelCommunityNewsletter ChannelType = "COMMUNITY_NEWSLETTER"
	ChannelOther               ChannelType = "OTHER"
)

// ChannelTypes lists every valid channel type, for help text and validation.
var ChannelTypes = []ChannelType{
	ChannelHOA, ChannelPropertyManager, ChannelSchool, ChannelChurch,
	ChannelVenue, ChannelMedia, ChannelCommunityNewsletter, ChannelOther,
}

func (t ChannelType) Valid() bool {
	for _, known := range ChannelTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SourceType identifies which kind of source data an ingestion run imports.
type SourceType string

const (
	SourceProperty SourceType = "property"
	SourceEvents   SourceType = "events"
	SourceChannels SourceType = "channels"
	SourceCensus   SourceType = "census"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceProperty, SourceEvents, SourceChannels, SourceCensus:
		return true
	}
	return false
}

// ImportableSourceTypes are the source types accepted by the file-import
// endpoint. Census data is refreshed server-side, never uploaded.
var ImportableSourceTypes = []SourceType{SourceProperty, SourceEvents, SourceChannels}

// RunStatus is the server-owned ingestion run state machine:
// pending -> running -> success | failed. The client never writes a status,
// it only observes them on re-fetch.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// IsTerminal reports whether the run will not progress further. Anything
// else means "in progress, re-poll".
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ServiceCategory scopes an intelligence report to one service vertical.
type ServiceCategory string

const (
	CategoryLawnCare        ServiceCategory = "lawn_care"
	CategorySecurity        ServiceCategory = "security"
	CategoryITServices      ServiceCategory = "it_services"
	CategoryFireworks       ServiceCategory = "fireworks"
	CategoryHomeImprovement ServiceCategory = "home_improvement"
	CategoryGeneral         ServiceCategory = "general"
)

// Timestamp is a time.Time that tolerates the backend's naive ISO 8601
// datetimes (no timezone suffix) alongside RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Geography is a named administrative area that scopes imported data and
// reports. The four last-refreshed timestamps are mutated only by
// server-side refresh jobs and are read-only here.
type Geography struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Type       GeographyType `json:"type"`
	StateCode  string        `json:"state_code"`
	CountyName string        `json:"county_name,omitempty"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`

	CensusLastRefreshedAt   *Timestamp `json:"census_last_refreshed_at,omitempty"`
	PropertyLastRefreshedAt *Timestamp `json:"property_last_refreshed_at,omitempty"`
	EventsLastRefreshedAt   *Timestamp `json:"events_last_refreshed_at,omitempty"`
	ChannelsLastRefreshedAt *Timestamp `json:"channels_last_refreshed_at,omitempty"`

	CreatedAt *Timestamp `json:"created_at,omitempty"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

// CensusStaleAfter is the display threshold for census data age.
const CensusStaleAfter = 30 * 24 * time.Hour

// CensusStale reports whether the geography's census data should be flagged
// as stale. A presentation concern, not a correctness invariant.
func (g Geography) CensusStale(now time.Time) bool {
	if g.CensusLastRefreshedAt == nil {
		return true
	}
	return g.CensusLastRefreshedAt.Before(now.Add(-CensusStaleAfter))
}

// GeographyCreate carries the fields accepted by POST /geography/.
type GeographyCreate struct {
	Name       string        `json:"name"`
	Type       GeographyType `json:"type"`
	StateCode  string        `json:"state_code"`
	CountyName string        `json:"county_name,omitempty"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`
}

// Channel is an institutional contact point usable for outreach.
type Channel struct {
	ID             string      `json:"id"`
	ClientID       string      `json:"client_id,omitempty"`
	GeographyID    *int        `json:"geography_id,omitempty"`
	ChannelType    ChannelType `json:"channel_type"`
	Name           string      `json:"name"`
	City           string      `json:"city,omitempty"`
	State          string      `json:"state,omitempty"`
	ZipCode        string      `json:"zip_code,omitempty"`
	EstimatedReach *int        `json:"estimated_reach,omitempty"`
	Website        string      `json:"website,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	SourceURL      string      `json:"source_url,omitempty"`
	CreatedAt      *Timestamp  `json:"created_at,omitempty"`
}

// ChannelCreate carries the fields accepted by POST /channels/.
type ChannelCreate struct {
	GeographyID    *int        `json:"geography_id,omitempty"`
	ChannelType    ChannelType `json:"channel_type"`
	Name           string      `json:"name"`
	City           string      `json:"city,omitempty"`
	State          string      `json:"state,omitempty"`
	ZipCode        string      `json:"zip_code,omitempty"`
	EstimatedReach *int        `json:"estimated_reach,omitempty"`
	Website        string      `json:"website,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// IngestionRun is one attempt to import a batch of source data for a
// geography. Immutable from the client's perspective except via re-fetch.
type IngestionRun struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id,omitempty"`
	GeographyID     *int       `json:"geography_id,omitempty"`
	SourceType      SourceType `json:"source_type"`
	Status          RunStatus  `json:"status"`
	RecordsUpserted *int       `json:"records_upserted,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	FileRef         string     `json:"file_ref,omitempty"`
	CreatedAt       Timestamp  `json:"created_at"`
	StartedAt       *Timestamp `json:"started_at,omitempty"`
	FinishedAt      *Timestamp `json:"finished_at,omitempty"`
}

// IntelligenceReport is a generated, immutable artifact summarizing demand
// scores and recommendations for one geography + service category + ZIP set.
// The structured payloads stay raw JSON: their internals are server-owned,
// and keeping the document intact preserves field order for exports.
type IntelligenceReport struct {
	ID                 int             `json:"id"`
	GeographyID        *int            `json:"geography_id,omitempty"`
	ZipCodes           string          `json:"zip_codes,omitempty"`
	ServiceCategory    ServiceCategory `json:"service_category"`
	ReportName         string          `json:"report_name,omitempty"`
	GeneratedAt        Timestamp       `json:"generated_at"`
	ValidUntil         *Timestamp      `json:"valid_until,omitempty"`
	TotalHouseholds    *int            `json:"total_households,omitempty"`
	TargetHouseholds   *int            `json:"target_households,omitempty"`
	AverageDemandScore *float64        `json:"average_demand_score,omitempty"`

	BuyerProfile           json.RawMessage `json:"buyer_profile,omitempty"`
	ZipDemandScores        json.RawMessage `json:"zip_demand_scores,omitempty"`
	NeighborhoodInsights   json.RawMessage `json:"neighborhood_insights,omitempty"`
	ChannelRecommendations json.RawMessage `json:"channel_recommendations,omitempty"`
	TimingRecommendations  json.RawMessage `json:"timing_recommendations,omitempty"`
}

// ChannelRecommendation is the decoded form of one entry of a report's
// channel_recommendations payload.
type ChannelRecommendation struct {
	ChannelType        string `json:"channel_type"`
	Rationale          string `json:"rationale"`
	EstimatedReach     int    `json:"estimated_reach"`
	EstimatedCostRange string `json:"estimated_cost_range"`
}

// TimingRecommendation is the decoded form of one entry of a report's
// timing_recommendations payload.
type TimingRecommendation struct {
	TimePeriod         string   `json:"time_period"`
	Rationale          string   `json:"rationale"`
	DemandScore        float64  `json:"demand_score"`
	RecommendedActions []string `json:"recommended_actions"`
}

// DecodeChannelRecommendations decodes the raw payload, returning nil for an
// absent one.
func (r IntelligenceReport) DecodeChannelRecommendations() ([]ChannelRecommendation, error) {
	if len(r.ChannelRecommendations) == 0 || string(r.ChannelRecommendations) == "null" {
		return nil, nil
	}
	var recs []ChannelRecommendation
	if err := json.Unmarshal(r.ChannelRecommendations, &recs); err != nil {
		return nil, fmt.Errorf("decoding channel recommendations: %w", err)
	}
	return recs, nil
}

// DecodeTimingRecommendations decodes the raw payload, returning nil for an
// absent one.
func (r IntelligenceReport) DecodeTimingRecommendations() ([]TimingRecommendation, error) {
	if len(r.TimingRecommendations) == 0 || string(r.TimingRecommendations) == "null" {
		return nil, nil
	}
	var recs []TimingRecommendation
	if err := json.Unmarshal(r.TimingRecommendations, &recs); err != nil {
		return nil, fmt.Errorf("decoding timing recommendations: %w", err)
	}
	return recs, nil
}

// ParseServiceCategory normalizes user input, defaulting empty to general.
func ParseServiceCategory(s string) ServiceCategory {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CategoryGeneral
	}
	return ServiceCategory(s)
}
