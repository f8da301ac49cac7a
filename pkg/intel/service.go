package intel

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/ntewolde/local-buyer-intelligence/pkg/api"
)

// Pre-flight validation failures. Raised before any network call.
var (
	ErrInvalidGeographyType = errors.New("geography type must be one of: city, county, state")
	ErrMissingName          = errors.New("name is required")
	ErrMissingStateCode     = errors.New("state_code must be a 2-letter code")
	ErrInvalidChannelType   = errors.New("unknown channel type")
	ErrNegativeReach        = errors.New("estimated_reach must be non-negative")
	ErrMissingChannelID     = errors.New("channel id is required")
)

// Service wraps the geography and channel endpoints.
type Service struct {
	api *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// ListGeographies fetches all geographies visible to the current user.
func (s *Service) ListGeographies(ctx context.Context) ([]Geography, error) {
	body, err := s.api.Get(ctx, "/geography/", nil, "Failed to fetch geographies")
	if err != nil {
		return nil, err
	}
	var geos []Geography
	if err := json.Unmarshal(body, &geos); err != nil {
		return nil, &api.Error{Detail: "Failed to decode geographies response", Err: err}
	}
	return geos, nil
}

// CreateGeography registers a new geography.
func (s *Service) CreateGeography(ctx context.Context, in GeographyCreate) (Geography, error) {
	if in.Name == "" {
		return Geography{}, ErrMissingName
	}
	if !in.Type.Valid() {
		return Geography{}, ErrInvalidGeographyType
	}
	if len(in.StateCode) != 2 {
		return Geography{}, ErrMissingStateCode
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return Geography{}, err
	}
	body, err := s.api.PostJSON(ctx, "/geography/", payload, "Failed to create geography")
	if err != nil {
		return Geography{}, err
	}
	var geo Geography
	if err := json.Unmarshal(body, &geo); err != nil {
		return Geography{}, &api.Error{Detail: "Failed to decode geography response", Err: err}
	}
	return geo, nil
}

// RefreshCensus asks the server to start a census refresh run for the
// geography. Accept-only: progress is observed via the run history.
func (s *Service) RefreshCensus(ctx context.Context, geographyID int) error {
	query := url.Values{}
	query.Set("geography_id", strconv.Itoa(geographyID))
	_, err := s.api.Post(ctx, "/ingestion-runs/census/refresh", query, "Failed to start census refresh")
	return err
}

// ListChannels fetches channels, optionally filtered to one geography
// (geographyID <= 0 means no filter).
func (s *Service) ListChannels(ctx context.Context, geographyID int) ([]Channel, error) {
	var query url.Values
	if geographyID > 0 {
		query = url.Values{}
		query.Set("geography_id", strconv.Itoa(geographyID))
	}
	body, err := s.api.Get(ctx, "/channels/", query, "Failed to fetch channels")
	if err != nil {
		return nil, err
	}
	var channels []Channel
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, &api.Error{Detail: "Failed to decode channels response", Err: err}
	}
	return channels, nil
}

// CreateChannel registers a new outreach channel.
func (s *Service) CreateChannel(ctx context.Context, in ChannelCreate) (Channel, error) {
	if in.Name == "" {
		return Channel{}, ErrMissingName
	}
	if !in.ChannelType.Valid() {
		return Channel{}, ErrInvalidChannelType
	}
	if in.EstimatedReach != nil && *in.EstimatedReach < 0 {
		return Channel{}, ErrNegativeReach
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return Channel{}, err
	}
	body, err := s.api.PostJSON(ctx, "/channels/", payload, "Failed to create channel")
	if err != nil {
		return Channel{}, err
	}
	var ch Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return Channel{}, &api.Error{Detail: "Failed to decode channel response", Err: err}
	}
	return ch, nil
}

// DeleteChannel removes a channel by identity. Confirmation is the caller's
// concern; this just issues the request.
func (s *Service) DeleteChannel(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingChannelID
	}
	_, err := s.api.Delete(ctx, "/channels/"+id, "Failed to delete channel")
	return err
}
