// Package ingest drives the upload + import cycle and the ingestion run
// history. One cycle is strictly sequential: the upload must succeed before
// the import is registered, because the import consumes the file_ref the
// upload returns. Across cycles nothing is ordered; each attempt is
// independent and at-most-once.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/ntewolde/local-buyer-intelligence/internal/utils"
	"github.com/ntewolde/local-buyer-intelligence/pkg/api"
	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// Pre-flight validation failures, raised before any network call.
var (
	ErrNoFile            = errors.New("no file selected")
	ErrNoGeography       = errors.New("a target geography is required")
	ErrInvalidSourceType = errors.New("source type must be one of: property, events, channels")
	ErrNoFileRef         = errors.New("a file_ref from a successful upload is required")
)

// FileRef is the opaque, single-use handle returned by the upload endpoint.
// It must be passed to exactly one subsequent import call; after a failed
// import its server-side disposition is unknown and it must not be reused.
type FileRef string

// RunFilter narrows ListRuns. The zero value means no filtering.
type RunFilter struct {
	GeographyID int
}

// Orchestrator coordinates uploads, import registration and run history.
type Orchestrator struct {
	api *api.Client
}

func NewOrchestrator(client *api.Client) *Orchestrator {
	return &Orchestrator{api: client}
}

// importable reports whether the source type can be file-imported. Census
// refreshes are server-side and don't take an upload.
func importable(t intel.SourceType) bool {
	for _, known := range intel.ImportableSourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// UploadFile sends the file as a single multipart request and returns the
// opaque reference token. File content is not validated here; format and
// schema checks are server-side. On failure no file_ref is retained.
func (o *Orchestrator) UploadFile(ctx context.Context, filename string, r io.Reader) (FileRef, error) {
	if r == nil {
		return "", ErrNoFile
	}

	body, err := o.api.PostMultipart(ctx, "/uploads/upload", "file", filename, r, "File upload failed")
	if err != nil {
		return "", err
	}

	ref := gjson.GetBytes(body, "file_ref").String()
	if ref == "" {
		return "", &api.Error{Detail: "Upload response did not contain a file_ref"}
	}
	utils.Log.Debugf("Uploaded %s, file_ref=%s", filename, ref)
	return FileRef(ref), nil
}

// StartImport registers the import job. It only confirms the job was
// accepted; the run's progress is observed by refreshing the run list.
func (o *Orchestrator) StartImport(ctx context.Context, geographyID int, sourceType intel.SourceType, ref FileRef) error {
	if geographyID <= 0 {
		return ErrNoGeography
	}
	if !importable(sourceType) {
		return ErrInvalidSourceType
	}
	if ref == "" {
		return ErrNoFileRef
	}

	query := url.Values{}
	query.Set("geography_id", strconv.Itoa(geographyID))
	query.Set("file_ref", string(ref))
	_, err := o.api.Post(ctx, "/import/"+string(sourceType), query, "Failed to start import")
	return err
}

// ImportFile runs one full cycle: upload, then register the import with the
// returned file_ref. If the upload fails the import is never issued and the
// whole attempt is terminal; the caller must re-upload to try again.
func (o *Orchestrator) ImportFile(ctx context.Context, geographyID int, sourceType intel.SourceType, filename string, r io.Reader) (FileRef, error) {
	if geographyID <= 0 {
		return "", ErrNoGeography
	}
	if !importable(sourceType) {
		return "", ErrInvalidSourceType
	}

	ref, err := o.UploadFile(ctx, filename, r)
	if err != nil {
		return "", err
	}
	if err := o.StartImport(ctx, geographyID, sourceType, ref); err != nil {
		// The ref's server-side disposition is unknown now, so it is not
		// returned: a fresh upload is required for the next attempt.
		return "", err
	}
	return ref, nil
}

// ListRuns fetches the run history, newest first by created_at. Ordering is
// a client contract: the list is re-sorted regardless of server order. Runs
// with a non-terminal status may still progress; re-poll to observe.
func (o *Orchestrator) ListRuns(ctx context.Context, filter RunFilter) ([]intel.IngestionRun, error) {
	body, err := o.api.Get(ctx, "/ingestion-runs/", nil, "Failed to fetch ingestion runs")
	if err != nil {
		return nil, err
	}

	var runs []intel.IngestionRun
	if err := json.Unmarshal(body, &runs); err != nil {
		return nil, &api.Error{Detail: "Failed to decode ingestion runs response", Err: err}
	}

	if filter.GeographyID > 0 {
		filtered := runs[:0]
		for _, run := range runs {
			if run.GeographyID != nil && *run.GeographyID == filter.GeographyID {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt.Time)
	})
	return runs, nil
}
