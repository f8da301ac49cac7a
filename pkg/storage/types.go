package storage

import (
	"time"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// Change captures one observed run-history event, for auditing or printing.
type Change struct {
	OccurredAt time.Time

	RunID       string
	GeographyID int
	SourceType  intel.SourceType

	OldStatus  intel.RunStatus // empty for newly appeared runs
	NewStatus  intel.RunStatus
	ChangeType string // added | status_changed
}
