package compact

import (
	"errors"
	"fmt"
)

// Sentinel errors for the compaction run.
var (
	// ErrNotEligible marks a caller-supplied edge ID that is not a
	// currently tracked short or zero-length edge: it was already
	// compacted, never qualified, or never existed.
	ErrNotEligible = errors.New("edge is not eligible for compaction")

	// ErrIntegrity marks source data or index state that is already
	// inconsistent. Fatal for the run: guessing which field to update
	// would corrupt the schematisation further.
	ErrIntegrity = errors.New("referential integrity violation")
)

// UsageError reports a caller/state mismatch for an explicitly requested
// edge. It aborts only the requested operation, never the whole run.
type UsageError struct {
	EdgeID int64
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("edge %d: %v", e.EdgeID, ErrNotEligible)
}

func (e *UsageError) Unwrap() error {
	return ErrNotEligible
}

// IntegrityError reports a reference that cannot be resolved or
// repointed: a node-reference field pointing at a node that does not
// exist, or a feature whose reference fields match none of the expected
// roles.
type IntegrityError struct {
	Layer     string
	FeatureID int64
	NodeID    int64
	Detail    string
}

func (e *IntegrityError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("%s/%d (node %d): %s: %v",
			e.Layer, e.FeatureID, e.NodeID, e.Detail, ErrIntegrity)
	}
	return fmt.Sprintf("node %d: %s: %v", e.NodeID, e.Detail, ErrIntegrity)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
