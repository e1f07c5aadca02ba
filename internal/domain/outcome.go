package domain

import (
	"fmt"
	"strings"
)

// Stage is a step of the per-record issuance state machine.
type Stage string

const (
	StagePending           Stage = "PENDING"
	StageUploadingAsset    Stage = "UPLOADING_ASSET"
	StageBuildingMetadata  Stage = "BUILDING_METADATA"
	StageUploadingMetadata Stage = "UPLOADING_METADATA"
	StageSubmitting        Stage = "SUBMITTING"
	StageSucceeded         Stage = "SUCCEEDED"
	StageFailed            Stage = "FAILED"
)

func (s Stage) String() string { return string(s) }

func (s Stage) IsValid() bool {
	switch s {
	case StagePending, StageUploadingAsset, StageBuildingMetadata, StageUploadingMetadata,
		StageSubmitting, StageSucceeded, StageFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can follow s.
func (s Stage) IsTerminal() bool {
	return s == StageSucceeded || s == StageFailed
}

func ParseStageFromString(s string) (Stage, error) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid stage %q", ErrValidation, s)
	}
	return st, nil
}

// IssuanceOutcome is the final result of one record's pipeline.
// Stage is SUCCEEDED on success and the failing stage otherwise.
type IssuanceOutcome struct {
	Record      IssuanceRecord
	Succeeded   bool
	Stage       Stage
	Error       string
	MetadataURI string
	TxHash      string
	TokenID     string
}

// BatchReport aggregates every outcome of a batch run in extraction order.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []IssuanceOutcome
}

// Add appends an outcome and updates the tallies.
func (r *BatchReport) Add(outcome IssuanceOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	r.Total++
	if outcome.Succeeded {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Summary renders the counts line shown to operators.
func (r BatchReport) Summary() string {
	return fmt.Sprintf("Batch minting complete. Success: %d, Failed: %d", r.Succeeded, r.Failed)
}

// ProgressEvent is emitted by the coordinator after every record transition.
// Outcome is set only when Stage is terminal.
type ProgressEvent struct {
	BatchID string
	Index   int
	Total   int
	Stage   Stage
	Outcome *IssuanceOutcome
}
