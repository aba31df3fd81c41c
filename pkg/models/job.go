package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobTypeAcquisitionScan = "acquisition_scan"
	JobTypeResumeScan      = "resume_scan"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeAcquisitionScan:
		job.DataParsed = &JobAcquisitionScanData{}
	case JobTypeResumeScan:
		job.DataParsed = &JobResumeScanData{}
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// JobAcquisitionScanData configures an acquisition scan run. SessionID is
// optional; reusing an existing session id resumes its bookkeeping instead of
// starting over.
type JobAcquisitionScanData struct {
	SessionID *string `json:"session_id,omitempty"`
	ForceAll  bool    `json:"force_all,omitempty"`
}

// JobResumeScanData configures a resume run. A nil SessionID means every
// resumable session is processed.
type JobResumeScanData struct {
	SessionID *string `json:"session_id,omitempty"`
}
