// Package domain holds the persisted job record, worker identifiers, and
// the audit-entry shapes shared across the supervisor, worker, and
// management-plane packages.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result code sentinels (spec §3, §6).
const (
	NoResult      = -1
	InternalError = 500
	KilledByUser  = 410
)

// DocumentType is the fixed discriminator used to namespace job keys in
// the datastore for this deployment.
const DocumentType = "zerog_job"

// DefaultTTR is the lease duration used when a job doesn't specify one.
// It mirrors the original's deliberately huge "should never happen"
// default TTR.
const DefaultTTR = 30 * 24 * time.Hour

// Event is a single append-only audit entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Msg       string    `json:"msg"`
}

// Warning is a single append-only audit entry.
type Warning struct {
	Timestamp time.Time `json:"timestamp"`
	Msg       string    `json:"msg"`
}

// Error is a single append-only audit entry carrying an error code.
type Error struct {
	Timestamp time.Time `json:"timestamp"`
	Code      int       `json:"code"`
	Msg       string    `json:"msg"`
}

// JobRecord is the persisted shape of a Job (spec §3). It embeds into
// every concrete job type so that a single flat JSON document carries
// both the base attributes and the job type's own fields.
type JobRecord struct {
	DocumentType  string         `json:"documentType"`
	JobType       string         `json:"jobType"`
	SchemaVersion float64        `json:"schemaVersion"`
	UUID          string         `json:"uuid"`
	LogID         string         `json:"logId"`
	CAS           uint64         `json:"-"` // delivered out-of-band by the datastore, never embedded in the stored JSON
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	QueueName     string         `json:"queueName"`
	QueueKwargs   map[string]any `json:"queueKwargs,omitempty"`
	QueueJobID    int64          `json:"queueJobId"`
	Events        []Event        `json:"events"`
	Warnings      []Warning      `json:"warnings"`
	Errors        []Error        `json:"errors"`
	Running       bool           `json:"running"`
	ErrorCount    int            `json:"errorCount"`
	Completeness  float64        `json:"completeness"`
	TickCount     float64        `json:"tickcount"`
	TickVal       float64        `json:"tickval"`
	ResultCode    int            `json:"resultCode"`
}

// NewJobRecord initializes a fresh record for the given job type with a
// newly generated UUID.
func NewJobRecord(jobType string, schemaVersion float64) JobRecord {
	now := time.Now().UTC()
	id := uuid.New().String()
	return JobRecord{
		DocumentType:  DocumentType,
		JobType:       jobType,
		SchemaVersion: schemaVersion,
		UUID:          id,
		LogID:         fmt.Sprintf("%s_%s", jobType, id),
		CreatedAt:     now,
		UpdatedAt:     now,
		TickVal:       0.001,
		ResultCode:    NoResult,
	}
}

// Key returns the datastore key for this record: {documentType}_{uuid}.
func (r *JobRecord) Key() string {
	return MakeKey(r.UUID)
}

// MakeKey builds the datastore key for a job uuid.
func MakeKey(id string) string {
	return fmt.Sprintf("%s_%s", DocumentType, id)
}

// Terminal reports whether the job has reached a terminal result.
func (r *JobRecord) Terminal() bool {
	return r.ResultCode != NoResult
}

// ClampCompleteness clamps a completeness value into [0, 1].
func ClampCompleteness(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
