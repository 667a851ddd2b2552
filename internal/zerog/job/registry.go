package job

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// Type describes one registrable job type: how to build a fresh
// instance and how to validate incoming data against its schema.
// Go's static interface satisfaction replaces the original's runtime
// "is it a Job subclass" check; JobType/SchemaVersion emptiness is the
// only thing left to validate at registration time.
type Type interface {
	JobType() string
	SchemaVersion() float64
	// New constructs a zero-value instance wired to store/queue, ready
	// to be populated by json.Unmarshal or Run directly.
	New(store datastore.Store, que queue.Queue) Job
	// Validate checks raw incoming data against this type's schema
	// before construction.
	Validate(data []byte) error
}

// AddClassResult reports the outcome of registering one Type.
type AddClassResult struct {
	JobType string
	Success bool
	Error   string // "", "NoJobType", or "NoSchema"
}

// Registry maps jobType to its registered Type.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// AddClasses registers each Type, reporting per-class success/failure.
func (r *Registry) AddClasses(classes []Type) []AddClassResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]AddClassResult, 0, len(classes))
	for _, c := range classes {
		jobType := c.JobType()
		if jobType == "" {
			results = append(results, AddClassResult{Error: "NoJobType"})
			continue
		}
		if c.SchemaVersion() == 0 {
			results = append(results, AddClassResult{JobType: jobType, Error: "NoSchema"})
			continue
		}
		r.types[jobType] = c
		results = append(results, AddClassResult{JobType: jobType, Success: true})
	}
	return results
}

// MakeJob picks a type from jobType (or data.jobType when jobType is
// ""), validates data against its schema, and constructs the Job.
// Returns (nil, nil) for an unknown type, matching the original's "null
// on unknown type" contract.
func (r *Registry) MakeJob(data []byte, store datastore.Store, que queue.Queue, jobType string) (Job, error) {
	typ := jobType
	if typ == "" && len(data) > 0 {
		var peek struct {
			JobType string `json:"jobType"`
		}
		if err := json.Unmarshal(data, &peek); err != nil {
			return nil, err
		}
		typ = peek.JobType
	}

	r.mu.RLock()
	t, ok := r.types[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if len(data) > 0 {
		if err := t.Validate(data); err != nil {
			return nil, err
		}
	}

	j := t.New(store, que)
	if len(data) > 0 {
		if err := json.Unmarshal(data, j); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// GetJob reads a persisted job by uuid and reconstructs it, splicing
// the stored cas into the record so the next mutation's record-change
// loop starts from the right compare-and-swap token.
func (r *Registry) GetJob(ctx context.Context, uuid string, store datastore.Store, que queue.Queue) (Job, error) {
	key := domain.MakeKey(uuid)
	value, cas, ok, err := store.ReadWithCAS(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	j, err := r.MakeJob(value, store, que, "")
	if err != nil || j == nil {
		return j, err
	}
	j.SetCAS(cas)
	return j, nil
}
