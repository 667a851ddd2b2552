// Package bootstrap wires a pkg/config.Config into concrete Datastore,
// WorkQueue, and JobRegistry instances, shared by every zerogd mode and
// zerogctl so each picks its backend the same way.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/examplejobs"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/pkg/config"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// OpenStore constructs the Datastore backend cfg selects.
func OpenStore(ctx context.Context, cfg *config.Config) (datastore.Store, error) {
	switch cfg.Datastore.Backend {
	case "memory":
		return datastore.NewMemoryStore(), nil
	case "dynamodb":
		return datastore.NewDynamoStore(ctx, cfg.Datastore.DynamoDB.Region, cfg.Datastore.DynamoDB.TableName)
	default:
		return nil, fmt.Errorf("bootstrap: unknown datastore backend %q", cfg.Datastore.Backend)
	}
}

// OpenQueue constructs the WorkQueue backend cfg selects.
func OpenQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "memory":
		return queue.NewMemoryQueue(), nil
	case "beanstalkd":
		return queue.NewBeanstalkdQueue(cfg.Queue.Beanstalk.Host, cfg.Queue.Beanstalk.Port)
	default:
		return nil, fmt.Errorf("bootstrap: unknown queue backend %q", cfg.Queue.Backend)
	}
}

// NewRegistry builds a Registry pre-populated with the job types this
// deployment ships, logging any registration failures.
func NewRegistry() *job.Registry {
	r := job.NewRegistry()
	for _, res := range r.AddClasses([]job.Type{
		examplejobs.SleepJobType{},
		examplejobs.FlakyJobType{},
	}) {
		if !res.Success {
			logger.Warn("bootstrap: job type registration failed", "error", res.Error)
		}
	}
	return r
}
