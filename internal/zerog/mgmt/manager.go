package mgmt

import (
	"context"
	"strings"
	"sync"

	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// WorkerState is the operator-side view of a single worker, assembled
// from info/job updates observed on the shared updates channel.
type WorkerState struct {
	Alive           bool
	State           string
	RunningJobUUID  string
	Mem             domain.Mem
	Retiring        bool
}

// JobRun records one (workerId, action) observation for a uuid at a
// given timestamp; consumers key aggregations by (uuid, timestamp), not
// receive order, since the updates channel interleaves workers globally.
type JobRun struct {
	WorkerID string
	Action   domain.JobAction
}

// Manager is the operator-side fleet aggregator (spec §4.8).
type Manager struct {
	que             queue.Queue
	updatesChannel  *Channel
	updatesTube     string

	mu          sync.Mutex
	ctrlChans   map[string]*Channel
	workers     map[string]*WorkerState
	jobRuns     map[string]map[int64]JobRun // uuid -> unix-nano timestamp -> run
}

// NewManager creates a Manager that consumes the shared updates tube.
func NewManager(que queue.Queue, updatesTube string) *Manager {
	return &Manager{
		que:            que,
		updatesChannel: NewChannel(que, updatesTube),
		updatesTube:    updatesTube,
		ctrlChans:      make(map[string]*Channel),
		workers:        make(map[string]*WorkerState),
		jobRuns:        make(map[string]map[int64]JobRun),
	}
}

// Attach attaches the shared updates channel.
func (m *Manager) Attach(ctx context.Context) error {
	return m.updatesChannel.Attach(ctx)
}

// ctrlChannel lazily creates the per-worker control channel.
func (m *Manager) ctrlChannel(workerID string) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.ctrlChans[workerID]
	if !ok {
		ch = NewChannel(m.que, workerID)
		m.ctrlChans[workerID] = ch
	}
	return ch
}

// KnownWorkers lists every tube, parses each as a worker id, and drops
// channels for tubes with zero watchers (that worker is gone), draining
// any leftover messages first. Returns the live worker id set.
func (m *Manager) KnownWorkers(ctx context.Context) ([]string, error) {
	tubes, err := m.updatesChannel.ListAllQueues(ctx)
	if err != nil {
		return nil, err
	}

	var live []string
	for _, tube := range tubes {
		if _, ok := domain.ParseWorkerID(tube); !ok {
			continue
		}

		watchers, err := m.updatesChannel.GetNamedQueueWatchers(ctx, tube)
		if err != nil {
			continue
		}
		if watchers == 0 {
			m.drainAndDrop(ctx, tube)
			continue
		}
		live = append(live, tube)
	}
	return live, nil
}

func (m *Manager) drainAndDrop(ctx context.Context, workerID string) {
	ch := m.ctrlChannel(workerID)
	for {
		if _, ok := ch.GetMsg(ctx); !ok {
			break
		}
	}
	m.mu.Lock()
	delete(m.ctrlChans, workerID)
	delete(m.workers, workerID)
	m.mu.Unlock()
}

// UpdateWorkers reconciles the tracked worker set against KnownWorkers,
// dropping missing workers and sending requestInfo to every survivor.
func (m *Manager) UpdateWorkers(ctx context.Context) error {
	live, err := m.KnownWorkers(ctx)
	if err != nil {
		return err
	}
	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}

	m.mu.Lock()
	for id := range m.workers {
		if !liveSet[id] {
			delete(m.workers, id)
			delete(m.ctrlChans, id)
		}
	}
	for _, id := range live {
		if _, ok := m.workers[id]; !ok {
			m.workers[id] = &WorkerState{}
		}
	}
	m.mu.Unlock()

	for _, id := range live {
		ch := m.ctrlChannel(id)
		if err := ch.Attach(ctx); err != nil {
			continue
		}
		_ = ch.SendMsg(ctx, domain.Message{Msgtype: domain.MsgRequestInfo, WorkerID: id})
	}
	return nil
}

// PollUpdatesChannel drains the shared updates tube, dispatching job
// and info messages to jobRuns/workers.
func (m *Manager) PollUpdatesChannel(ctx context.Context) {
	for {
		msg, ok := m.updatesChannel.GetMsg(ctx)
		if !ok {
			return
		}
		switch msg.Msgtype {
		case domain.MsgJob:
			m.handleJobUpdate(msg)
		case domain.MsgInfo:
			m.handleInfoUpdate(msg)
		}
	}
}

func (m *Manager) handleJobUpdate(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs, ok := m.jobRuns[msg.UUID]
	if !ok {
		runs = make(map[int64]JobRun)
		m.jobRuns[msg.UUID] = runs
	}
	runs[msg.Timestamp.UnixNano()] = JobRun{WorkerID: msg.WorkerID, Action: msg.Action}

	w, ok := m.workers[msg.WorkerID]
	if !ok {
		w = &WorkerState{}
		m.workers[msg.WorkerID] = w
	}
	w.Alive = true
	if msg.Action == domain.JobActionStart {
		w.RunningJobUUID = msg.UUID
	} else {
		w.RunningJobUUID = ""
	}
}

func (m *Manager) handleInfoUpdate(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[msg.WorkerID]
	if !ok {
		w = &WorkerState{}
		m.workers[msg.WorkerID] = w
	}
	w.Alive = true
	w.State = msg.State
	w.Retiring = msg.Retiring
	w.Mem = msg.Mem
}

// DrainHost sends drain (or retire) to every known worker on host.
func (m *Manager) DrainHost(ctx context.Context, host string, retire bool) error {
	msgType := domain.MsgDrain
	if retire {
		msgType = domain.MsgRetire
	}

	for _, id := range m.WorkersByHost(host) {
		ch := m.ctrlChannel(id)
		if err := ch.Attach(ctx); err != nil {
			continue
		}
		if err := ch.SendMsg(ctx, domain.Message{Msgtype: msgType, WorkerID: id}); err != nil {
			return err
		}
	}
	return nil
}

// UndrainHost sends undrain to every known worker on host.
func (m *Manager) UndrainHost(ctx context.Context, host string) error {
	for _, id := range m.WorkersByHost(host) {
		ch := m.ctrlChannel(id)
		if err := ch.Attach(ctx); err != nil {
			continue
		}
		if err := ch.SendMsg(ctx, domain.Message{Msgtype: domain.MsgUndrain, WorkerID: id}); err != nil {
			return err
		}
	}
	return nil
}

// HostIsDrained reports whether every worker on host is draining (state
// begins with "draining") with no job currently running.
func (m *Manager) HostIsDrained(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for id, w := range m.workers {
		parsed, ok := domain.ParseWorkerID(id)
		if !ok || parsed.Host != host {
			continue
		}
		found = true
		if !strings.HasPrefix(w.State, "draining") || w.RunningJobUUID != "" {
			return false
		}
	}
	return found
}

// WorkersByHost returns the worker ids currently tracked for host.
func (m *Manager) WorkersByHost(host string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id := range m.workers {
		if parsed, ok := domain.ParseWorkerID(id); ok && parsed.Host == host {
			ids = append(ids, id)
		}
	}
	return ids
}

// JobCountByHost pivots the running-job count per host.
func (m *Manager) JobCountByHost() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for id, w := range m.workers {
		if w.RunningJobUUID == "" {
			continue
		}
		if parsed, ok := domain.ParseWorkerID(id); ok {
			counts[parsed.Host]++
		}
	}
	return counts
}

// StatesByHost pivots worker states per host.
func (m *Manager) StatesByHost() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string][]string)
	for id, w := range m.workers {
		if parsed, ok := domain.ParseWorkerID(id); ok {
			states[parsed.Host] = append(states[parsed.Host], w.State)
		}
	}
	return states
}

// KillJob sends killJob for uuid to workerID; the worker silently
// ignores a stale kill that doesn't match its currently running uuid.
func (m *Manager) KillJob(ctx context.Context, workerID, uuid string) error {
	ch := m.ctrlChannel(workerID)
	if err := ch.Attach(ctx); err != nil {
		return err
	}
	return ch.SendMsg(ctx, domain.Message{Msgtype: domain.MsgKillJob, WorkerID: workerID, UUID: uuid})
}

// Workers returns a snapshot of the tracked worker states.
func (m *Manager) Workers() map[string]WorkerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]WorkerState, len(m.workers))
	for id, w := range m.workers {
		out[id] = *w
	}
	return out
}
