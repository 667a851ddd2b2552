// Package server implements the Server supervisor-parent (spec §4.6): a
// single-threaded cooperative poll loop that owns one Worker child
// process, drains its pipe, reaps and respawns it, and services the
// management-plane control channel.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/mgmt"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/internal/zerog/worker"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// State is one of the five supervisor states (spec §4.6).
type State string

const (
	StateActiveIdle      State = "activeIdle"
	StateActiveRunning   State = "activeRunning"
	StateDrainingIdle    State = "drainingIdle"
	StateDrainingRunning State = "drainingRunning"
	StateDrainingDown    State = "drainingDown"
)

// PollInterval is how often do_poll runs.
const PollInterval = 2 * time.Second

// The child worker inherits these two file descriptors across exec: fd 3
// is its read end of the parent->child pipe, fd 4 is its write end of
// the child->parent pipe. cmd/zerogd's worker entrypoint opens them with
// os.NewFile(parentReadFD, ...) / os.NewFile(parentWriteFD, ...).
const (
	workerReadFD  = 3
	workerWriteFD = 4
)

// Snapshot is a point-in-time, concurrency-safe read of Server state,
// published by the poll goroutine for external readers (tests,
// introspection).
type Snapshot struct {
	State          State
	Retiring       bool
	RunningJobUUID string
	ChildPID       int
}

// Server owns one Worker child process plus the datastore/queue/registry
// handles the child doesn't inherit (the child opens its own, per the
// spec's process-isolation note).
type Server struct {
	workerID   string
	store      datastore.Store
	que        queue.Queue
	registry   *job.Registry
	jobTube    string
	workerPath string
	workerArgs []string

	ctrlChannel    *mgmt.Channel
	updatesChannel *mgmt.Channel

	cmd      *exec.Cmd
	codec    *worker.PipeCodec
	frameCh  chan worker.Frame
	exitedAt atomic.Bool

	state          State
	retiring       bool
	runningJobUUID string

	// pollInterval overrides PollInterval; tests shrink it to exercise
	// Run's loop without waiting on the real cadence.
	pollInterval time.Duration

	snapshot atomic.Pointer[Snapshot]
}

// New creates a Server. workerID is this server's canonical worker id
// string, also the name of its control tube. workerPath/workerArgs
// describe how to exec the Worker child (the zerogd binary in worker
// mode).
func New(workerID string, store datastore.Store, que queue.Queue, registry *job.Registry, jobTube, workerPath string, workerArgs []string) *Server {
	return &Server{
		workerID:       workerID,
		store:          store,
		que:            que,
		registry:       registry,
		jobTube:        jobTube,
		workerPath:     workerPath,
		workerArgs:     workerArgs,
		ctrlChannel:    mgmt.NewChannel(que, workerID),
		updatesChannel: mgmt.NewChannel(que, "updates"),
		state:          StateActiveIdle,
		pollInterval:   PollInterval,
	}
}

// Snapshot returns the most recently published state snapshot.
func (s *Server) Snapshot() Snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	return Snapshot{State: StateActiveIdle}
}

// Run attaches the control/updates channels, spawns the child, and runs
// do_poll every PollInterval until ctx is canceled. It does not return on
// StateDrainingDown: an undrain can still arrive on the control channel
// and respawn the child (spec's drainingDown -> activeIdle transition).
func (s *Server) Run(ctx context.Context) error {
	if err := s.ctrlChannel.Attach(ctx); err != nil {
		return fmt.Errorf("server: failed to attach control channel: %w", err)
	}
	if err := s.updatesChannel.Attach(ctx); err != nil {
		return fmt.Errorf("server: failed to attach updates channel: %w", err)
	}
	if err := s.spawnWorker(ctx); err != nil {
		return fmt.Errorf("server: failed to spawn worker: %w", err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.killChild(syscall.SIGTERM)
			return ctx.Err()
		case <-ticker.C:
			s.doPoll(ctx)
		}
	}
}

// doPoll is the single mutator of Server state (spec §4.6 "Supervision").
func (s *Server) doPoll(ctx context.Context) {
	s.drainPipe(ctx)
	s.checkChildLiveness(ctx)
	s.serviceControlMessages(ctx)
	s.publishSnapshot()
}

func (s *Server) drainPipe(ctx context.Context) {
	for {
		select {
		case f, ok := <-s.frameCh:
			if !ok {
				return
			}
			s.handleFrame(ctx, f)
		default:
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, f worker.Frame) {
	switch f.Type {
	case worker.FrameReady:
		logger.Info("server: worker ready", "workerId", s.workerID)
	case worker.FrameRunningJobUUID:
		if f.Value != "" {
			s.runningJobUUID = f.Value
			s.transitionToRunning()
			s.sendJobUpdate(ctx, domain.JobActionStart, f.Value)
		} else {
			prev := s.runningJobUUID
			s.runningJobUUID = ""
			wasRunning := s.state == StateDrainingRunning
			s.transitionToIdle()
			s.sendJobUpdate(ctx, domain.JobActionEnd, prev)
			if wasRunning && s.state == StateDrainingIdle {
				// The job in flight when drain arrived has now finished;
				// handleDrain withholds FrameDrain while a job is running,
				// so tell the child to stop leasing now, before it
				// reserves another one.
				s.sendFrame(worker.Frame{Type: worker.FrameDrain})
			}
		}
	}
}

func (s *Server) transitionToRunning() {
	switch s.state {
	case StateActiveIdle:
		s.state = StateActiveRunning
	case StateDrainingIdle:
		s.state = StateDrainingRunning
	}
}

func (s *Server) transitionToIdle() {
	switch s.state {
	case StateActiveRunning:
		s.state = StateActiveIdle
	case StateDrainingRunning:
		s.state = StateDrainingIdle
	}
}

// checkChildLiveness reaps a dead child (observed via the background
// Wait goroutine, which reaps the zombie the instant it appears) and
// either respawns or transitions to drainingDown.
func (s *Server) checkChildLiveness(ctx context.Context) {
	if !s.exitedAt.Load() {
		return
	}

	switch s.state {
	case StateActiveIdle, StateActiveRunning:
		logger.Warn("server: worker exited, respawning", "workerId", s.workerID)
		if err := s.spawnWorker(ctx); err != nil {
			logger.Error("server: respawn failed", "workerId", s.workerID, "err", err)
		}
	default:
		s.state = StateDrainingDown
	}
}

func (s *Server) serviceControlMessages(ctx context.Context) {
	for {
		msg, ok := s.ctrlChannel.GetMsg(ctx)
		if !ok {
			return
		}
		s.handleControlMsg(ctx, msg)
	}
}

func (s *Server) handleControlMsg(ctx context.Context, msg domain.Message) {
	switch domain.NormalizeMsgtype(msg.Msgtype) {
	case domain.MsgDrain:
		s.handleDrain()
	case domain.MsgUndrain:
		s.handleUndrain(ctx)
	case domain.MsgRetire:
		s.retiring = true
		s.handleDrain()
	case domain.MsgKillJob:
		s.handleKillJob(ctx, msg.UUID)
	case domain.MsgRequestInfo:
		s.replyInfo(ctx)
	}
}

// handleDrain implements the drain transition table: the child is told
// to stop leasing only when it has no job in flight; a running job is
// left to finish, and the Server simply stops respawning after drain.
func (s *Server) handleDrain() {
	switch s.state {
	case StateActiveIdle:
		s.state = StateDrainingIdle
		s.sendFrame(worker.Frame{Type: worker.FrameDrain})
	case StateActiveRunning:
		s.state = StateDrainingRunning
	}
}

func (s *Server) handleUndrain(ctx context.Context) {
	if s.retiring {
		return
	}
	switch s.state {
	case StateDrainingIdle:
		s.state = StateActiveIdle
		s.sendFrame(worker.Frame{Type: worker.FrameUndrain})
	case StateDrainingRunning:
		s.state = StateActiveRunning
	case StateDrainingDown:
		if err := s.spawnWorker(ctx); err != nil {
			logger.Error("server: undrain respawn failed", "workerId", s.workerID, "err", err)
			return
		}
		s.state = StateActiveIdle
	}
}

// handleKillJob kills the child outright when uuid matches the job it
// is currently running; stale kills (wrong uuid, or nothing running)
// are silently ignored (spec §4.6, §5 "Cancellation").
func (s *Server) handleKillJob(ctx context.Context, uuid string) {
	if s.state != StateActiveRunning && s.state != StateDrainingRunning {
		return
	}
	if uuid == "" || s.runningJobUUID != uuid {
		return
	}

	wasDraining := s.state == StateDrainingRunning
	s.killChild(syscall.SIGKILL)

	if j, err := s.registry.GetJob(ctx, uuid, s.store, s.que); err == nil && j != nil {
		j.RecordError(ctx, domain.KilledByUser, "killed by user")
		j.RecordResult(ctx, domain.KilledByUser)
		if qid := j.Record().QueueJobID; qid > 0 {
			_ = s.que.Delete(ctx, uint64(qid))
		}
	}

	s.runningJobUUID = ""
	if err := s.spawnWorker(ctx); err != nil {
		logger.Error("server: restart after killJob failed", "workerId", s.workerID, "err", err)
		s.state = StateDrainingDown
		return
	}
	if wasDraining {
		s.state = StateDrainingIdle
	} else {
		s.state = StateActiveIdle
	}
}

func (s *Server) replyInfo(ctx context.Context) {
	mem, err := s.readMem()
	if err != nil {
		logger.Warn("server: failed to read memory usage", "workerId", s.workerID, "err", err)
	}
	err = s.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype:  domain.MsgInfo,
		WorkerID: s.workerID,
		State:    string(s.state),
		Retiring: s.retiring,
		UUID:     s.runningJobUUID,
		Mem:      mem,
	})
	if err != nil {
		logger.Warn("server: failed to send info reply", "workerId", s.workerID, "err", err)
	}
}

func (s *Server) sendJobUpdate(ctx context.Context, action domain.JobAction, uuid string) {
	err := s.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype:  domain.MsgJob,
		WorkerID: s.workerID,
		UUID:     uuid,
		Action:   action,
	})
	if err != nil {
		logger.Warn("server: failed to send job update", "workerId", s.workerID, "uuid", uuid, "err", err)
	}
}

func (s *Server) sendFrame(f worker.Frame) {
	if s.codec == nil {
		return
	}
	if err := s.codec.Send(f); err != nil {
		logger.Warn("server: failed to send frame to worker", "workerId", s.workerID, "type", f.Type, "err", err)
	}
}

func (s *Server) killChild(sig syscall.Signal) {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn("server: failed to signal worker", "workerId", s.workerID, "signal", sig, "err", err)
	}
}

// spawnWorker execs a fresh Worker child, wires its pipe, and starts the
// background frame reader and exit-reaper goroutines.
func (s *Server) spawnWorker(ctx context.Context) error {
	parentToChildR, parentToChildW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating parent->child pipe: %w", err)
	}
	childToParentR, childToParentW, err := os.Pipe()
	if err != nil {
		parentToChildR.Close()
		parentToChildW.Close()
		return fmt.Errorf("creating child->parent pipe: %w", err)
	}

	cmd := exec.Command(s.workerPath, append([]string{"worker"}, s.workerArgs...)...)
	cmd.Env = append(os.Environ(),
		"ZEROG_MODE=worker",
		"ZEROG_JOB_TUBE="+s.jobTube,
		fmt.Sprintf("ZEROG_PARENT_PID=%d", os.Getpid()),
	)
	cmd.ExtraFiles = []*os.File{parentToChildR, childToParentW}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		parentToChildR.Close()
		parentToChildW.Close()
		childToParentR.Close()
		childToParentW.Close()
		return fmt.Errorf("starting worker process: %w", err)
	}

	// The child has its own copies of these fds now; the parent only
	// needs its own ends.
	parentToChildR.Close()
	childToParentW.Close()

	s.cmd = cmd
	s.codec = worker.NewPipeCodec(childToParentR, parentToChildW)
	s.frameCh = make(chan worker.Frame, 16)
	s.exitedAt.Store(false)
	s.state = StateActiveIdle
	s.runningJobUUID = ""

	go s.readFrames()
	go s.waitForExit()

	logger.Info("server: worker spawned", "workerId", s.workerID, "pid", cmd.Process.Pid)
	return nil
}

func (s *Server) readFrames() {
	codec := s.codec
	frameCh := s.frameCh
	for {
		f, ok := codec.Recv()
		if !ok {
			close(frameCh)
			return
		}
		frameCh <- f
	}
}

func (s *Server) waitForExit() {
	cmd := s.cmd
	err := cmd.Wait()
	if err != nil {
		logger.Warn("server: worker process exited", "workerId", s.workerID, "err", err)
	} else {
		logger.Info("server: worker process exited", "workerId", s.workerID)
	}
	s.exitedAt.Store(true)
}

func (s *Server) publishSnapshot() {
	pid := 0
	if s.cmd != nil && s.cmd.Process != nil {
		pid = s.cmd.Process.Pid
	}
	s.snapshot.Store(&Snapshot{
		State:          s.state,
		Retiring:       s.retiring,
		RunningJobUUID: s.runningJobUUID,
		ChildPID:       pid,
	})
}
