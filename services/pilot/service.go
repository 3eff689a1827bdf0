// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pilot wires the task controller together: the bounded
// iteration loop, tool execution, environmental feedback, error
// recovery, risk-based escalation, and human checkpoints.
//
// The Service is the only component that mutates task state. Every
// subsystem it consults (stopping conditions, autonomy, blocker
// detection, recovery, feedback integration) is a pure evaluator over
// an immutable snapshot, so the loop body reads as a fixed sequence of
// evaluations followed by explicit state mutations.
package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPilot/pkg/logging"
	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/autonomy"
	"github.com/AleutianAI/AleutianPilot/services/pilot/events"
	"github.com/AleutianAI/AleutianPilot/services/pilot/human"
	"github.com/AleutianAI/AleutianPilot/services/pilot/llm"
	"github.com/AleutianAI/AleutianPilot/services/pilot/observe"
	"github.com/AleutianAI/AleutianPilot/services/pilot/recovery"
	"github.com/AleutianAI/AleutianPilot/services/pilot/stopping"
	storage "github.com/AleutianAI/AleutianPilot/services/pilot/storage/badger"
	"github.com/AleutianAI/AleutianPilot/services/pilot/telemetry"
	"github.com/AleutianAI/AleutianPilot/services/pilot/tools"
)

// Options carries per-task overrides. Zero fields use the defaults
// from agent.DefaultTaskConfig.
type Options struct {
	// MaxIterations bounds the loop for this task.
	MaxIterations int

	// TimeLimit is the wall-clock budget for this task.
	TimeLimit time.Duration

	// Strategy is the initial strategy label.
	Strategy string
}

// Service drives tasks through the iteration loop.
//
// # Description
//
// ProcessQuery creates a task and drives it until a terminal status or
// a human checkpoint. ResumeAfterHumanInput resolves a checkpoint and
// drives the same task again. One task is never driven by two callers
// at once.
//
// # Thread Safety
//
// Service is safe for concurrent use across tasks.
type Service struct {
	logger     *slog.Logger
	registry   *tools.Registry
	executor   *tools.Executor
	reasoner   llm.Reasoner
	integrator *observe.Integrator
	recovery   *recovery.System
	stopping   *stopping.Evaluator
	autonomy   *autonomy.Manager
	humans     *human.Manager
	emitter    *events.Emitter
	store      *storage.Store
	tasks      agent.TaskStore
	status     *agent.StatusMachine

	mu       sync.Mutex
	blockers map[string]*agent.Blocker
	resolved map[string]*agent.Blocker
}

type serviceOptions struct {
	logger      *slog.Logger
	reasoner    llm.Reasoner
	store       *storage.Store
	tasks       agent.TaskStore
	mode        autonomy.Mode
	autonomyCfg autonomy.Config
	maxLLMCalls int
	maxDuration time.Duration
	toolTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger.Slog()
		}
	}
}

// WithReasoner sets the reasoning collaborator. Defaults to the
// offline rule reasoner.
func WithReasoner(r llm.Reasoner) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.reasoner = r
		}
	}
}

// WithStore enables checkpoint and task persistence.
func WithStore(store *storage.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.store = store
	}
}

// WithTaskStore replaces the in-memory live-task store.
func WithTaskStore(tasks agent.TaskStore) ServiceOption {
	return func(o *serviceOptions) {
		if tasks != nil {
			o.tasks = tasks
		}
	}
}

// WithMode sets the initial operation mode.
func WithMode(mode autonomy.Mode) ServiceOption {
	return func(o *serviceOptions) {
		if mode.Valid() {
			o.mode = mode
		}
	}
}

// WithAutonomyConfig sets the risk and completion configuration.
func WithAutonomyConfig(cfg autonomy.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.autonomyCfg = cfg
	}
}

// WithResourceCaps sets the budgets used by resource-exhaustion
// blocker detection.
func WithResourceCaps(maxLLMCalls int, maxDuration time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.maxLLMCalls = maxLLMCalls
		o.maxDuration = maxDuration
	}
}

// WithToolTimeout sets the default per-tool execution timeout.
func WithToolTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.toolTimeout = d
	}
}

// NewService assembles a controller with all subsystems wired.
func NewService(opts ...ServiceOption) *Service {
	o := &serviceOptions{
		logger:   slog.Default(),
		reasoner: llm.NewRuleReasoner(),
		tasks:    agent.NewInMemoryTaskStore(),
		mode:     autonomy.ModeSupervised,
	}
	for _, opt := range opts {
		opt(o)
	}

	registry := tools.NewRegistry()
	execOpts := []tools.ExecutorOption{tools.WithLogger(o.logger)}
	if o.toolTimeout > 0 {
		execOpts = append(execOpts, tools.WithTimeout(o.toolTimeout))
	}
	humanOpts := []human.Option{human.WithLogger(o.logger)}
	if o.maxLLMCalls > 0 || o.maxDuration > 0 {
		humanOpts = append(humanOpts, human.WithResourceCaps(o.maxLLMCalls, o.maxDuration))
	}

	return &Service{
		logger:     o.logger,
		registry:   registry,
		executor:   tools.NewExecutor(registry, execOpts...),
		reasoner:   o.reasoner,
		integrator: observe.NewIntegrator(observe.WithIntegratorLogger(o.logger)),
		recovery:   recovery.NewSystem(recovery.WithLogger(o.logger)),
		stopping:   stopping.NewEvaluator(o.logger),
		autonomy:   autonomy.NewManager(o.mode, o.autonomyCfg, o.logger),
		humans:     human.NewManager(humanOpts...),
		emitter:    events.NewEmitter(),
		store:      o.store,
		tasks:      o.tasks,
		status:     agent.DefaultStatusMachine,
		blockers:   make(map[string]*agent.Blocker),
		resolved:   make(map[string]*agent.Blocker),
	}
}

// RegisterTool registers a tool with the service registry.
func (s *Service) RegisterTool(t tools.Tool) error {
	return s.registry.Register(t)
}

// Events returns the event emitter for subscription.
func (s *Service) Events() *events.Emitter {
	return s.emitter
}

// SetOperationMode switches between autonomous, supervised, and manual
// operation.
func (s *Service) SetOperationMode(mode autonomy.Mode) error {
	return s.autonomy.SetMode(mode)
}

// ConfigureAutonomousOperation replaces the risk and completion
// configuration.
func (s *Service) ConfigureAutonomousOperation(cfg autonomy.Config) {
	s.autonomy.Configure(cfg)
}

// ProcessQuery creates a task for the query and drives it until it
// finishes or suspends on a checkpoint.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	query - The task query. Must not be blank.
//	opts - Per-task overrides, or nil for defaults.
//
// Outputs:
//
//	*Response - The task outcome, including partial state on failure.
//	error - Non-nil when the task could not be created or acquired.
func (s *Service) ProcessQuery(ctx context.Context, query string, opts *Options) (*Response, error) {
	cfg := agent.DefaultTaskConfig()
	if opts != nil {
		if opts.MaxIterations > 0 {
			cfg.MaxIterations = opts.MaxIterations
		}
		if opts.TimeLimit > 0 {
			cfg.TimeLimit = opts.TimeLimit
		}
		if opts.Strategy != "" {
			cfg.Strategy = opts.Strategy
		}
	}

	task, err := agent.NewTask(query, cfg)
	if err != nil {
		return nil, err
	}
	s.tasks.Put(task)

	s.logger.Info("Task accepted",
		slog.String("session_id", task.ID()),
		slog.Int("max_iterations", cfg.MaxIterations),
	)
	return s.drive(ctx, task)
}

// ResumeAfterHumanInput resolves a pending checkpoint and continues
// the task.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	checkpointID - The checkpoint to resolve. Resolvable exactly once.
//	input - The human payload. A "reject" or "abort" decision
//	        terminates the task with an error status.
//
// Outputs:
//
//	*Response - The outcome of the continued run.
//	error - agent.ErrCheckpointNotFound or agent.ErrCheckpointResolved.
func (s *Service) ResumeAfterHumanInput(ctx context.Context, checkpointID string, input agent.HumanInput) (*Response, error) {
	task := s.findTaskByCheckpoint(checkpointID)
	if task == nil {
		return nil, fmt.Errorf("checkpoint %q: %w", checkpointID, agent.ErrCheckpointNotFound)
	}

	resolved, err := task.ResolveCheckpoint(checkpointID, input)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(events.TypeCheckpointResolved, task.ID(), resolved.Iteration, resolved)
	if s.store != nil {
		if err := s.store.SaveCheckpoint(ctx, resolved); err != nil {
			s.logger.Warn("Failed to persist resolved checkpoint",
				slog.String("checkpoint_id", checkpointID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Remember what the human just reviewed so the identical blocker is
	// not raised again before the evidence changes.
	s.mu.Lock()
	if b, ok := s.blockers[task.ID()]; ok {
		s.resolved[task.ID()] = b
		delete(s.blockers, task.ID())
	}
	s.mu.Unlock()

	// Human steering enters the loop twice: as an observation for the
	// feedback integrator and as a reasoning entry so the thinking
	// history reflects the course correction.
	if guidance := guidanceText(input); guidance != "" {
		iter := task.CurrentIteration()
		task.AppendObservation(observe.ToolFeedback("human", guidance, iter))
		task.AppendReasoning(iter, "Human guidance received: "+guidance, task.Confidence())
	}

	if d := strings.ToLower(input.Decision); d == "reject" || d == "abort" {
		return s.terminate(ctx, task, fmt.Sprintf("human %sed the operation at checkpoint %s", d, checkpointID))
	}
	return s.drive(ctx, task)
}

// GetPendingCheckpoints returns all checkpoints awaiting human input,
// oldest first.
func (s *Service) GetPendingCheckpoints(ctx context.Context) ([]*agent.Checkpoint, error) {
	byID := make(map[string]*agent.Checkpoint)

	if s.store != nil {
		persisted, err := s.store.PendingCheckpoints(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range persisted {
			byID[cp.ID] = cp
		}
	}
	for _, id := range s.tasks.List() {
		task, ok := s.tasks.Get(id)
		if !ok {
			continue
		}
		for _, cp := range task.PendingCheckpoints() {
			c := cp
			byID[c.ID] = &c
		}
	}

	out := make([]*agent.Checkpoint, 0, len(byID))
	for _, cp := range byID {
		out = append(out, cp)
	}
	sortCheckpoints(out)
	return out, nil
}

// GetActiveBlockers returns the currently surfaced blocker per session.
func (s *Service) GetActiveBlockers() map[string]*agent.Blocker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*agent.Blocker, len(s.blockers))
	for id, b := range s.blockers {
		out[id] = b
	}
	return out
}

// GetProgressCommunication returns the progress reports rendered so
// far, oldest first.
func (s *Service) GetProgressCommunication() []human.ProgressReport {
	return s.humans.Communications()
}

// GetTask returns the live task state snapshot for a session.
func (s *Service) GetTask(sessionID string) (*agent.Snapshot, bool) {
	task, ok := s.tasks.Get(sessionID)
	if !ok {
		return nil, false
	}
	return task.Snapshot(), true
}

// drive runs the loop on an acquired task and renders the response.
func (s *Service) drive(ctx context.Context, task *agent.TaskState) (*Response, error) {
	if !task.TryAcquire() {
		return nil, agent.ErrTaskInProgress
	}
	defer task.Release()

	start := time.Now()
	if task.Status() == agent.StatusNotStarted {
		if err := s.status.Transition(task, agent.StatusProcessing); err != nil {
			return nil, err
		}
		task.MarkStarted()
		telemetry.TaskStarted()
		s.emitter.Emit(events.TypeTaskStart, task.ID(), 0, nil)
		s.emitter.Emit(events.TypeStatusTransition, task.ID(), 0, events.StatusTransitionData{
			From:   agent.StatusNotStarted,
			To:     agent.StatusProcessing,
			Reason: "task accepted",
		})
	}

	s.runLoop(ctx, task)

	snap := task.Snapshot()
	if snap.Status.IsTerminal() {
		telemetry.TaskFinished(string(snap.Status))
		s.emitter.Emit(events.TypeTaskEnd, task.ID(), snap.CurrentIteration, events.TaskEndData{
			Status:     snap.Status,
			Iterations: snap.CurrentIteration,
			Duration:   snap.Elapsed(),
			Confidence: snap.Confidence,
		})
	}
	if snap.Status.IsTerminal() || snap.AwaitingHumanInput {
		s.persistTask(ctx, snap)
	}
	return buildResponse(snap, time.Since(start)), nil
}

// terminate ends a task with an error status on human rejection.
func (s *Service) terminate(ctx context.Context, task *agent.TaskState, reason string) (*Response, error) {
	if !task.TryAcquire() {
		return nil, agent.ErrTaskInProgress
	}
	defer task.Release()

	start := time.Now()
	task.AppendError(agent.ErrorEntry{
		Iteration:   task.CurrentIteration(),
		Type:        "human_rejection",
		Message:     reason,
		Recoverable: false,
		Phase:       "checkpoint_resolution",
	})
	s.finish(task, agent.StatusError, reason)

	snap := task.Snapshot()
	telemetry.TaskFinished(string(snap.Status))
	s.emitter.Emit(events.TypeTaskEnd, task.ID(), snap.CurrentIteration, events.TaskEndData{
		Status:     snap.Status,
		Iterations: snap.CurrentIteration,
		Duration:   snap.Elapsed(),
		Confidence: snap.Confidence,
	})
	s.persistTask(ctx, snap)
	return buildResponse(snap, time.Since(start)), nil
}

// persistTask writes the snapshot to the durable store when configured.
func (s *Service) persistTask(ctx context.Context, snap *agent.Snapshot) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveTask(ctx, snap); err != nil {
		s.logger.Warn("Failed to persist task",
			slog.String("session_id", snap.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

// findTaskByCheckpoint locates the live task holding a checkpoint ID.
func (s *Service) findTaskByCheckpoint(checkpointID string) *agent.TaskState {
	for _, id := range s.tasks.List() {
		task, ok := s.tasks.Get(id)
		if !ok {
			continue
		}
		for _, cp := range task.Snapshot().Checkpoints {
			if cp.ID == checkpointID {
				return task
			}
		}
	}
	return nil
}

// guidanceText picks the steering text from a human payload.
func guidanceText(input agent.HumanInput) string {
	switch {
	case input.Guidance != "":
		return input.Guidance
	case input.Clarification != "":
		return input.Clarification
	case input.Feedback != "":
		return input.Feedback
	case input.Decision != "":
		return "human decision: " + input.Decision
	default:
		return ""
	}
}

// sortCheckpoints orders checkpoints by creation time ascending.
func sortCheckpoints(cps []*agent.Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		return cps[i].Timestamp.Before(cps[j].Timestamp)
	})
}

// newCheckpointID creates a unique checkpoint identifier.
func newCheckpointID() string {
	return uuid.NewString()
}
