package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/trigger"
	"github.com/penguintechinc/waddlebot-sub014/pkg/otelhelper"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
	"github.com/penguintechinc/waddlebot-sub014/pkg/trace"
)

// DefaultTimeout is the wall-clock budget of one execution.
const DefaultTimeout = 30 * time.Second

// MainBranch names the branch every execution starts on.
const MainBranch = "main"

var (
	// ErrLoopLimitExceeded is reported by loops still running at their ceiling.
	ErrLoopLimitExceeded = protocol.ErrLoopLimitExceeded

	// ErrMergeIncomplete is reported when an all-of merge can never be satisfied.
	ErrMergeIncomplete = errors.New("merge barrier incomplete")

	// ErrNoTriggerMatched describes a not_matched result.
	ErrNoTriggerMatched = errors.New("no trigger matched the event")
)

// NodeError is an executor failure attributed to a node.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Executors resolves the executor for a node type.
type Executors interface {
	Executor(nodeType models.NodeType) (protocol.NodeExecutor, error)
}

// Engine interprets workflow definitions. It is safe for concurrent use; each
// Execute call owns its own state.
type Engine struct {
	executors Executors
	logger    *slog.Logger
	tracer    oteltrace.Tracer
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-execution deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(tracer oteltrace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the execution id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine creates an engine resolving executors from executors.
func NewEngine(executors Executors, opts ...Option) *Engine {
	e := &Engine{
		executors: executors,
		logger:    slog.Default(),
		tracer:    otelhelper.NoopTracer(),
		timeout:   DefaultTimeout,
		now:       time.Now,
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "workflow_engine")

	return e
}

// Execute runs def against event until every branch finishes, a stop node
// fires, a node fails, ctx is cancelled or the engine deadline passes. The
// returned error is non-nil only for unusable input; run failures are
// reported through the result status.
func (e *Engine) Execute(ctx context.Context, def *models.WorkflowDefinition, event models.TriggerEvent) (*models.ExecutionResult, error) {
	if def == nil {
		return nil, errors.New("workflow definition is nil")
	}

	if event.CommunityID == "" {
		event.CommunityID = def.CommunityID
	}

	executionID := e.newID()
	start := e.now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, def.ID),
		attribute.String(otelhelper.WorkflowNameKey, def.Name),
		attribute.Int(otelhelper.WorkflowVersionKey, def.Version),
		attribute.String(otelhelper.CommunityIDKey, event.CommunityID),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.TriggerTypeKey, event.Type),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", def.ID, "execution_id", executionID)

	result := &models.ExecutionResult{
		ID:         executionID,
		WorkflowID: def.ID,
		StartTime:  start,
		Steps:      []models.ExecutionStep{},
	}

	matched := MatchTriggers(def, event)
	if len(matched) == 0 {
		logger.DebugContext(ctx, "no trigger matched", "trigger_type", event.Type)

		result.Status = models.ExecutionStatusNotMatched
		result.Error = ErrNoTriggerMatched.Error()
		result.EndTime = e.now()
		span.SetAttributes(attribute.String(otelhelper.ExecutionStatusKey, string(result.Status)))

		return result, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	execCtx, stop := context.WithCancel(runCtx)
	defer stop()

	r := &run{
		engine:    e,
		def:       def,
		ectx:      models.NewExecutionContext(executionID, def.ID, event),
		recorder:  trace.NewRecorder(),
		callerCtx: ctx,
		runCtx:    runCtx,
		execCtx:   execCtx,
		stop:      stop,
		logger:    logger,
		merges:    make(map[string]*barrier),
	}

	logger.InfoContext(ctx, "starting execution", "matched_triggers", len(matched))

	queue := make([]task, 0, len(matched))
	for _, node := range matched {
		queue = append(queue, task{nodeID: node.ID})
	}

	r.wg.Add(1)
	r.runBranch(MainBranch, queue)
	r.wg.Wait()

	r.closeMerges()
	r.finish(result)
	result.EndTime = e.now()

	otelhelper.SetOutcome(span, string(result.Status), result.Error)

	logger.InfoContext(ctx, "execution finished",
		"status", result.Status,
		"steps", len(result.Steps),
		"duration", result.EndTime.Sub(start))

	return result, nil
}

// MatchTriggers returns the trigger nodes of def matching event, in declaration order.
func MatchTriggers(def *models.WorkflowDefinition, event models.TriggerEvent) []*models.Node {
	var matched []*models.Node

	for _, node := range def.TriggerNodes() {
		if cfg, ok := node.Config.(*models.TriggerConfig); ok && trigger.Match(cfg, event) {
			matched = append(matched, node)
		}
	}

	return matched
}

// task is one queued node visit. forks is the stack of split forks the visit
// belongs to, innermost last. merged marks a merge visit whose barrier already fired.
type task struct {
	nodeID string
	via    string
	forks  []*fork
	merged bool
}

func (t task) innermost() *fork {
	if len(t.forks) == 0 {
		return nil
	}

	return t.forks[len(t.forks)-1]
}

// fork tracks the sub-branches spawned by one split node. pending counts the
// queued visits and nested forks still owned by the fork.
type fork struct {
	id           string
	parentBranch string
	parentForks  []*fork
	pending      int
	done         bool
	merges       map[string]*barrier
	mergeOrder   []string
}

// barrier is the state of one merge node within one fork.
type barrier struct {
	node     *models.Node
	policy   string
	expected int
	waitFor  map[string]bool
	arrived  map[string]bool
	arrivals int
	visits   int
	fired    bool
	branch   string
}

func newBarrier(def *models.WorkflowDefinition, node *models.Node, cfg *models.FlowConfig) *barrier {
	b := &barrier{
		node:     node,
		policy:   cfg.MergePolicy(),
		expected: len(def.IncomingEdges(node.ID)),
		arrived:  make(map[string]bool),
	}

	if len(cfg.WaitFor) > 0 {
		b.waitFor = make(map[string]bool, len(cfg.WaitFor))
		for _, source := range cfg.WaitFor {
			b.waitFor[source] = true
		}
	}

	return b
}

func (b *barrier) awaits(source string) bool {
	return b.waitFor == nil || b.waitFor[source]
}

func (b *barrier) reset() {
	b.arrivals = 0
	b.visits = 0
	b.fired = false
	b.arrived = make(map[string]bool)
}

func (b *barrier) satisfied() bool {
	if b.policy == models.MergePolicyAny {
		return b.arrivals > 0
	}

	if len(b.waitFor) > 0 {
		for source := range b.waitFor {
			if !b.arrived[source] {
				return false
			}
		}

		return true
	}

	return b.arrivals >= b.expected
}

type run struct {
	engine    *Engine
	def       *models.WorkflowDefinition
	ectx      *models.ExecutionContext
	recorder  *trace.Recorder
	callerCtx context.Context
	runCtx    context.Context
	execCtx   context.Context
	stop      context.CancelFunc
	logger    *slog.Logger
	wg        sync.WaitGroup

	mu      sync.Mutex
	status  models.ExecutionStatus
	err     error
	forkSeq int
	forks   []*fork

	// merges reached outside any split
	merges     map[string]*barrier
	mergeOrder []string
}

// halt records the first terminal status and interrupts running executors.
// Later calls are ignored.
func (r *run) halt(status models.ExecutionStatus, err error) {
	r.mu.Lock()

	if r.status != "" {
		r.mu.Unlock()

		return
	}

	r.status = status
	r.err = err
	r.mu.Unlock()

	r.stop()
}

func (r *run) halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status != ""
}

// interrupted maps a done run context to cancelled or timeout.
func (r *run) interrupted() (models.ExecutionStatus, bool) {
	if r.runCtx.Err() == nil {
		return "", false
	}

	if r.callerCtx.Err() != nil {
		return models.ExecutionStatusCancelled, true
	}

	return models.ExecutionStatusTimeout, true
}

// runBranch drains one branch's FIFO queue. The caller has already called wg.Add.
func (r *run) runBranch(branch string, queue []task) {
	defer r.wg.Done()

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if status, ok := r.interrupted(); ok {
			r.halt(status, r.runCtx.Err())
		}

		if r.halted() {
			r.skip(branch, append([]task{current}, queue...))

			return
		}

		next, ok := r.visit(branch, current)
		if !ok {
			r.skip(branch, queue)

			return
		}

		queue = append(queue, next...)
	}
}

// visit runs one node and returns the visits it enqueues on the same branch.
// It returns false when the run halted.
func (r *run) visit(branch string, current task) ([]task, bool) {
	node, found := r.def.NodeByID(current.nodeID)
	if !found {
		r.halt(models.ExecutionStatusFailed, &NodeError{NodeID: current.nodeID, Err: errors.New("node not found")})

		return nil, false
	}

	if cfg, isFlow := node.Config.(*models.FlowConfig); isFlow && cfg.FlowType == models.FlowTypeMerge && !current.merged {
		if current.innermost() == nil {
			return r.arriveOutsideFork(branch, node, cfg, current), true
		}

		r.arrive(branch, node, cfg, current)

		return nil, true
	}

	result, err := r.execute(branch, node)
	if err != nil {
		if status, interrupted := r.interrupted(); interrupted {
			r.halt(status, r.runCtx.Err())

			return nil, false
		}

		if !node.ContinueOnError() {
			r.halt(models.ExecutionStatusFailed, &NodeError{NodeID: node.ID, Err: err})
			r.settle(current.forks, 0, 1)

			return nil, false
		}

		result.Port = models.PortError
		if len(r.def.OutgoingEdges(node.ID, models.PortError)) == 0 {
			result.Port = models.PortDefault
		}
	}

	switch result.Directive {
	case protocol.DirectiveStop:
		r.halt(models.ExecutionStatusStopped, nil)

		return nil, false

	case protocol.DirectiveSplit:
		r.split(branch, node, current)

		return nil, true
	}

	edges := r.def.OutgoingEdges(node.ID, result.Port)
	next := make([]task, 0, len(edges))

	for _, edge := range edges {
		next = append(next, task{nodeID: edge.Target, via: node.ID, forks: current.forks})
	}

	r.settle(current.forks, len(next), 1)

	return next, true
}

// execute invokes the node's executor and records the step.
func (r *run) execute(branch string, node *models.Node) (protocol.Result, error) {
	ctx, span := otelhelper.StartSpan(r.execCtx, r.engine.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		attribute.String(otelhelper.BranchKey, branch),
	)
	defer span.End()

	logger := r.logger.With("node_id", node.ID, "node_type", node.Type, "branch", branch)
	started := r.engine.now()

	var (
		result protocol.Result
		err    error
	)

	executor, err := r.engine.executors.Executor(node.Type)
	if err == nil {
		result, err = executor.Execute(ctx, protocol.Request{
			Node:    node,
			Context: r.ectx,
			Branch:  branch,
			Logger:  logger,
		})
	}

	step := models.ExecutionStep{
		NodeID:    node.ID,
		Branch:    branch,
		Status:    models.StepStatusCompleted,
		Port:      result.Port,
		StartedAt: started,
		Duration:  r.engine.now().Sub(started),
		Output:    result.Output,
	}

	switch {
	case err != nil && r.execCtx.Err() != nil:
		step.Status = models.StepStatusSkipped
		step.Output = map[string]any{"reason": "interrupted"}

		logger.DebugContext(ctx, "node interrupted", "error", err)
	case err != nil:
		step.Status = models.StepStatusFailed
		step.Error = err.Error()

		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))
		logger.WarnContext(ctx, "node failed", "error", err, "continue_on_error", node.ContinueOnError())
	default:
		span.SetAttributes(attribute.String(otelhelper.PortKey, result.Port))
		logger.DebugContext(ctx, "node completed", "port", result.Port)
	}

	r.recorder.Record(step)

	return result, err
}

// split starts one concurrent branch per outgoing edge.
func (r *run) split(branch string, node *models.Node, current task) {
	edges := r.def.OutgoingEdges(node.ID, models.PortDefault)
	if len(edges) == 0 {
		r.settle(current.forks, 0, 1)

		return
	}

	r.mu.Lock()
	r.forkSeq++
	f := &fork{
		id:           fmt.Sprintf("%s#%d", node.ID, r.forkSeq),
		parentBranch: branch,
		parentForks:  current.forks,
		pending:      len(edges),
		merges:       make(map[string]*barrier),
	}
	r.forks = append(r.forks, f)
	r.mu.Unlock()

	// the new fork replaces the split visit in the enclosing fork
	r.settle(current.forks, 1, 1)

	forks := make([]*fork, len(current.forks)+1)
	copy(forks, current.forks)
	forks[len(forks)-1] = f

	r.wg.Add(len(edges))

	for i, edge := range edges {
		child := fmt.Sprintf("%s/%s.%d", branch, node.ID, i+1)
		go r.runBranch(child, []task{{nodeID: edge.Target, via: node.ID, forks: forks}})
	}
}

// arrive registers a visit at a merge node inside a fork. When the barrier
// fires, the merge node runs as the fork's parent branch.
func (r *run) arrive(branch string, node *models.Node, cfg *models.FlowConfig, current task) {
	f := current.innermost()

	r.mu.Lock()

	b, ok := f.merges[node.ID]
	if !ok {
		b = newBarrier(r.def, node, cfg)
		f.merges[node.ID] = b
		f.mergeOrder = append(f.mergeOrder, node.ID)
	}

	if b.fired {
		r.mu.Unlock()

		r.recordLateArrival(branch, node, "merge already fired")
		r.settle(current.forks, 0, 1)

		return
	}

	b.arrivals++
	b.arrived[current.via] = true
	b.branch = branch
	fire := b.satisfied()

	if fire {
		b.fired = true
	}

	r.mu.Unlock()

	if !fire {
		r.settle(current.forks, 0, 1)

		return
	}

	// the continuation belongs to the enclosing fork, the arrival leaves this one
	r.settle(f.parentForks, 1, 0)
	r.settle(current.forks, 0, 1)

	r.wg.Add(1)

	go r.runBranch(f.parentBranch, []task{{nodeID: node.ID, via: current.via, forks: f.parentForks, merged: true}})
}

// arriveOutsideFork registers a visit at a merge that no split encloses. The
// barrier continues on the arriving branch once satisfied. All-of barriers
// start over after firing and any-of barriers once every inbound edge was
// seen, so loop bodies can pass the merge again.
func (r *run) arriveOutsideFork(branch string, node *models.Node, cfg *models.FlowConfig, current task) []task {
	r.mu.Lock()

	b, ok := r.merges[node.ID]
	if !ok {
		b = newBarrier(r.def, node, cfg)
		r.merges[node.ID] = b
		r.mergeOrder = append(r.mergeOrder, node.ID)
	}

	b.visits++

	var (
		fire   bool
		reason string
	)

	switch {
	case b.fired:
		reason = "merge already fired"
	case !b.awaits(current.via):
		reason = "source not awaited"
	default:
		b.arrivals++
		b.arrived[current.via] = true
		b.branch = branch

		if b.satisfied() {
			b.fired = true
			fire = true
		}
	}

	if b.fired && (b.policy != models.MergePolicyAny || b.visits >= b.expected) {
		b.reset()
	}

	r.mu.Unlock()

	if reason != "" {
		r.recordLateArrival(branch, node, reason)

		return nil
	}

	if !fire {
		return nil
	}

	return []task{{nodeID: node.ID, via: current.via, forks: current.forks, merged: true}}
}

// closeMerges fails a run that drained while a merge outside any fork still
// waited for inbound branches.
func (r *run) closeMerges() {
	r.mu.Lock()

	incomplete := ""

	for _, id := range r.mergeOrder {
		if b := r.merges[id]; !b.fired && b.arrivals > 0 {
			incomplete = id

			break
		}
	}

	r.mu.Unlock()

	if incomplete != "" {
		r.halt(models.ExecutionStatusFailed, &NodeError{
			NodeID: incomplete,
			Err:    fmt.Errorf("%w: execution drained before every inbound branch arrived", ErrMergeIncomplete),
		})
	}
}

func (r *run) recordLateArrival(branch string, node *models.Node, reason string) {
	r.recorder.Record(models.ExecutionStep{
		NodeID:    node.ID,
		Branch:    branch,
		Status:    models.StepStatusSkipped,
		StartedAt: r.engine.now(),
		Output:    map[string]any{"reason": reason},
	})
}

// settle adds then removes visits owned by the innermost fork of forks and
// completes forks whose last visit finished.
func (r *run) settle(forks []*fork, add, remove int) {
	if len(forks) == 0 {
		return
	}

	f := forks[len(forks)-1]

	r.mu.Lock()

	f.pending += add - remove
	if f.pending > 0 || f.done {
		r.mu.Unlock()

		return
	}

	f.done = true

	var incomplete []string

	for _, id := range f.mergeOrder {
		b := f.merges[id]
		if !b.fired && b.arrivals > 0 {
			incomplete = append(incomplete, id)
		}
	}

	r.mu.Unlock()

	if len(incomplete) > 0 {
		r.halt(models.ExecutionStatusFailed, &NodeError{
			NodeID: incomplete[0],
			Err:    fmt.Errorf("%w: fork %s finished before every inbound branch arrived", ErrMergeIncomplete, f.id),
		})
	}

	// the fork's own slot in the enclosing fork
	r.settle(f.parentForks, 0, 1)
}

// skip records queued visits that will never run.
func (r *run) skip(branch string, queue []task) {
	now := r.engine.now()

	for _, t := range queue {
		r.recorder.Skip(t.nodeID, branch, now)
	}
}

// finish fills the result from the run state.
func (r *run) finish(result *models.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == "" {
		r.status = models.ExecutionStatusCompleted
	}

	if r.status != models.ExecutionStatusCompleted {
		now := r.engine.now()

		for _, f := range r.forks {
			for _, id := range f.mergeOrder {
				b := f.merges[id]
				if !b.fired && b.arrivals > 0 {
					r.recorder.Skip(id, b.branch, now)
				}
			}
		}

		for _, id := range r.mergeOrder {
			if b := r.merges[id]; !b.fired && b.arrivals > 0 {
				r.recorder.Skip(id, b.branch, now)
			}
		}
	}

	result.Status = r.status
	result.Steps = r.recorder.Steps()
	result.Output = r.ectx.Variables()

	if r.err != nil {
		result.Error = r.err.Error()
	}
}
