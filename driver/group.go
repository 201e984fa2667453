package driver

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/configsvc"
	"github.com/taskgraph/groupcomm/topo"
	"go.uber.org/zap"
)

type groupState int

const (
	stateOpen groupState = iota
	stateSealed
)

type operatorEntry struct {
	name     string
	spec     groupcomm.OperatorSpec
	strategy topo.Strategy
	topology groupcomm.RevertibleTopology
}

// CommunicationGroup is a named set of collective operators that run on the
// same tasks. Operators are added while the group is open; Seal closes the
// operator set and opens task registration. Once the declared number of tasks
// joined, every member's configuration can be built.
//
// One mutex guards the lifecycle state, the membership and every operator
// topology, so AddTask registers a task in all operators or in none.
type CommunicationGroup struct {
	name     string
	driverID string
	numTasks int

	assembler assembler
	logger    *zap.Logger
	metrics   *Metrics

	mu        sync.Mutex
	state     groupState
	operators []*operatorEntry
	byName    map[string]*operatorEntry
	taskIDs   []string
	members   map[string]struct{}
}

// NewCommunicationGroup creates an open group expecting numTasks members.
// configs serializes the per-task configurations.
func NewCommunicationGroup(name, driverID string, numTasks int, configs configsvc.Service, opts ...Option) (*CommunicationGroup, error) {
	switch {
	case name == "":
		return nil, errors.Wrap(groupcomm.ErrInvalidArg, "group name is empty")
	case numTasks < 1:
		return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "group %q: number of tasks must be positive, got %d", name, numTasks)
	case configs == nil:
		return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "group %q: configuration service is nil", name)
	}
	if err := groupcomm.CheckName("group name", name); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	g := &CommunicationGroup{
		name:      name,
		driverID:  driverID,
		numTasks:  numTasks,
		assembler: assembler{configs: configs},
		logger:    o.logger.With(zap.String("group", name)),
		metrics:   o.metrics,
		byName:    make(map[string]*operatorEntry),
		members:   make(map[string]struct{}),
	}
	g.metrics.TargetTasks.WithLabelValues(name).Set(float64(numTasks))
	g.metrics.RegisteredTasks.WithLabelValues(name).Set(0)
	return g, nil
}

// AddBroadcast adds a broadcast operator laid out as a flat topology.
func (g *CommunicationGroup) AddBroadcast(name string, spec groupcomm.OperatorSpec) error {
	return g.addKind(groupcomm.Broadcast, name, spec)
}

// AddReduce adds a reduce operator laid out as a flat topology.
func (g *CommunicationGroup) AddReduce(name string, spec groupcomm.OperatorSpec) error {
	return g.addKind(groupcomm.Reduce, name, spec)
}

// AddScatter adds a scatter operator laid out as a flat topology.
func (g *CommunicationGroup) AddScatter(name string, spec groupcomm.OperatorSpec) error {
	return g.addKind(groupcomm.Scatter, name, spec)
}

func (g *CommunicationGroup) addKind(kind groupcomm.Kind, name string, spec groupcomm.OperatorSpec) error {
	if spec.Kind() != kind {
		return errors.Wrapf(groupcomm.ErrInvalidSpec, "operator %q: expected a %s spec, got %s", name, kind, spec.Kind())
	}
	return g.AddOperator(name, spec, topo.Default)
}

// AddOperator adds an operator of any kind with the given topology strategy.
// It fails once the group is sealed or when name is already taken.
func (g *CommunicationGroup) AddOperator(name string, spec groupcomm.OperatorSpec, strategy topo.Strategy) error {
	if name == "" {
		return errors.Wrapf(groupcomm.ErrInvalidArg, "group %q: operator name is empty", g.name)
	}
	if err := groupcomm.CheckName("operator name", name); err != nil {
		return errors.WithMessagef(err, "group %q", g.name)
	}
	if err := spec.Validate(); err != nil {
		return errors.WithMessagef(err, "group %q operator %q", g.name, name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != stateOpen {
		return errors.Wrapf(groupcomm.ErrGroupSealed, "cannot add operator %q to group %q", name, g.name)
	}
	if _, ok := g.byName[name]; ok {
		return errors.Wrapf(groupcomm.ErrDuplicateOperator, "operator %q in group %q", name, g.name)
	}
	topology, err := strategy.New(topo.Info{
		GroupName:    g.name,
		OperatorName: name,
		DriverID:     g.driverID,
		Spec:         spec,
	})
	if err != nil {
		return errors.WithMessagef(err, "group %q operator %q", g.name, name)
	}

	e := &operatorEntry{name: name, spec: spec, strategy: strategy, topology: topology}
	g.operators = append(g.operators, e)
	g.byName[name] = e
	g.logger.Debug("operator added",
		zap.String("operator", name),
		zap.Stringer("kind", spec.Kind()),
		zap.String("root", spec.RootID()),
		zap.Stringer("topology", strategy))
	return nil
}

// Seal closes the operator set. Calling it again has no effect.
func (g *CommunicationGroup) Seal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateSealed {
		g.logger.Debug("group already sealed")
		return
	}
	g.state = stateSealed
	g.logger.Info("group sealed", zap.Int("operators", len(g.operators)), zap.Int("tasks", g.numTasks))
}

// AddTask registers taskID in every operator of the group. The group must be
// sealed and not yet full. If any topology rejects the task, registrations
// already made for this call are undone and nothing changes.
func (g *CommunicationGroup) AddTask(taskID string) error {
	err := g.addTask(taskID)
	if err != nil {
		g.metrics.AddTaskFailures.WithLabelValues(g.name, groupcomm.KindOf(err).String()).Inc()
	}
	return err
}

func (g *CommunicationGroup) addTask(taskID string) error {
	if taskID == "" {
		return errors.Wrapf(groupcomm.ErrEmptyTaskID, "group %q", g.name)
	}
	if err := groupcomm.CheckName("task id", taskID); err != nil {
		return errors.WithMessagef(err, "group %q", g.name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != stateSealed {
		return errors.Wrapf(groupcomm.ErrGroupNotSealed, "cannot add task %q to group %q", taskID, g.name)
	}
	if len(g.taskIDs) >= g.numTasks {
		return errors.Wrapf(groupcomm.ErrCapacityExceeded,
			"cannot add task %q to group %q, expected %d tasks", taskID, g.name, g.numTasks)
	}
	if _, ok := g.members[taskID]; ok {
		return errors.Wrapf(groupcomm.ErrDuplicateMember, "task %q in group %q", taskID, g.name)
	}

	for i, e := range g.operators {
		if err := e.topology.AddMember(taskID); err != nil {
			for _, done := range g.operators[:i] {
				done.topology.RemoveMember(taskID)
			}
			g.logger.Warn("task registration rolled back",
				zap.String("task", taskID), zap.String("operator", e.name), zap.Error(err))
			return errors.WithMessagef(err, "group %q", g.name)
		}
	}

	g.taskIDs = append(g.taskIDs, taskID)
	g.members[taskID] = struct{}{}
	g.metrics.RegisteredTasks.WithLabelValues(g.name).Set(float64(len(g.taskIDs)))
	g.logger.Debug("task added", zap.String("task", taskID), zap.Int("registered", len(g.taskIDs)))
	if len(g.taskIDs) == g.numTasks {
		g.logger.Info("group complete", zap.Strings("tasks", g.taskIDs))
	}
	return nil
}

// GetGroupTaskConfiguration returns the serialized configuration taskID needs
// to take part in every operator of the group. It fails immediately with
// ErrUnknownTask for non-members and ErrIncompleteGroup while tasks are still
// missing; it never waits. The output is byte-identical for identical group
// state.
func (g *CommunicationGroup) GetGroupTaskConfiguration(taskID string) ([]byte, error) {
	g.mu.Lock()
	if _, ok := g.members[taskID]; !ok {
		g.mu.Unlock()
		return nil, errors.Wrapf(groupcomm.ErrUnknownTask, "task %q in group %q", taskID, g.name)
	}
	if registered := len(g.taskIDs); registered != g.numTasks {
		g.mu.Unlock()
		return nil, errors.Wrapf(groupcomm.ErrIncompleteGroup,
			"group %q has %d of %d tasks", g.name, registered, g.numTasks)
	}
	// The group is full and sealed, so neither the operator list nor any
	// topology changes from here on.
	operators := g.operators
	g.mu.Unlock()

	opConfigs := make([]*groupcomm.TaskConfig, 0, len(operators))
	for _, e := range operators {
		c, err := e.topology.BuildTaskConfig(taskID)
		if err != nil {
			return nil, errors.WithMessagef(err, "group %q operator %q", g.name, e.name)
		}
		opConfigs = append(opConfigs, c)
	}
	blob, err := g.assembler.assemble(g.name, g.driverID, taskID, opConfigs)
	if err != nil {
		return nil, errors.WithMessagef(err, "group %q task %q", g.name, taskID)
	}
	g.metrics.ConfigurationsBuilt.WithLabelValues(g.name).Inc()
	return blob, nil
}

// RoleOf returns taskID's role in the named operator.
func (g *CommunicationGroup) RoleOf(operator, taskID string) (groupcomm.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.byName[operator]
	if !ok {
		return groupcomm.RoleInvalid, errors.Wrapf(groupcomm.ErrInvalidArg, "group %q has no operator %q", g.name, operator)
	}
	return e.topology.RoleOf(taskID)
}

func (g *CommunicationGroup) Name() string     { return g.name }
func (g *CommunicationGroup) DriverID() string { return g.driverID }
func (g *CommunicationGroup) Target() int      { return g.numTasks }

// TaskIDs returns the members in join order.
func (g *CommunicationGroup) TaskIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.taskIDs...)
}

// IsMember reports whether taskID has been added to the group.
func (g *CommunicationGroup) IsMember(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.members[taskID]
	return ok
}

func (g *CommunicationGroup) Registered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.taskIDs)
}

func (g *CommunicationGroup) Sealed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateSealed
}

// Complete reports whether every declared task has joined.
func (g *CommunicationGroup) Complete() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.taskIDs) == g.numTasks
}

// Operators returns the operator names in the order they were added.
func (g *CommunicationGroup) Operators() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.operators))
	for _, e := range g.operators {
		names = append(names, e.name)
	}
	return names
}
