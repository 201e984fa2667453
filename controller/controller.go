package controller

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/driver"
	"github.com/taskgraph/groupcomm/pkg/common"
	"go.uber.org/zap"
)

// Publisher delivers a task's configuration to the worker that runs it.
type Publisher interface {
	Publish(ctx context.Context, group, taskID string, blob []byte) error
}

// GroupPublisher is a Publisher that also records when a whole group is out.
type GroupPublisher interface {
	Publisher
	GroupPublished(ctx context.Context, group string) error
}

// Allocation reports a worker the resource manager handed to the job.
// Delivering the same allocation again is safe: groups the task already
// joined are skipped, so a redelivery retries only what failed.
type Allocation struct {
	TaskID string
	// Groups the task belongs to. Empty means every group of the driver.
	Groups []string
}

type publishState int

const (
	notPublished publishState = iota
	publishing
	published
)

// This is the controller of a job.
// It sits between the resource manager and the driver: every allocated
// worker is added to its communication groups, and once a group has all of
// its tasks, every member's configuration is built and published exactly
// once. Groups must be created and sealed before the controller is.
type Controller struct {
	driver      *driver.Driver
	publisher   Publisher
	parallelism int
	logger      *zap.Logger

	mu     sync.Mutex
	states map[string]publishState
	// awaited are the groups known at construction; only they count down
	// the latch.
	awaited map[string]struct{}
	latch   *common.CountDownLatch
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithParallelism bounds how many configurations are published at once.
func WithParallelism(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

func New(d *driver.Driver, p Publisher, opts ...Option) *Controller {
	c := &Controller{
		driver:      d,
		publisher:   p,
		parallelism: 8,
		logger:      zap.NewNop(),
		states:      make(map[string]publishState),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("driver", d.DriverID()))
	groups := d.Groups()
	c.awaited = make(map[string]struct{}, len(groups))
	for _, g := range groups {
		c.awaited[g.Name()] = struct{}{}
	}
	c.latch = common.NewCountDownLatch(len(groups))
	return c
}

// TaskID names the task of the n-th allocated context: the master task id
// for the master context, prefix followed by n otherwise.
func TaskID(d *driver.Driver, master bool, prefix string, n int) string {
	if master {
		return d.MasterTaskID()
	}
	return prefix + strconv.Itoa(n)
}

// OnAllocated adds taskID to its groups and publishes every group it
// completed. Groups are independent: a failure in one leaves the earlier
// groups' registrations in place, and those groups are skipped when the
// allocation is delivered again.
func (c *Controller) OnAllocated(ctx context.Context, a Allocation) error {
	groups, err := c.resolve(a.Groups)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.IsMember(a.TaskID) {
			continue
		}
		if err := g.AddTask(a.TaskID); err != nil {
			return err
		}
	}
	c.logger.Debug("task allocated", zap.String("task", a.TaskID), zap.Int("groups", len(groups)))
	for _, g := range groups {
		if !g.Complete() {
			continue
		}
		if err := c.publish(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// Run handles allocations concurrently until the channel is closed, then
// returns every error seen.
func (c *Controller) Run(ctx context.Context, allocations <-chan Allocation) error {
	p := pool.New().WithErrors().WithMaxGoroutines(c.parallelism)
	for a := range allocations {
		a := a
		p.Go(func() error { return c.OnAllocated(ctx, a) })
	}
	return p.Wait()
}

// Publish publishes the configurations of a complete group. It is a no-op
// for a group that is already published, so it can be used to retry.
func (c *Controller) Publish(ctx context.Context, group string) error {
	g, ok := c.driver.Group(group)
	if !ok {
		return errors.Wrapf(groupcomm.ErrInvalidArg, "unknown group %q", group)
	}
	if !g.Complete() {
		return errors.Wrapf(groupcomm.ErrIncompleteGroup,
			"group %q has %d of %d tasks", group, g.Registered(), g.Target())
	}
	return c.publish(ctx, g)
}

func (c *Controller) publish(ctx context.Context, g *driver.CommunicationGroup) error {
	c.mu.Lock()
	if c.states[g.Name()] != notPublished {
		c.mu.Unlock()
		return nil
	}
	c.states[g.Name()] = publishing
	c.mu.Unlock()

	err := c.publishMembers(ctx, g)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.states[g.Name()] = notPublished
		c.logger.Warn("publishing group failed", zap.String("group", g.Name()), zap.Error(err))
		return err
	}
	c.states[g.Name()] = published
	if _, ok := c.awaited[g.Name()]; ok {
		c.latch.CountDown()
	}
	c.logger.Info("group published", zap.String("group", g.Name()), zap.Int("tasks", g.Target()))
	return nil
}

func (c *Controller) publishMembers(ctx context.Context, g *driver.CommunicationGroup) error {
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(c.parallelism)
	for _, id := range g.TaskIDs() {
		id := id
		p.Go(func(ctx context.Context) error {
			blob, err := g.GetGroupTaskConfiguration(id)
			if err != nil {
				return err
			}
			return errors.WithMessagef(c.publisher.Publish(ctx, g.Name(), id, blob), "task %q", id)
		})
	}
	if err := p.Wait(); err != nil {
		return errors.WithMessagef(err, "group %q", g.Name())
	}
	if gp, ok := c.publisher.(GroupPublisher); ok {
		return gp.GroupPublished(ctx, g.Name())
	}
	return nil
}

// Published reports whether every member of group has been published.
func (c *Controller) Published(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[group] == published
}

// Await blocks until every group known at construction is published or ctx
// is done. Groups created later are published but not awaited.
func (c *Controller) Await(ctx context.Context) error {
	return c.latch.Await(ctx)
}

func (c *Controller) resolve(names []string) ([]*driver.CommunicationGroup, error) {
	if len(names) == 0 {
		return c.driver.Groups(), nil
	}
	groups := make([]*driver.CommunicationGroup, 0, len(names))
	for _, n := range names {
		g, ok := c.driver.Group(n)
		if !ok {
			return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "unknown group %q", n)
		}
		groups = append(groups, g)
	}
	return groups, nil
}
