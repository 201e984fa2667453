/*
Package driver is the coordinator side of group communication. A Driver owns
the communication groups of one job; each CommunicationGroup enforces the
open/sealed lifecycle, registers tasks across all of its operator topologies
atomically and assembles per-task configuration once every member is known.

The package never talks to workers. Whatever launches them (see package
controller) hands each worker the bytes returned by
GetGroupTaskConfiguration.
*/
package driver

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/configsvc"
	"go.uber.org/zap"
)

// Driver creates and tracks the communication groups of one job. The master
// task is the conventional root of the job's operators.
type Driver struct {
	driverID     string
	masterTaskID string
	configs      configsvc.Service
	opts         []Option
	logger       *zap.Logger

	mu     sync.Mutex
	groups map[string]*CommunicationGroup
	order  []string
}

func New(driverID, masterTaskID string, configs configsvc.Service, opts ...Option) (*Driver, error) {
	if driverID == "" {
		return nil, errors.Wrap(groupcomm.ErrInvalidArg, "driver id is empty")
	}
	if masterTaskID == "" {
		return nil, errors.Wrap(groupcomm.ErrInvalidArg, "master task id is empty")
	}
	if configs == nil {
		return nil, errors.Wrap(groupcomm.ErrInvalidArg, "configuration service is nil")
	}
	for _, n := range []struct{ what, name string }{{"driver id", driverID}, {"master task id", masterTaskID}} {
		if err := groupcomm.CheckName(n.what, n.name); err != nil {
			return nil, err
		}
	}
	o := buildOptions(opts)
	// Groups share the driver's logger and collectors.
	shared := []Option{WithLogger(o.logger), WithMetrics(o.metrics)}
	return &Driver{
		driverID:     driverID,
		masterTaskID: masterTaskID,
		configs:      configs,
		opts:         shared,
		logger:       o.logger.With(zap.String("driver", driverID)),
		groups:       make(map[string]*CommunicationGroup),
	}, nil
}

// NewCommunicationGroup creates an open group of numTasks tasks.
func (d *Driver) NewCommunicationGroup(name string, numTasks int) (*CommunicationGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.groups[name]; ok {
		return nil, errors.Wrapf(groupcomm.ErrDuplicateGroup, "group %q", name)
	}
	g, err := NewCommunicationGroup(name, d.driverID, numTasks, d.configs, d.opts...)
	if err != nil {
		return nil, err
	}
	d.groups[name] = g
	d.order = append(d.order, name)
	d.logger.Info("communication group created", zap.String("group", name), zap.Int("tasks", numTasks))
	return g, nil
}

func (d *Driver) Group(name string) (*CommunicationGroup, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[name]
	return g, ok
}

// Groups returns the groups in creation order.
func (d *Driver) Groups() []*CommunicationGroup {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]*CommunicationGroup, 0, len(d.order))
	for _, name := range d.order {
		res = append(res, d.groups[name])
	}
	return res
}

func (d *Driver) IsMasterTask(taskID string) bool { return taskID == d.masterTaskID }

func (d *Driver) DriverID() string     { return d.driverID }
func (d *Driver) MasterTaskID() string { return d.masterTaskID }

// Configs is the service used by every group of this driver.
func (d *Driver) Configs() configsvc.Service { return d.configs }
