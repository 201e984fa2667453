package config

import (
	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/configsvc"
	"github.com/taskgraph/groupcomm/driver"
	"github.com/taskgraph/groupcomm/topo"
)

// BuildDriver creates the job's driver with every group declared, its
// operators added and sealed, ready for task registration.
func (j *Job) BuildDriver(opts ...driver.Option) (*driver.Driver, error) {
	svc, err := configsvc.New(j.Serializer)
	if err != nil {
		return nil, err
	}
	d, err := driver.New(j.DriverID, j.MasterTaskID, svc, opts...)
	if err != nil {
		return nil, err
	}
	for _, gc := range j.Groups {
		g, err := d.NewCommunicationGroup(gc.Name, gc.NumTasks)
		if err != nil {
			return nil, err
		}
		for _, oc := range gc.Operators {
			spec, err := oc.spec(j.MasterTaskID)
			if err != nil {
				return nil, errors.WithMessagef(err, "group %q operator %q", gc.Name, oc.Name)
			}
			strategy, err := topo.ParseStrategy(oc.Topology, oc.Fanout)
			if err != nil {
				return nil, errors.WithMessagef(err, "group %q operator %q", gc.Name, oc.Name)
			}
			if err := g.AddOperator(oc.Name, spec, strategy); err != nil {
				return nil, err
			}
		}
		g.Seal()
	}
	return d, nil
}

func (o Operator) spec(master string) (groupcomm.OperatorSpec, error) {
	root := o.Root
	if root == "" {
		root = master
	}
	kind, err := groupcomm.ParseKind(o.Kind)
	if err != nil {
		return groupcomm.OperatorSpec{}, err
	}
	codec := groupcomm.CodecName(o.Codec)
	switch kind {
	case groupcomm.Broadcast:
		return groupcomm.NewBroadcastSpec(root, codec)
	case groupcomm.Reduce:
		return groupcomm.NewReduceSpec(root, codec, groupcomm.ReduceFunctionName(o.ReduceFunction))
	default:
		return groupcomm.NewScatterSpec(root, codec)
	}
}
