package driver

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/configsvc"
)

// Parameter names written into task configurations.
const (
	ParamDriverID        = "driver_id"
	ParamGroupName       = "group_name"
	ParamTaskID          = "task_id"
	ParamOperatorName    = "operator_name"
	ParamOperatorKind    = "operator_kind"
	ParamRole            = "role"
	ParamRootID          = "root_id"
	ParamParent          = "parent"
	ParamChildren        = "children"
	ParamCodec           = "codec"
	ParamReduceFunction  = "reduce_function"
	ParamOperatorConfigs = "serialized_operator_configs"
)

// assembler merges the group metadata and every operator's serialized
// configuration into one blob.
type assembler struct {
	configs configsvc.Service
}

func (a assembler) assemble(groupName, driverID, taskID string, ops []*groupcomm.TaskConfig) ([]byte, error) {
	base, err := a.configs.Build(configsvc.NewBindings().
		Bind(ParamDriverID, driverID).
		Bind(ParamGroupName, groupName).
		Bind(ParamTaskID, taskID))
	if err != nil {
		return nil, err
	}

	// Operators go in in the order they were added to the group so the set
	// entries, and therefore the bytes, are stable.
	entries := configsvc.NewBindings()
	for _, op := range ops {
		conf, err := a.configs.Build(operatorBindings(op))
		if err != nil {
			return nil, errors.WithMessagef(err, "operator %q", op.OperatorName)
		}
		sub, err := a.configs.Serialize(conf)
		if err != nil {
			return nil, errors.WithMessagef(err, "operator %q", op.OperatorName)
		}
		entries.BindSetEntry(ParamOperatorConfigs, base64.StdEncoding.EncodeToString(sub))
	}

	merged, err := a.configs.Merge(base, entries)
	if err != nil {
		return nil, err
	}
	return a.configs.Serialize(merged)
}

func operatorBindings(c *groupcomm.TaskConfig) *configsvc.Bindings {
	b := configsvc.NewBindings().
		Bind(ParamDriverID, c.DriverID).
		Bind(ParamGroupName, c.GroupName).
		Bind(ParamTaskID, c.TaskID).
		Bind(ParamOperatorName, c.OperatorName).
		Bind(ParamOperatorKind, c.Kind.String()).
		Bind(ParamRole, c.Role.String()).
		Bind(ParamRootID, c.RootID).
		Bind(ParamCodec, c.Codec)
	if c.Parent != "" {
		b.Bind(ParamParent, c.Parent)
	}
	if c.ReduceFunction != "" {
		b.Bind(ParamReduceFunction, c.ReduceFunction)
	}
	for _, child := range c.Children {
		b.BindSetEntry(ParamChildren, child)
	}
	return b
}

// TaskConfiguration is the decoded form of the blob returned by
// GetGroupTaskConfiguration. Workers use it at start-up.
type TaskConfiguration struct {
	DriverID  string
	GroupName string
	TaskID    string
	Operators []*groupcomm.TaskConfig
}

// Operator returns the configuration of the named operator, or nil.
func (tc *TaskConfiguration) Operator(name string) *groupcomm.TaskConfig {
	for _, op := range tc.Operators {
		if op.OperatorName == name {
			return op
		}
	}
	return nil
}

// DecodeTaskConfiguration reverses GetGroupTaskConfiguration. configs must be
// the same kind of service the group was built with.
func DecodeTaskConfiguration(configs configsvc.Service, blob []byte) (*TaskConfiguration, error) {
	conf, err := configs.Deserialize(blob)
	if err != nil {
		return nil, err
	}
	tc := &TaskConfiguration{}
	if tc.DriverID, err = lookup(conf, ParamDriverID); err != nil {
		return nil, err
	}
	if tc.GroupName, err = lookup(conf, ParamGroupName); err != nil {
		return nil, err
	}
	if tc.TaskID, err = lookup(conf, ParamTaskID); err != nil {
		return nil, err
	}
	for _, entry := range conf.GetSet(ParamOperatorConfigs) {
		raw, err := base64.StdEncoding.DecodeString(entry)
		if err != nil {
			return nil, errors.Wrap(err, "decode operator configuration")
		}
		sub, err := configs.Deserialize(raw)
		if err != nil {
			return nil, err
		}
		op, err := decodeOperator(sub)
		if err != nil {
			return nil, err
		}
		tc.Operators = append(tc.Operators, op)
	}
	return tc, nil
}

func decodeOperator(conf *configsvc.Configuration) (*groupcomm.TaskConfig, error) {
	c := &groupcomm.TaskConfig{}
	var err error
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{ParamDriverID, &c.DriverID},
		{ParamGroupName, &c.GroupName},
		{ParamTaskID, &c.TaskID},
		{ParamOperatorName, &c.OperatorName},
		{ParamRootID, &c.RootID},
		{ParamCodec, &c.Codec},
	} {
		if *p.dst, err = lookup(conf, p.name); err != nil {
			return nil, err
		}
	}
	kind, err := lookup(conf, ParamOperatorKind)
	if err != nil {
		return nil, err
	}
	if c.Kind, err = groupcomm.ParseKind(kind); err != nil {
		return nil, err
	}
	role, err := lookup(conf, ParamRole)
	if err != nil {
		return nil, err
	}
	if c.Role, err = groupcomm.ParseRole(role); err != nil {
		return nil, err
	}
	c.Parent, _ = conf.Get(ParamParent)
	c.ReduceFunction, _ = conf.Get(ParamReduceFunction)
	c.Children = conf.GetSet(ParamChildren)
	return c, nil
}

func lookup(conf *configsvc.Configuration, name string) (string, error) {
	v, ok := conf.Get(name)
	if !ok {
		return "", errors.Wrapf(groupcomm.ErrInvalidArg, "configuration lacks %q", name)
	}
	return v, nil
}
