package topo

import (
	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
)

// Info identifies the operator a topology lays out.
type Info struct {
	GroupName    string
	OperatorName string
	DriverID     string
	Spec         groupcomm.OperatorSpec
}

// members keeps registered task ids in join order.
type members struct {
	ids   []string
	index map[string]struct{}
}

func newMembers() members {
	return members{index: make(map[string]struct{})}
}

func (m *members) has(taskID string) bool {
	_, ok := m.index[taskID]
	return ok
}

func (m *members) add(info Info, taskID string) error {
	if taskID == "" {
		return errors.Wrapf(groupcomm.ErrEmptyTaskID, "operator %q", info.OperatorName)
	}
	if m.has(taskID) {
		return errors.Wrapf(groupcomm.ErrDuplicateMember,
			"task %q already registered in operator %q of group %q", taskID, info.OperatorName, info.GroupName)
	}
	m.index[taskID] = struct{}{}
	m.ids = append(m.ids, taskID)
	return nil
}

func (m *members) remove(taskID string) bool {
	if !m.has(taskID) {
		return false
	}
	delete(m.index, taskID)
	for i, id := range m.ids {
		if id == taskID {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return true
}

// rootFirst returns the root followed by every other member in join order.
// The root takes position 0 whether or not it has joined yet.
func (m *members) rootFirst(rootID string) []string {
	order := make([]string, 0, len(m.ids)+1)
	order = append(order, rootID)
	for _, id := range m.ids {
		if id != rootID {
			order = append(order, id)
		}
	}
	return order
}

func notMember(info Info, taskID string) error {
	return errors.Wrapf(groupcomm.ErrNotMember,
		"task %q in operator %q of group %q", taskID, info.OperatorName, info.GroupName)
}

func baseConfig(info Info, taskID string, role groupcomm.Role) *groupcomm.TaskConfig {
	c := &groupcomm.TaskConfig{
		GroupName:    info.GroupName,
		OperatorName: info.OperatorName,
		Kind:         info.Spec.Kind(),
		DriverID:     info.DriverID,
		TaskID:       taskID,
		Role:         role,
		RootID:       info.Spec.RootID(),
		Codec:        info.Spec.Codec().Name(),
	}
	if fn := info.Spec.ReduceFunction(); fn != nil {
		c.ReduceFunction = fn.Name()
	}
	return c
}
