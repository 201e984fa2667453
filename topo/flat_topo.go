package topo

import "github.com/taskgraph/groupcomm"

// Flat is a star: every leaf talks to the root directly. One hop for
// everyone, and the root carries all the traffic.
type Flat struct {
	info    Info
	members members
}

func NewFlat(info Info) *Flat {
	return &Flat{info: info, members: newMembers()}
}

func (t *Flat) AddMember(taskID string) error { return t.members.add(t.info, taskID) }

func (t *Flat) RemoveMember(taskID string) bool { return t.members.remove(taskID) }

func (t *Flat) RoleOf(taskID string) (groupcomm.Role, error) {
	if taskID == t.info.Spec.RootID() {
		return groupcomm.RoleRoot, nil
	}
	if !t.members.has(taskID) {
		return groupcomm.RoleInvalid, notMember(t.info, taskID)
	}
	return groupcomm.RoleLeaf, nil
}

func (t *Flat) BuildTaskConfig(taskID string) (*groupcomm.TaskConfig, error) {
	if !t.members.has(taskID) {
		return nil, notMember(t.info, taskID)
	}
	role, err := t.RoleOf(taskID)
	if err != nil {
		return nil, err
	}
	c := baseConfig(t.info, taskID, role)
	if role == groupcomm.RoleRoot {
		// Everybody but the root, in join order.
		c.Children = t.members.rootFirst(t.info.Spec.RootID())[1:]
	} else {
		c.Parent = t.info.Spec.RootID()
	}
	return c, nil
}
