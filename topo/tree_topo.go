package topo

import (
	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
)

// Tree arranges the members as a complete tree with the given fanout. The root
// sits at position 0 and the other members follow in join order, so position
// i > 0 has parent (i-1)/fanout. For fanout 2:
//
//	    0
//	  1   2
//	 3 4 5 6
//	7
type Tree struct {
	info    Info
	fanout  int
	members members
}

func NewTree(info Info, fanout int) (*Tree, error) {
	if fanout < 1 {
		return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "tree fanout must be positive, got %d", fanout)
	}
	return &Tree{info: info, fanout: fanout, members: newMembers()}, nil
}

// NewPipeline is a tree with fanout 1: a chain starting at the root.
func NewPipeline(info Info) *Tree {
	return &Tree{info: info, fanout: 1, members: newMembers()}
}

func (t *Tree) AddMember(taskID string) error { return t.members.add(t.info, taskID) }

func (t *Tree) RemoveMember(taskID string) bool { return t.members.remove(taskID) }

func (t *Tree) RoleOf(taskID string) (groupcomm.Role, error) {
	if taskID == t.info.Spec.RootID() {
		return groupcomm.RoleRoot, nil
	}
	if !t.members.has(taskID) {
		return groupcomm.RoleInvalid, notMember(t.info, taskID)
	}
	order := t.members.rootFirst(t.info.Spec.RootID())
	if len(t.children(order, position(order, taskID))) > 0 {
		return groupcomm.RoleInterior, nil
	}
	return groupcomm.RoleLeaf, nil
}

func (t *Tree) BuildTaskConfig(taskID string) (*groupcomm.TaskConfig, error) {
	if !t.members.has(taskID) {
		return nil, notMember(t.info, taskID)
	}
	role, err := t.RoleOf(taskID)
	if err != nil {
		return nil, err
	}
	order := t.members.rootFirst(t.info.Spec.RootID())
	pos := position(order, taskID)
	c := baseConfig(t.info, taskID, role)
	if pos > 0 {
		c.Parent = order[(pos-1)/t.fanout]
	}
	c.Children = t.children(order, pos)
	return c, nil
}

func (t *Tree) children(order []string, pos int) []string {
	var res []string
	for i := t.fanout*pos + 1; i <= t.fanout*pos+t.fanout && i < len(order); i++ {
		res = append(res, order[i])
	}
	return res
}

func position(order []string, taskID string) int {
	for i, id := range order {
		if id == taskID {
			return i
		}
	}
	return -1
}
