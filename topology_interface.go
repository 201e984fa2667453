/*
The topology is the communication graph of one operator over the members of
its group. The group driver owns one topology per operator and uses it in two
phases.

While workers are allocated, the driver calls AddMember for every task, on
every topology of the group, inside one critical section.

Once the group is complete, the driver calls BuildTaskConfig for each task so
the worker learns its role and the logical ids of its neighbors. The transport
layer resolves those ids to endpoints at task start.
*/
package groupcomm

import "github.com/pkg/errors"

// Role is the part a task plays in one operator.
type Role int

const (
	RoleInvalid Role = iota
	// Root is the single source (broadcast, scatter) or sink (reduce).
	RoleRoot
	// Interior tasks have both a parent and children; flat topologies have none.
	RoleInterior
	RoleLeaf
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleInterior:
		return "interior"
	case RoleLeaf:
		return "leaf"
	default:
		return "invalid"
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "root":
		return RoleRoot, nil
	case "interior":
		return RoleInterior, nil
	case "leaf":
		return RoleLeaf, nil
	}
	return RoleInvalid, errors.Wrapf(ErrInvalidArg, "unknown role %q", s)
}

// Topology is implemented once per layout strategy. Implementations only move
// task ids and codec names around; they are not safe for concurrent mutation
// and rely on the group lock.
type Topology interface {
	// AddMember fails with ErrDuplicateMember if taskID is already registered.
	AddMember(taskID string) error

	// RoleOf reports the root's role even before the root joins. Any other id
	// must be a member.
	RoleOf(taskID string) (Role, error)

	// BuildTaskConfig fails with ErrNotMember if taskID never joined.
	BuildTaskConfig(taskID string) (*TaskConfig, error)
}

// RevertibleTopology lets the group driver undo the registration it just made
// when a later topology in the same group rejects the task. It is never used
// to shrink a visible membership.
type RevertibleTopology interface {
	Topology
	RemoveMember(taskID string) bool
}

// TaskConfig is the operator-scoped view of one task.
type TaskConfig struct {
	GroupName    string
	OperatorName string
	Kind         Kind
	DriverID     string
	TaskID       string
	Role         Role
	RootID       string

	// Parent is empty for the root.
	Parent   string
	Children []string

	Codec          string
	ReduceFunction string
}

// Targets returns the ids this task sends payloads to.
func (c *TaskConfig) Targets() []string {
	if c.Kind == Reduce {
		return c.parentSlice()
	}
	return c.Children
}

// Sources returns the ids this task receives payloads from.
func (c *TaskConfig) Sources() []string {
	if c.Kind == Reduce {
		return c.Children
	}
	return c.parentSlice()
}

func (c *TaskConfig) parentSlice() []string {
	if c.Parent == "" {
		return nil
	}
	return []string{c.Parent}
}
