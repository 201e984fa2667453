package topo

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
)

const (
	FlatName     = "flat"
	TreeName     = "tree"
	PipelineName = "pipeline"
)

// Strategy selects the layout of an operator's topology. The group driver
// picks one per operator; the topologies themselves do not know about each
// other.
type Strategy struct {
	Name string
	// Fanout is only read by the tree layout.
	Fanout int
}

// Default is the flat layout.
var Default = Strategy{Name: FlatName}

func ParseStrategy(name string, fanout int) (Strategy, error) {
	switch name {
	case "", FlatName:
		return Default, nil
	case PipelineName:
		return Strategy{Name: PipelineName}, nil
	case TreeName:
		if fanout < 1 {
			return Strategy{}, errors.Wrapf(groupcomm.ErrInvalidArg, "tree fanout must be positive, got %d", fanout)
		}
		return Strategy{Name: TreeName, Fanout: fanout}, nil
	}
	return Strategy{}, errors.Wrapf(groupcomm.ErrInvalidArg, "unknown topology %q", name)
}

// New builds an empty topology for the operator described by info.
func (s Strategy) New(info Info) (groupcomm.RevertibleTopology, error) {
	switch s.Name {
	case "", FlatName:
		return NewFlat(info), nil
	case PipelineName:
		return NewPipeline(info), nil
	case TreeName:
		t, err := NewTree(info, s.Fanout)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "unknown topology %q", s.Name)
}

func (s Strategy) String() string {
	if s.Name == TreeName {
		return s.Name + "/" + strconv.Itoa(s.Fanout)
	}
	if s.Name == "" {
		return FlatName
	}
	return s.Name
}
