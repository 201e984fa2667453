package topo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgraph/groupcomm"
)

type treeTopoTest struct {
	id       string
	role     groupcomm.Role
	parent   string
	children []string
}

func taskIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i)
	}
	return ids
}

func TestTreeTopology8(t *testing.T) {
	//     t0
	//   t1   t2
	// t3 t4 t5 t6
	// t7
	testTreeTopology(t, 2, 8, []treeTopoTest{
		{"t0", groupcomm.RoleRoot, "", []string{"t1", "t2"}},
		{"t1", groupcomm.RoleInterior, "t0", []string{"t3", "t4"}},
		{"t3", groupcomm.RoleInterior, "t1", []string{"t7"}},
		{"t5", groupcomm.RoleLeaf, "t2", nil},
		{"t7", groupcomm.RoleLeaf, "t3", nil},
	})
}

func TestTreeTopology9(t *testing.T) {
	//     t0
	//   t1   t2
	// t3 t4 t5 t6
	// t7 t8
	testTreeTopology(t, 2, 9, []treeTopoTest{
		{"t0", groupcomm.RoleRoot, "", []string{"t1", "t2"}},
		{"t1", groupcomm.RoleInterior, "t0", []string{"t3", "t4"}},
		{"t3", groupcomm.RoleInterior, "t1", []string{"t7", "t8"}},
		{"t8", groupcomm.RoleLeaf, "t3", nil},
	})
}

func TestPipelineTopology(t *testing.T) {
	topo := NewPipeline(broadcastInfo(t, "t0"))
	addAll(t, topo, taskIDs(3)...)

	expected := []treeTopoTest{
		{"t0", groupcomm.RoleRoot, "", []string{"t1"}},
		{"t1", groupcomm.RoleInterior, "t0", []string{"t2"}},
		{"t2", groupcomm.RoleLeaf, "t1", nil},
	}
	checkTree(t, topo, expected)
}

func TestTreeRootSlotIsReservedBeforeRootJoins(t *testing.T) {
	topo, err := NewTree(broadcastInfo(t, "t0"), 2)
	require.NoError(t, err)
	addAll(t, topo, "t1", "t2", "t3")

	c, err := topo.BuildTaskConfig("t1")
	require.NoError(t, err)
	assert.Equal(t, "t0", c.Parent)
	assert.Equal(t, []string{"t3"}, c.Children)
}

func TestTreeRejectsBadFanout(t *testing.T) {
	_, err := NewTree(broadcastInfo(t, "t0"), 0)
	assert.Equal(t, groupcomm.ConfigurationError, groupcomm.KindOf(err))
}

func testTreeTopology(t *testing.T, fanout, number int, tests []treeTopoTest) {
	topo, err := NewTree(broadcastInfo(t, "t0"), fanout)
	require.NoError(t, err)
	addAll(t, topo, taskIDs(number)...)
	checkTree(t, topo, tests)
}

func checkTree(t *testing.T, topo *Tree, tests []treeTopoTest) {
	for _, tt := range tests {
		role, err := topo.RoleOf(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.role, role, "role of %s", tt.id)

		c, err := topo.BuildTaskConfig(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.parent, c.Parent, "parent of %s", tt.id)
		assert.Equal(t, tt.children, c.Children, "children of %s", tt.id)
	}
}
