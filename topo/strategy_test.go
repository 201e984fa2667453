package topo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgraph/groupcomm"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		fanout  int
		want    string
		wantErr bool
	}{
		{"", 0, "flat", false},
		{"flat", 0, "flat", false},
		{"pipeline", 0, "pipeline", false},
		{"tree", 3, "tree/3", false},
		{"tree", 0, "", true},
		{"ring", 0, "", true},
	}
	for _, tt := range tests {
		s, err := ParseStrategy(tt.name, tt.fanout)
		if tt.wantErr {
			assert.Equal(t, groupcomm.ConfigurationError, groupcomm.KindOf(err), tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.String())
	}
}

func TestStrategyNewBuildsMatchingTopology(t *testing.T) {
	info := broadcastInfo(t, "m0")

	flat, err := Default.New(info)
	require.NoError(t, err)
	assert.IsType(t, &Flat{}, flat)

	tree, err := Strategy{Name: TreeName, Fanout: 2}.New(info)
	require.NoError(t, err)
	assert.IsType(t, &Tree{}, tree)

	_, err = Strategy{Name: TreeName}.New(info)
	assert.Error(t, err)

	_, err = Strategy{Name: "mesh"}.New(info)
	assert.Error(t, err)
}
