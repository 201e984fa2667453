package etcdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DriverPath("job"), "/job/driver"},
		{GroupDir("job", "G"), "/job/groups/G"},
		{GroupStatusPath("job", "G"), "/job/groups/G/status"},
		{TaskDir("job", "G"), "/job/groups/G/tasks"},
		{TaskConfigPath("job", "G", "m1"), "/job/groups/G/tasks/m1/config"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}
