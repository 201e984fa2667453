package filesystem

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a running namenode: namenode_addr=host:8020 hdfs_user=hdfs
func TestHdfsClient(t *testing.T) {
	addr := os.Getenv("namenode_addr")
	if addr == "" {
		t.Skip("namenode_addr not set")
	}
	client, err := NewHdfsClient(addr, os.Getenv("hdfs_user"))
	require.NoError(t, err)

	p := NewPublisher(client, "/tmp/groupcomm-test", nil)
	require.NoError(t, p.Publish(context.Background(), "G", "m0", []byte("heyhey")))

	r, err := client.OpenReadCloser(p.TaskConfigPath("G", "m0"))
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "heyhey", string(data))

	matches, err := client.Glob("/tmp/groupcomm-test/G/*.conf")
	require.NoError(t, err)
	assert.Contains(t, matches, "/tmp/groupcomm-test/G/m0.conf")
	require.NoError(t, client.Remove(p.TaskConfigPath("G", "m0")))
}
