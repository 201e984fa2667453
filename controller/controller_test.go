package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/configsvc"
	"github.com/taskgraph/groupcomm/driver"
)

type memPublisher struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	calls     map[string]int
	groups    []string
	failTasks map[string]bool
}

func newMemPublisher() *memPublisher {
	return &memPublisher{
		blobs:     make(map[string][]byte),
		calls:     make(map[string]int),
		failTasks: make(map[string]bool),
	}
}

func (m *memPublisher) Publish(ctx context.Context, group, taskID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := group + "/" + taskID
	m.calls[key]++
	if m.failTasks[taskID] {
		return errors.New("storage unavailable")
	}
	m.blobs[key] = blob
	return nil
}

func (m *memPublisher) GroupPublished(ctx context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, group)
	return nil
}

func (m *memPublisher) blob(group, taskID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[group+"/"+taskID]
}

func (m *memPublisher) setFail(taskID string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTasks[taskID] = fail
}

// scatterReduceDriver mirrors a job where the master scatters work to the
// slaves and reduces their answers.
func scatterReduceDriver(t *testing.T, numTasks int) *driver.Driver {
	d, err := driver.New("driver", "MasterTask", configsvc.NewProtoService())
	require.NoError(t, err)
	g, err := d.NewCommunicationGroup("ScatterReduce", numTasks)
	require.NoError(t, err)

	codec := groupcomm.CodecName("int")
	scatter, err := groupcomm.NewScatterSpec(d.MasterTaskID(), codec)
	require.NoError(t, err)
	reduce, err := groupcomm.NewReduceSpec(d.MasterTaskID(), codec, groupcomm.ReduceFunctionName("sum"))
	require.NoError(t, err)
	require.NoError(t, g.AddScatter("Scatter", scatter))
	require.NoError(t, g.AddReduce("Reduce", reduce))
	g.Seal()
	return d
}

func TestTaskID(t *testing.T) {
	d := scatterReduceDriver(t, 1)
	assert.Equal(t, "MasterTask", TaskID(d, true, "SlaveTask-", 0))
	assert.Equal(t, "SlaveTask-3", TaskID(d, false, "SlaveTask-", 3))
}

func TestControllerPublishesCompleteGroupOnce(t *testing.T) {
	d := scatterReduceDriver(t, 3)
	pub := newMemPublisher()
	c := New(d, pub)
	ctx := context.Background()

	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "SlaveTask-1"}))
	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "MasterTask"}))
	assert.False(t, c.Published("ScatterReduce"))
	assert.Empty(t, pub.blobs)

	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "SlaveTask-2", Groups: []string{"ScatterReduce"}}))
	require.True(t, c.Published("ScatterReduce"))
	require.NoError(t, c.Await(ctx))

	for _, id := range []string{"MasterTask", "SlaveTask-1", "SlaveTask-2"} {
		assert.Equal(t, 1, pub.calls["ScatterReduce/"+id], id)
	}
	assert.Equal(t, []string{"ScatterReduce"}, pub.groups)

	tc, err := driver.DecodeTaskConfiguration(d.Configs(), pub.blob("ScatterReduce", "MasterTask"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SlaveTask-1", "SlaveTask-2"}, tc.Operator("Scatter").Targets())

	// Publishing again is a no-op.
	require.NoError(t, c.Publish(ctx, "ScatterReduce"))
	assert.Equal(t, 1, pub.calls["ScatterReduce/MasterTask"])

	err = c.OnAllocated(ctx, Allocation{TaskID: "SlaveTask-3"})
	assert.Equal(t, groupcomm.CapacityViolation, groupcomm.KindOf(err))
}

func TestControllerRetriesFailedPublish(t *testing.T) {
	d := scatterReduceDriver(t, 2)
	pub := newMemPublisher()
	pub.setFail("SlaveTask-1", true)
	c := New(d, pub, WithParallelism(1))
	ctx := context.Background()

	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "MasterTask"}))
	err := c.OnAllocated(ctx, Allocation{TaskID: "SlaveTask-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage unavailable")
	assert.False(t, c.Published("ScatterReduce"))

	pub.setFail("SlaveTask-1", false)
	require.NoError(t, c.Publish(ctx, "ScatterReduce"))
	assert.True(t, c.Published("ScatterReduce"))
	assert.NotEmpty(t, pub.blob("ScatterReduce", "SlaveTask-1"))
}

func TestControllerPublishErrors(t *testing.T) {
	d := scatterReduceDriver(t, 2)
	c := New(d, newMemPublisher())
	ctx := context.Background()

	err := c.Publish(ctx, "ScatterReduce")
	assert.True(t, groupcomm.IsRetryable(err))

	err = c.Publish(ctx, "missing")
	assert.Equal(t, groupcomm.ConfigurationError, groupcomm.KindOf(err))

	err = c.OnAllocated(ctx, Allocation{TaskID: "MasterTask", Groups: []string{"missing"}})
	assert.Equal(t, groupcomm.ConfigurationError, groupcomm.KindOf(err))
}

func TestControllerRun(t *testing.T) {
	gt := NewGomegaWithT(t)
	const numTasks = 12

	d := scatterReduceDriver(t, numTasks)
	pub := newMemPublisher()
	c := New(d, pub, WithParallelism(4))

	allocations := make(chan Allocation)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background(), allocations) }()

	allocations <- Allocation{TaskID: TaskID(d, true, "", 0)}
	for n := 1; n < numTasks; n++ {
		allocations <- Allocation{TaskID: TaskID(d, false, "SlaveTask-", n)}
	}
	close(allocations)

	gt.Eventually(errc, time.Second).Should(Receive(BeNil()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	gt.Expect(c.Await(ctx)).To(Succeed())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	gt.Expect(pub.blobs).To(HaveLen(numTasks))
	for key, n := range pub.calls {
		gt.Expect(n).To(Equal(1), key)
	}
	gt.Expect(pub.blobs).To(HaveKey(fmt.Sprintf("ScatterReduce/SlaveTask-%d", numTasks-1)))
}

func TestAwaitTimesOutWhileIncomplete(t *testing.T) {
	d := scatterReduceDriver(t, 2)
	c := New(d, newMemPublisher())
	require.NoError(t, c.OnAllocated(context.Background(), Allocation{TaskID: "MasterTask"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, c.Await(ctx))
}

func TestAwaitIgnoresGroupsCreatedLater(t *testing.T) {
	d := scatterReduceDriver(t, 2)
	c := New(d, newMemPublisher())
	ctx := context.Background()

	late, err := d.NewCommunicationGroup("Late", 1)
	require.NoError(t, err)
	bcast, err := groupcomm.NewBroadcastSpec(d.MasterTaskID(), groupcomm.CodecName("bool"))
	require.NoError(t, err)
	require.NoError(t, late.AddBroadcast("Stop", bcast))
	late.Seal()

	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "MasterTask", Groups: []string{"Late"}}))
	assert.True(t, c.Published("Late"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, c.Await(short))

	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "MasterTask", Groups: []string{"ScatterReduce"}}))
	require.NoError(t, c.OnAllocated(ctx, Allocation{TaskID: "SlaveTask-1", Groups: []string{"ScatterReduce"}}))
	require.NoError(t, c.Await(ctx))
}

func TestRedeliveredAllocationRetriesFailedGroups(t *testing.T) {
	d, err := driver.New("driver", "MasterTask", configsvc.NewProtoService())
	require.NoError(t, err)
	bcast, err := groupcomm.NewBroadcastSpec(d.MasterTaskID(), groupcomm.CodecName("int"))
	require.NoError(t, err)

	first, err := d.NewCommunicationGroup("First", 1)
	require.NoError(t, err)
	require.NoError(t, first.AddBroadcast("Bcast", bcast))
	first.Seal()
	second, err := d.NewCommunicationGroup("Second", 1)
	require.NoError(t, err)
	require.NoError(t, second.AddBroadcast("Bcast", bcast))

	pub := newMemPublisher()
	c := New(d, pub)
	ctx := context.Background()
	a := Allocation{TaskID: "MasterTask"}

	// Second is not sealed yet, so the task only joins First.
	err = c.OnAllocated(ctx, a)
	assert.Equal(t, groupcomm.ProtocolViolation, groupcomm.KindOf(err))
	assert.True(t, first.IsMember("MasterTask"))
	assert.False(t, second.IsMember("MasterTask"))

	second.Seal()
	require.NoError(t, c.OnAllocated(ctx, a))
	require.NoError(t, c.Await(ctx))
	assert.Equal(t, []string{"MasterTask"}, first.TaskIDs())
	assert.Equal(t, 1, pub.calls["First/MasterTask"])
	assert.Equal(t, 1, pub.calls["Second/MasterTask"])
}
