package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgraph/groupcomm"
	"github.com/taskgraph/groupcomm/topo"
)

const jobYAML = `
name: pagerank
groups:
  - name: ScatterReduce
    num_tasks: 3
    operators:
      - name: Scatter
        kind: scatter
        codec: int
      - name: Reduce
        kind: reduce
        codec: int
        reduce_function: sum
        topology: tree
        fanout: 2
  - name: Control
    num_tasks: 2
    operators:
      - name: Stop
        kind: broadcast
        codec: bool
publish:
  target: etcd
  endpoints: [localhost:2379]
`

func loadYAML(t *testing.T, doc string) (*Job, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
	return Load(v)
}

func TestLoad(t *testing.T) {
	job, err := loadYAML(t, jobYAML)
	require.NoError(t, err)

	assert.Equal(t, "pagerank", job.Name)
	assert.Equal(t, "MasterTask", job.MasterTaskID)
	assert.Equal(t, "SlaveTask-", job.WorkerPrefix)
	assert.Equal(t, "proto", job.Serializer)
	assert.Equal(t, 3, job.MaxTasks())
	require.Len(t, job.Groups, 2)
	assert.Equal(t, Operator{
		Name:           "Reduce",
		Kind:           "reduce",
		Codec:          "int",
		ReduceFunction: "sum",
		Topology:       "tree",
		Fanout:         2,
	}, job.Groups[0].Operators[1])
	assert.Equal(t, []string{"localhost:2379"}, job.Publish.Endpoints)
	assert.Equal(t, 5*time.Second, job.Publish.DialTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GROUPCTL_PUBLISH_ENDPOINTS", "a:2379,b:2379")
	t.Setenv("GROUPCTL_PUBLISH_DIAL_TIMEOUT", "250ms")

	v := viper.New()
	v.SetConfigType("yaml")
	BindEnv(v)
	SetDefaults(v)
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(jobYAML)))

	job, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:2379", "b:2379"}, job.Publish.Endpoints)
	assert.Equal(t, 250*time.Millisecond, job.Publish.DialTimeout)
}

func TestValidate(t *testing.T) {
	_, err := loadYAML(t, `
parallelism: 0
groups:
  - name: ""
    num_tasks: 0
publish:
  target: s3
`)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"parallelism",
		"groups[0].name",
		"groups[0].num_tasks",
		"groups[0].operators",
		"publish.target",
	}, fields)
	assert.Contains(t, err.Error(), "5 validation errors")

	_, err = loadYAML(t, "publish:\n  target: dir\n")
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, err.Error(), "publish.dir")
}

func TestBuildDriver(t *testing.T) {
	job, err := loadYAML(t, jobYAML)
	require.NoError(t, err)

	d, err := job.BuildDriver()
	require.NoError(t, err)
	require.Len(t, d.Groups(), 2)

	g, ok := d.Group("ScatterReduce")
	require.True(t, ok)
	assert.True(t, g.Sealed())
	assert.Equal(t, 3, g.Target())
	assert.Equal(t, []string{"Scatter", "Reduce"}, g.Operators())

	for _, id := range []string{"MasterTask", "SlaveTask-1", "SlaveTask-2"} {
		require.NoError(t, g.AddTask(id))
	}
	// With fanout 2 the master has both slaves as children in the tree.
	role, err := g.RoleOf("Reduce", "MasterTask")
	require.NoError(t, err)
	assert.Equal(t, groupcomm.RoleRoot, role)
	role, err = g.RoleOf("Reduce", "SlaveTask-2")
	require.NoError(t, err)
	assert.Equal(t, groupcomm.RoleLeaf, role)
}

func TestBuildDriverRejectsBadOperators(t *testing.T) {
	base := func() *Job {
		j := Default()
		j.Groups = []Group{{Name: "g", NumTasks: 2, Operators: []Operator{{Name: "op", Kind: "broadcast", Codec: "int"}}}}
		return j
	}

	tests := []struct {
		name   string
		mutate func(*Job)
		kind   groupcomm.ErrorKind
	}{
		{"unknown kind", func(j *Job) { j.Groups[0].Operators[0].Kind = "gather" }, groupcomm.ConfigurationError},
		{"missing codec", func(j *Job) { j.Groups[0].Operators[0].Codec = "" }, groupcomm.ConfigurationError},
		{"reduce without function", func(j *Job) { j.Groups[0].Operators[0].Kind = "reduce" }, groupcomm.ConfigurationError},
		{"tree without fanout", func(j *Job) { j.Groups[0].Operators[0].Topology = topo.TreeName }, groupcomm.ConfigurationError},
		{"unknown serializer", func(j *Job) { j.Serializer = "xml" }, groupcomm.ConfigurationError},
		{"duplicate operator", func(j *Job) {
			j.Groups[0].Operators = append(j.Groups[0].Operators, j.Groups[0].Operators[0])
		}, groupcomm.MembershipError},
		{"duplicate group", func(j *Job) { j.Groups = append(j.Groups, j.Groups[0]) }, groupcomm.MembershipError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := base()
			tt.mutate(j)
			_, err := j.BuildDriver()
			require.Error(t, err)
			assert.Equal(t, tt.kind, groupcomm.KindOf(err))
		})
	}
}
