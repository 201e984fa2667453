// Package config reads the job definition used by groupctl: the driver, its
// communication groups with their operators, and where the task
// configurations are published.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Publish targets.
const (
	TargetStdout = "stdout"
	TargetDir    = "dir"
	TargetEtcd   = "etcd"
	TargetHDFS   = "hdfs"
)

// Job is the complete job definition.
type Job struct {
	Name         string `mapstructure:"name"`
	DriverID     string `mapstructure:"driver_id"`
	MasterTaskID string `mapstructure:"master_task_id"`
	// WorkerPrefix names the non-master tasks: prefix followed by the
	// allocation index.
	WorkerPrefix string `mapstructure:"worker_prefix"`
	// Serializer is "proto" or "yaml".
	Serializer string `mapstructure:"serializer"`
	// Parallelism bounds concurrent publishes.
	Parallelism int `mapstructure:"parallelism"`

	Groups  []Group       `mapstructure:"groups"`
	Publish PublishConfig `mapstructure:"publish"`
}

// Group declares a communication group.
type Group struct {
	Name      string     `mapstructure:"name"`
	NumTasks  int        `mapstructure:"num_tasks"`
	Operators []Operator `mapstructure:"operators"`
}

// Operator declares one operator of a group.
type Operator struct {
	Name string `mapstructure:"name"`
	// Kind is "broadcast", "reduce" or "scatter".
	Kind string `mapstructure:"kind"`
	// Root defaults to the job's master task.
	Root           string `mapstructure:"root"`
	Codec          string `mapstructure:"codec"`
	ReduceFunction string `mapstructure:"reduce_function"`
	// Topology is "flat" (default), "tree" or "pipeline".
	Topology string `mapstructure:"topology"`
	Fanout   int    `mapstructure:"fanout"`
}

// PublishConfig selects the store workers read their configuration from.
type PublishConfig struct {
	Target string `mapstructure:"target"`

	// dir
	Dir string `mapstructure:"dir"`

	// etcd
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// hdfs
	Namenode string `mapstructure:"namenode"`
	User     string `mapstructure:"user"`
	Root     string `mapstructure:"root"`
}

// Default returns the defaults applied under a job file.
func Default() *Job {
	return &Job{
		Name:         "groupcomm",
		DriverID:     "driver",
		MasterTaskID: "MasterTask",
		WorkerPrefix: "SlaveTask-",
		Serializer:   "proto",
		Parallelism:  8,
		Publish: PublishConfig{
			Target:      TargetStdout,
			DialTimeout: 5 * time.Second,
			Root:        "/groupcomm",
		},
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("name", defaults.Name)
	v.SetDefault("driver_id", defaults.DriverID)
	v.SetDefault("master_task_id", defaults.MasterTaskID)
	v.SetDefault("worker_prefix", defaults.WorkerPrefix)
	v.SetDefault("serializer", defaults.Serializer)
	v.SetDefault("parallelism", defaults.Parallelism)

	v.SetDefault("publish.target", defaults.Publish.Target)
	v.SetDefault("publish.dial_timeout", defaults.Publish.DialTimeout)
	v.SetDefault("publish.root", defaults.Publish.Root)
}

// Load decodes and validates the job held by v. Durations may be given as
// strings ("3s") and endpoint lists as comma separated strings, which is what
// environment variables produce.
func Load(v *viper.Viper) (*Job, error) {
	var job Job
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&job, hook); err != nil {
		return nil, err
	}
	if errs := job.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &job, nil
}

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the fields that cannot be checked by the driver itself.
// Operator specs and topologies are validated when the driver is built.
func (j *Job) Validate() []ValidationError {
	var errs []ValidationError
	required := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Field: field, Value: value, Message: "must not be empty"})
		}
	}
	required("driver_id", j.DriverID)
	required("master_task_id", j.MasterTaskID)
	required("worker_prefix", j.WorkerPrefix)
	if j.Parallelism < 1 {
		errs = append(errs, ValidationError{Field: "parallelism", Value: j.Parallelism, Message: "must be positive"})
	}
	if len(j.Groups) == 0 {
		errs = append(errs, ValidationError{Field: "groups", Value: len(j.Groups), Message: "at least one group is required"})
	}
	for i, g := range j.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		required(field+".name", g.Name)
		if g.NumTasks < 1 {
			errs = append(errs, ValidationError{Field: field + ".num_tasks", Value: g.NumTasks, Message: "must be positive"})
		}
		if len(g.Operators) == 0 {
			errs = append(errs, ValidationError{Field: field + ".operators", Value: 0, Message: "at least one operator is required"})
		}
	}
	errs = append(errs, j.Publish.validate()...)
	return errs
}

func (p *PublishConfig) validate() []ValidationError {
	var errs []ValidationError
	switch p.Target {
	case TargetStdout:
	case TargetDir:
		if p.Dir == "" {
			errs = append(errs, ValidationError{Field: "publish.dir", Value: p.Dir, Message: "required for the dir target"})
		}
	case TargetEtcd:
		if len(p.Endpoints) == 0 {
			errs = append(errs, ValidationError{Field: "publish.endpoints", Value: p.Endpoints, Message: "required for the etcd target"})
		}
		if p.DialTimeout <= 0 {
			errs = append(errs, ValidationError{Field: "publish.dial_timeout", Value: p.DialTimeout, Message: "must be positive"})
		}
	case TargetHDFS:
		if p.Namenode == "" {
			errs = append(errs, ValidationError{Field: "publish.namenode", Value: p.Namenode, Message: "required for the hdfs target"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "publish.target",
			Value:   p.Target,
			Message: "must be one of " + strings.Join([]string{TargetStdout, TargetDir, TargetEtcd, TargetHDFS}, ", "),
		})
	}
	return errs
}

// MaxTasks is the largest group, which is how many workers a run allocates.
func (j *Job) MaxTasks() int {
	n := 0
	for _, g := range j.Groups {
		if g.NumTasks > n {
			n = g.NumTasks
		}
	}
	return n
}
