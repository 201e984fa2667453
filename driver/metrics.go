package driver

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "groupcomm"

// Metrics are the prometheus collectors updated by communication groups.
type Metrics struct {
	RegisteredTasks     *prometheus.GaugeVec
	TargetTasks         *prometheus.GaugeVec
	AddTaskFailures     *prometheus.CounterVec
	ConfigurationsBuilt *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil. Drivers sharing a registry share the collectors already in it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegisteredTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_registered_tasks",
			Help:      "Number of tasks registered in a communication group.",
		}, []string{"group"}),
		TargetTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_target_tasks",
			Help:      "Declared number of tasks of a communication group.",
		}, []string{"group"}),
		AddTaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "add_task_failures_total",
			Help:      "Rejected AddTask calls by error kind.",
		}, []string{"group", "kind"}),
		ConfigurationsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configurations_built_total",
			Help:      "Per-task configurations produced.",
		}, []string{"group"}),
	}
	if reg != nil {
		m.RegisteredTasks = register(reg, m.RegisteredTasks)
		m.TargetTasks = register(reg, m.TargetTasks)
		m.AddTaskFailures = register(reg, m.AddTaskFailures)
		m.ConfigurationsBuilt = register(reg, m.ConfigurationsBuilt)
	}
	return m
}

// register returns the collector already registered under c's description,
// or c once it is registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
