/*
Package configsvc turns named parameter bindings into configurations and
configurations into bytes. The group driver treats the bytes as opaque; only
the service that produced them can read them back.

A configuration holds two kinds of parameters: single-valued ones, which may
be bound once (rebinding to the same value is allowed), and sets, which
collect entries in insertion order and ignore repeats.
*/
package configsvc

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
)

// ErrConflictingBinding is returned when a single-valued parameter is bound
// to two different values.
var ErrConflictingBinding = groupcomm.NewError(groupcomm.ConfigurationError, "conflicting binding")

// Bindings collects parameter values for Build or Merge. Errors are sticky and
// reported by the service, so calls can be chained.
type Bindings struct {
	values map[string]string
	sets   map[string][]string
	err    error
}

func NewBindings() *Bindings {
	return &Bindings{
		values: make(map[string]string),
		sets:   make(map[string][]string),
	}
}

// Bind sets a single-valued parameter.
func (b *Bindings) Bind(name, value string) *Bindings {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = errors.Wrap(groupcomm.ErrInvalidArg, "binding with empty name")
		return b
	}
	if old, ok := b.values[name]; ok && old != value {
		b.err = errors.Wrapf(ErrConflictingBinding, "%q bound to %q and %q", name, old, value)
		return b
	}
	b.values[name] = value
	return b
}

// BindSetEntry adds value to the set parameter name.
func (b *Bindings) BindSetEntry(name, value string) *Bindings {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = errors.Wrap(groupcomm.ErrInvalidArg, "set binding with empty name")
		return b
	}
	b.sets[name] = appendUnique(b.sets[name], value)
	return b
}

// Err reports the first binding error, if any.
func (b *Bindings) Err() error { return b.err }

// Configuration is an immutable set of bound parameters.
type Configuration struct {
	values map[string]string
	sets   map[string][]string
}

func newConfiguration() *Configuration {
	return &Configuration{
		values: make(map[string]string),
		sets:   make(map[string][]string),
	}
}

// Get returns the value of a single-valued parameter.
func (c *Configuration) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// GetSet returns a copy of the entries of a set parameter.
func (c *Configuration) GetSet(name string) []string {
	entries := c.sets[name]
	if entries == nil {
		return nil
	}
	return append([]string(nil), entries...)
}

// Names returns every bound parameter name, sorted.
func (c *Configuration) Names() []string {
	names := make([]string, 0, len(c.values)+len(c.sets))
	for n := range c.values {
		names = append(names, n)
	}
	for n := range c.sets {
		if _, dup := c.values[n]; !dup {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// merge copies base and applies b on top of it.
func merge(base *Configuration, b *Bindings) (*Configuration, error) {
	if b == nil {
		b = NewBindings()
	}
	if b.err != nil {
		return nil, b.err
	}
	c := newConfiguration()
	if base != nil {
		for n, v := range base.values {
			c.values[n] = v
		}
		for n, entries := range base.sets {
			c.sets[n] = append([]string(nil), entries...)
		}
	}
	for n, v := range b.values {
		if old, ok := c.values[n]; ok && old != v {
			return nil, errors.Wrapf(ErrConflictingBinding, "%q bound to %q and %q", n, old, v)
		}
		c.values[n] = v
	}
	// Iterate set names in order so the entry order of the result does not
	// depend on map iteration.
	names := make([]string, 0, len(b.sets))
	for n := range b.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		for _, v := range b.sets[n] {
			c.sets[n] = appendUnique(c.sets[n], v)
		}
	}
	return c, nil
}

func appendUnique(entries []string, v string) []string {
	for _, e := range entries {
		if e == v {
			return entries
		}
	}
	return append(entries, v)
}
