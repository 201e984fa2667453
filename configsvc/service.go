package configsvc

import (
	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
)

// Service builds, merges and (de)serializes configurations. Serialize must be
// deterministic: equal configurations yield equal bytes.
type Service interface {
	Build(b *Bindings) (*Configuration, error)
	Merge(base *Configuration, b *Bindings) (*Configuration, error)
	Serialize(c *Configuration) ([]byte, error)
	Deserialize(data []byte) (*Configuration, error)
}

const (
	ProtoFormat = "proto"
	YAMLFormat  = "yaml"
)

// New returns the service for the named wire format.
func New(format string) (Service, error) {
	switch format {
	case "", ProtoFormat:
		return NewProtoService(), nil
	case YAMLFormat:
		return NewYAMLService(), nil
	}
	return nil, errors.Wrapf(groupcomm.ErrInvalidArg, "unknown configuration format %q", format)
}

// builder implements the format-independent half of Service.
type builder struct{}

func (builder) Build(b *Bindings) (*Configuration, error) { return merge(nil, b) }

func (builder) Merge(base *Configuration, b *Bindings) (*Configuration, error) {
	return merge(base, b)
}
