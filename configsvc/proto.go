package configsvc

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	valuesField = "values"
	setsField   = "sets"
)

// ProtoService encodes configurations as a google.protobuf.Struct:
//
//	{"values": {name: string}, "sets": {name: [string]}}
//
// marshalled with deterministic map ordering.
type ProtoService struct {
	builder
}

func NewProtoService() *ProtoService { return &ProtoService{} }

func (s *ProtoService) Serialize(c *Configuration) ([]byte, error) {
	if c == nil {
		return nil, errors.New("serialize: nil configuration")
	}
	values := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(c.values))}
	for n, v := range c.values {
		values.Fields[n] = structpb.NewStringValue(v)
	}
	sets := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(c.sets))}
	for n, entries := range c.sets {
		list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(entries))}
		for _, e := range entries {
			list.Values = append(list.Values, structpb.NewStringValue(e))
		}
		sets.Fields[n] = structpb.NewListValue(list)
	}
	root := &structpb.Struct{Fields: map[string]*structpb.Value{
		valuesField: structpb.NewStructValue(values),
		setsField:   structpb.NewStructValue(sets),
	}}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(root)
	if err != nil {
		return nil, errors.Wrap(err, "marshal configuration")
	}
	return data, nil
}

func (s *ProtoService) Deserialize(data []byte) (*Configuration, error) {
	root := &structpb.Struct{}
	if err := proto.Unmarshal(data, root); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}
	c := newConfiguration()
	for n, v := range root.GetFields()[valuesField].GetStructValue().GetFields() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Errorf("unmarshal configuration: value %q is not a string", n)
		}
		c.values[n] = sv.StringValue
	}
	for n, v := range root.GetFields()[setsField].GetStructValue().GetFields() {
		list := v.GetListValue()
		if list == nil {
			return nil, errors.Errorf("unmarshal configuration: set %q is not a list", n)
		}
		entries := make([]string, 0, len(list.GetValues()))
		for _, e := range list.GetValues() {
			sv, ok := e.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, errors.Errorf("unmarshal configuration: set %q holds a non-string entry", n)
			}
			entries = append(entries, sv.StringValue)
		}
		c.sets[n] = entries
	}
	return c, nil
}
