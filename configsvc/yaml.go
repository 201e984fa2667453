package configsvc

import (
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

type yamlConfiguration struct {
	Values map[string]string   `yaml:"values,omitempty"`
	Sets   map[string][]string `yaml:"sets,omitempty"`
}

// YAMLService encodes configurations as YAML documents. Handy when a person
// has to read what a worker was given; yaml.v2 sorts map keys, so output is
// deterministic.
type YAMLService struct {
	builder
}

func NewYAMLService() *YAMLService { return &YAMLService{} }

func (s *YAMLService) Serialize(c *Configuration) ([]byte, error) {
	if c == nil {
		return nil, errors.New("serialize: nil configuration")
	}
	data, err := yaml.Marshal(yamlConfiguration{Values: c.values, Sets: c.sets})
	if err != nil {
		return nil, errors.Wrap(err, "marshal configuration")
	}
	return data, nil
}

func (s *YAMLService) Deserialize(data []byte) (*Configuration, error) {
	var yc yamlConfiguration
	if err := yaml.UnmarshalStrict(data, &yc); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}
	c := newConfiguration()
	for n, v := range yc.Values {
		c.values[n] = v
	}
	for n, entries := range yc.Sets {
		c.sets[n] = entries
	}
	return c, nil
}
