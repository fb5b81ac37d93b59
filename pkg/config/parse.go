package config

import (
	"reflect"

	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes and validates parameters supplied as a payload (not via
// the filesystem), e.g. by the daemon APIs.
func ParseYAML(data []byte) (*SimulationParameters, error) {
	p := Decode(data)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseYAMLString is ParseYAML for a string payload
func ParseYAMLString(yamlText string) (*SimulationParameters, error) {
	return ParseYAML([]byte(yamlText))
}

// Decode overlays the keys found in data on top of Default. Each key is
// decoded on its own: a key that fails to decode keeps its default and is
// logged, and a document that is not a mapping yields the defaults.
func Decode(data []byte) *SimulationParameters {
	p := Default()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logger.Warn("malformed config yaml, using defaults", "error", err)
		return p
	}
	if len(doc.Content) == 0 {
		return p
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		logger.Warn("config yaml is not a mapping, using defaults")
		return p
	}

	fields := p.fieldsByKey()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := root.Content[i+1]

		target, ok := fields[key]
		if !ok {
			logger.Debug("ignoring unknown config key", "key", key)
			continue
		}
		if value.Tag == "!!null" {
			continue
		}
		if err := decodeInto(value, target); err != nil {
			logger.Warn("malformed config key, using default", "key", key, "error", err)
		}
	}
	return p
}

// fieldsByKey maps every yaml key to a pointer to the matching field.
func (p *SimulationParameters) fieldsByKey() map[string]any {
	v := reflect.ValueOf(p).Elem()
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		out[tag] = v.Field(i).Addr().Interface()
	}
	return out
}

// decodeInto decodes node into a scratch value and only assigns it to target
// when decoding succeeded.
func decodeInto(node *yaml.Node, target any) error {
	dst := reflect.ValueOf(target).Elem()
	scratch := reflect.New(dst.Type())
	if err := node.Decode(scratch.Interface()); err != nil {
		return err
	}
	dst.Set(scratch.Elem())
	return nil
}
