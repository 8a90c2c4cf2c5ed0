package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the on-disk form of a weight table override.
//
//	default_weight: 5
//	weights:
//	  nativeMessaging: 25
//	annotations:
//	  nativeMessaging:
//	    url: https://developer.chrome.com/docs/extensions/develop/concepts/native-messaging
//	    description: Talks to programs installed outside the browser.
//
// Keys not present in the file keep their built-in values.
type Policy struct {
	DefaultWeight *int                  `yaml:"default_weight"`
	Weights       map[string]int        `yaml:"weights"`
	Annotations   map[string]Annotation `yaml:"annotations"`
}

// LoadTable builds a Table from the built-in values overlaid with the policy
// file at path. An empty path or a missing file yields DefaultTable().
// Invalid YAML or a negative weight is an error.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTable(), nil
		}
		return nil, fmt.Errorf("read risk policy: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse risk policy: %w", err)
	}
	return p.Apply(DefaultTable())
}

// Apply overlays the policy onto base and returns a new Table.
func (p Policy) Apply(base *Table) (*Table, error) {
	def := base.defaultWeight
	if p.DefaultWeight != nil {
		if *p.DefaultWeight < 0 {
			return nil, fmt.Errorf("default_weight must be non-negative, got %d", *p.DefaultWeight)
		}
		def = *p.DefaultWeight
	}

	weights := base.Weights()
	for perm, w := range p.Weights {
		if w < 0 {
			return nil, fmt.Errorf("weight for %q must be non-negative, got %d", perm, w)
		}
		weights[perm] = w
	}

	annotations := make(map[string]Annotation, len(base.annotations)+len(p.Annotations))
	for k, a := range base.annotations {
		annotations[k] = a
	}
	for perm, a := range p.Annotations {
		if a.Description == "" {
			return nil, fmt.Errorf("annotation for %q needs a description", perm)
		}
		annotations[perm] = a
	}

	return NewTable(def, weights, annotations), nil
}
