package formula

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// stepDoc is the stored shape of a step. JSON documents parse as well since
// JSON is a subset of YAML.
type stepDoc struct {
	ID           string   `yaml:"id"`
	Type         string   `yaml:"type"`
	Label        string   `yaml:"label"`
	Source       string   `yaml:"source,omitempty"`
	MetafieldKey string   `yaml:"metafieldKey,omitempty"`
	DefaultValue float64  `yaml:"defaultValue,omitempty"`
	ApplyOn      string   `yaml:"applyOn,omitempty"`
	Components   []string `yaml:"components,omitempty"`
}

func LoadPipeline(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula file: %w", err)
	}
	return ParsePipeline(data)
}

func ParsePipeline(data []byte) (Pipeline, error) {
	var docs []stepDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode formula: %w", err)
	}
	pipeline := make(Pipeline, 0, len(docs))
	for i, doc := range docs {
		step, err := doc.toStep()
		if err != nil {
			return nil, fmt.Errorf("formula step %d: %w", i, err)
		}
		pipeline = append(pipeline, step)
	}
	return pipeline, nil
}

func MarshalPipeline(p Pipeline) ([]byte, error) {
	docs := make([]stepDoc, 0, len(p))
	for _, step := range p {
		switch s := step.(type) {
		case Computed:
			docs = append(docs, stepDoc{ID: s.ID, Type: string(KindComputed), Label: s.Label})
		case Fixed:
			doc := stepDoc{ID: s.ID, Type: string(KindFixed), Label: s.Label, DefaultValue: s.Default}
			if s.Source == FixedFromAttribute {
				doc.Source = "metafield"
				doc.MetafieldKey = s.AttributeKey
			}
			docs = append(docs, doc)
		case Percentage:
			doc := stepDoc{ID: s.ID, Type: string(KindPercentage), Label: s.Label, ApplyOn: s.AppliesTo, DefaultValue: s.Default}
			if s.Source == RateGlobal {
				doc.Source = string(RateGlobal)
			}
			docs = append(docs, doc)
		case Sum:
			docs = append(docs, stepDoc{ID: s.ID, Type: string(KindSum), Label: s.Label, Components: s.Components})
		}
	}
	return yaml.Marshal(docs)
}

func (d stepDoc) toStep() (Step, error) {
	id := strings.TrimSpace(d.ID)
	label := strings.TrimSpace(d.Label)
	source := strings.ToLower(strings.TrimSpace(d.Source))

	switch Kind(strings.ToLower(strings.TrimSpace(d.Type))) {
	case KindComputed:
		return Computed{ID: id, Label: label}, nil
	case KindFixed:
		step := Fixed{ID: id, Label: label, Source: FixedConstant, Default: d.DefaultValue}
		if source == "metafield" || source == string(FixedFromAttribute) {
			step.Source = FixedFromAttribute
			step.AttributeKey = strings.TrimSpace(d.MetafieldKey)
		}
		return step, nil
	case KindPercentage:
		step := Percentage{ID: id, Label: label, AppliesTo: strings.TrimSpace(d.ApplyOn), Source: RateConstant, Default: d.DefaultValue}
		if source == string(RateGlobal) {
			step.Source = RateGlobal
		}
		return step, nil
	case KindSum:
		components := make([]string, 0, len(d.Components))
		for _, c := range d.Components {
			components = append(components, strings.TrimSpace(c))
		}
		return Sum{ID: id, Label: label, Components: components}, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", d.Type)
	}
}
