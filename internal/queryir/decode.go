package queryir

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// conditionDoc is the long form of a condition in plan documents:
//
//	overallcgpa: {op: ">=", value: 3.5}
//	programme:   {op: in, values: [a, b]}
//
// A bare scalar is shorthand for equality and a bare list for IN.
type conditionDoc struct {
	Op     string `json:"op" yaml:"op"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

func (d conditionDoc) condition() (Condition, error) {
	op, ok := ParseOperator(d.Op)
	if !ok {
		return Condition{}, errors.Newf("unknown operator %q", d.Op)
	}
	c := Condition{Op: op, Value: d.Value}
	if d.Values != nil {
		c.Value = d.Values
	}
	return c, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Condition) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		var doc conditionDoc
		if err := n.Decode(&doc); err != nil {
			return err
		}
		cond, err := doc.condition()
		if err != nil {
			return errors.Wrapf(err, "line %d", n.Line)
		}
		*c = cond
	case yaml.SequenceNode:
		var list []any
		if err := n.Decode(&list); err != nil {
			return err
		}
		*c = Condition{Op: OpIN, Value: list}
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		*c = Condition{Op: OpEQ, Value: v}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Condition) MarshalYAML() (any, error) {
	return c.doc(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty condition")
	}
	switch trimmed[0] {
	case '{':
		var doc conditionDoc
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return err
		}
		cond, err := doc.condition()
		if err != nil {
			return err
		}
		*c = cond
	case '[':
		var list []any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*c = Condition{Op: OpIN, Value: list}
	default:
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*c = Condition{Op: OpEQ, Value: v}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.doc())
}

func (c Condition) doc() conditionDoc {
	d := conditionDoc{Op: string(c.Op)}
	if c.Op == OpIN || c.Op == OpBetween {
		d.Values = c.Values()
	} else {
		d.Value = c.Value
	}
	return d
}

// DecodePlan parses a plan document. YAML and JSON are both accepted.
// Each condition's Column is filled from its WHERE key.
func DecodePlan(data []byte) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Plan{}, errors.Wrap(err, "decode plan")
	}
	p.fillColumns()
	return p, nil
}

// DecodeStep parses a single step document.
func DecodeStep(data []byte) (Step, error) {
	var s Step
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Step{}, errors.Wrap(err, "decode step")
	}
	s.fillColumns()
	return s, nil
}

func (p *Plan) fillColumns() {
	for i := range p.Steps {
		p.Steps[i].fillColumns()
	}
}

func (s *Step) fillColumns() {
	for col, c := range s.Where {
		c.Column = col
		s.Where[col] = c
	}
}
