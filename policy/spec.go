package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind names a base delay policy in a Spec.
type Kind string

const (
	KindConstant           Kind = "constant"
	KindIncremental        Kind = "incremental"
	KindExponential        Kind = "exponential"
	KindFullJitter         Kind = "full_jitter"
	KindEqualJitter        Kind = "equal_jitter"
	KindDecorrelatedJitter Kind = "decorrelated_jitter"
)

// Spec is the declarative form of a Policy, suitable for YAML or JSON files.
//
// Limits of zero are unset. Append specs are combined with Policy.Append in
// order, and FollowedBy (if any) is applied last.
type Spec struct {
	Kind Kind          `json:"kind" yaml:"kind"`
	Base time.Duration `json:"base" yaml:"base"`
	Cap  time.Duration `json:"cap,omitempty" yaml:"cap,omitempty"`

	MaxRetries         int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	MaxDelay           time.Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
	MaxCumulativeDelay time.Duration `json:"max_cumulative_delay,omitempty" yaml:"max_cumulative_delay,omitempty"`
	CapDelay           time.Duration `json:"cap_delay,omitempty" yaml:"cap_delay,omitempty"`

	Append     []Spec `json:"append,omitempty" yaml:"append,omitempty"`
	FollowedBy *Spec  `json:"followed_by,omitempty" yaml:"followed_by,omitempty"`

	Meta Metadata `json:"-" yaml:"-"`
}

type NormalizationInfo struct {
	Changed       bool
	ChangedFields []string
}

type Metadata struct {
	Normalization NormalizationInfo
}

const (
	defaultBase     = 10 * time.Millisecond
	minBaseFloor    = 1 * time.Microsecond
	maxDelayCeiling = 24 * time.Hour
)

// Normalize fills defaults, clamps out-of-range values and validates the kind.
// Nested specs are normalized too; their changed fields are reported with a
// path prefix ("append[0].base", "followed_by.kind").
func (s Spec) Normalize() (Spec, error) {
	return s.normalize("")
}

func (s Spec) normalize(prefix string) (Spec, error) {
	normalized := s
	norm := &normalized.Meta.Normalization
	norm.Changed = false
	norm.ChangedFields = nil

	markChanged := func(field string) {
		norm.Changed = true
		field = prefix + field
		for _, f := range norm.ChangedFields {
			if f == field {
				return
			}
		}
		norm.ChangedFields = append(norm.ChangedFields, field)
	}

	normalized.Kind = Kind(strings.ToLower(strings.TrimSpace(string(normalized.Kind))))
	switch normalized.Kind {
	case "":
		normalized.Kind = KindExponential
		markChanged("kind")
	case KindConstant, KindIncremental, KindExponential, KindFullJitter, KindEqualJitter, KindDecorrelatedJitter:
	default:
		return Spec{}, &NormalizeError{Field: prefix + "kind", Value: string(s.Kind)}
	}

	if normalized.Base < 0 {
		normalized.Base = 0
		markChanged("base")
	}
	if normalized.Base == 0 && normalized.Kind != KindConstant {
		normalized.Base = defaultBase
		markChanged("base")
	}
	if normalized.Base > 0 && normalized.Base < minBaseFloor {
		normalized.Base = minBaseFloor
		markChanged("base")
	}

	switch normalized.Kind {
	case KindFullJitter, KindEqualJitter, KindDecorrelatedJitter:
		if normalized.Cap <= 0 {
			normalized.Cap = maxDelayCeiling
			markChanged("cap")
		}
		if normalized.Cap < normalized.Base {
			normalized.Cap = normalized.Base
			markChanged("cap")
		}
	default:
		if normalized.Cap != 0 {
			normalized.Cap = 0
			markChanged("cap")
		}
	}

	if normalized.MaxRetries < 0 {
		normalized.MaxRetries = 0
		markChanged("max_retries")
	}
	if normalized.MaxDelay < 0 {
		normalized.MaxDelay = 0
		markChanged("max_delay")
	}
	if normalized.MaxCumulativeDelay < 0 {
		normalized.MaxCumulativeDelay = 0
		markChanged("max_cumulative_delay")
	}
	if normalized.CapDelay < 0 {
		normalized.CapDelay = 0
		markChanged("cap_delay")
	}
	if normalized.CapDelay > maxDelayCeiling {
		normalized.CapDelay = maxDelayCeiling
		markChanged("cap_delay")
	}

	if len(s.Append) > 0 {
		normalized.Append = make([]Spec, len(s.Append))
		for i, a := range s.Append {
			na, err := a.normalize(fmt.Sprintf("%sappend[%d].", prefix, i))
			if err != nil {
				return Spec{}, err
			}
			normalized.Append[i] = na
			for _, f := range na.Meta.Normalization.ChangedFields {
				norm.Changed = true
				norm.ChangedFields = append(norm.ChangedFields, f)
			}
		}
	}

	if s.FollowedBy != nil {
		nf, err := s.FollowedBy.normalize(prefix + "followed_by.")
		if err != nil {
			return Spec{}, err
		}
		normalized.FollowedBy = &nf
		for _, f := range nf.Meta.Normalization.ChangedFields {
			norm.Changed = true
			norm.ChangedFields = append(norm.ChangedFields, f)
		}
	}

	return normalized, nil
}

// Build normalizes s and assembles the Policy it describes.
func (s Spec) Build() (Policy, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	return n.build(), nil
}

func (s Spec) build() Policy {
	var p Policy
	switch s.Kind {
	case KindConstant:
		p = ConstantDelay(s.Base)
	case KindIncremental:
		p = IncrementalDelay(s.Base)
	case KindFullJitter:
		p = FullJitter(s.Base, s.Cap)
	case KindEqualJitter:
		p = EqualJitter(s.Base, s.Cap)
	case KindDecorrelatedJitter:
		p = DecorrelatedJitter(s.Base, s.Cap)
	default:
		p = ExponentialBackoff(s.Base)
	}

	if s.CapDelay > 0 {
		p = p.CapDelay(s.CapDelay)
	}
	if s.MaxDelay > 0 {
		p = p.LimitRetriesByDelay(s.MaxDelay)
	}
	if s.MaxCumulativeDelay > 0 {
		p = p.LimitRetriesByCumulativeDelay(s.MaxCumulativeDelay)
	}
	if s.MaxRetries > 0 {
		p = p.LimitRetries(s.MaxRetries)
	}
	for _, a := range s.Append {
		p = p.Append(a.build())
	}
	if s.FollowedBy != nil {
		p = p.FollowedBy(s.FollowedBy.build())
	}
	return p
}

// ParseSpecs decodes a YAML (or JSON) document mapping policy names to specs.
// Durations use Go syntax ("250ms", "1m30s").
func ParseSpecs(data []byte) (map[string]Spec, error) {
	var raw map[string]Spec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("effex: parse policy specs: %w", err)
	}
	out := make(map[string]Spec, len(raw))
	for name, s := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &NormalizeError{Field: "name", Value: name}
		}
		n, err := s.Normalize()
		if err != nil {
			var ne *NormalizeError
			if errors.As(err, &ne) {
				ne.Policy = name
				return nil, ne
			}
			return nil, fmt.Errorf("effex: policy %q: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}

// LoadSpecFile reads and parses a policy spec file.
func LoadSpecFile(path string) (map[string]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("effex: read policy specs: %w", err)
	}
	return ParseSpecs(data)
}
