// Package space models the typed, optionally conditional search space shared
// by every tuner.
//
// Domains are stored densely in construction order with a tag lookup table,
// so a configuration is a flat []float64. Groups partition a subset of the
// domains into mutually exclusive sub-spaces; domains outside any group are
// always active. A Space is immutable once built and safe to share.
package space

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/copyleftdev/hptune/internal/optimization"
)

// Group is one mutually exclusive sub-space.
type Group struct {
	Name    string
	Domains []int
}

// Space is an immutable search space.
type Space struct {
	domains []*Domain
	groups  []Group
	common  []int
	active  [][]int // per group: common domains followed by group domains
	byTag   map[string]int
}

// Configuration assigns an internal value to every domain. Values of domains
// that are not active under Group are NaN or ignored.
type Configuration struct {
	Group  int
	Values []float64
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	return Configuration{Group: c.Group, Values: append([]float64(nil), c.Values...)}
}

// Build validates d and constructs the search space. Malformed input fails
// with an error wrapping optimization.ErrInvalidSearchSpace.
func Build(d Description) (*Space, error) {
	s := &Space{byTag: make(map[string]int)}

	for _, algo := range d.Common {
		idx, err := s.addAlgorithm("", -1, algo)
		if err != nil {
			return nil, err
		}
		s.common = append(s.common, idx...)
	}

	for g, gs := range d.Groups {
		name := gs.Name
		if name == "" {
			name = fmt.Sprintf("group%d", g)
		}
		group := Group{Name: name}
		for _, algo := range gs.Algorithms {
			idx, err := s.addAlgorithm(name, g, algo)
			if err != nil {
				return nil, err
			}
			group.Domains = append(group.Domains, idx...)
		}
		s.groups = append(s.groups, group)
	}

	if len(s.domains) == 0 {
		return nil, invalid("search space has no parameters")
	}

	for g := 0; g < s.NumGroups(); g++ {
		active := append([]int(nil), s.common...)
		if g < len(s.groups) {
			active = append(active, s.groups[g].Domains...)
		}
		keys := make(map[string]bool, len(active))
		for _, i := range active {
			key := s.domains[i].Key
			if key == GroupKey {
				return nil, invalid("parameter key %q is reserved", key)
			}
			if keys[key] {
				return nil, invalid("duplicate parameter key %q", key)
			}
			keys[key] = true
		}
		s.active = append(s.active, active)
	}

	return s, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// static spaces.
func MustBuild(d Description) *Space {
	s, err := Build(d)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse decodes a JSON Description and builds it.
func Parse(data []byte) (*Space, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, optimization.WrapError(optimization.ErrInvalidSearchSpace, err.Error()).
			WithComponent("space").WithOperation("Parse")
	}
	return Build(d)
}

func (s *Space) addAlgorithm(groupName string, group int, algo AlgorithmSpec) ([]int, error) {
	var idx []int
	for _, p := range algo.Params {
		dom, err := newDomain(groupName, group, algo.Name, p)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byTag[dom.Tag]; dup {
			return nil, invalid("duplicate parameter tag %q", dom.Tag)
		}
		dom.Index = len(s.domains)
		s.byTag[dom.Tag] = dom.Index
		s.domains = append(s.domains, dom)
		idx = append(idx, dom.Index)
	}
	return idx, nil
}

func newDomain(groupName string, group int, algorithm string, p ParamSpec) (*Domain, error) {
	if p.Name == "" {
		return nil, invalid("parameter without name in algorithm %q", algorithm)
	}
	key := p.Name
	if algorithm != "" {
		key = algorithm + "/" + p.Name
	}
	tag := key
	if groupName != "" {
		tag = groupName + "/" + key
	}
	d := &Domain{
		Name:      p.Name,
		Algorithm: algorithm,
		Group:     groupName,
		Tag:       tag,
		Key:       key,
		group:     group,
	}

	switch p.Type {
	case "choice":
		if len(p.Value) == 0 {
			return nil, invalid("%s: empty choice list", tag)
		}
		d.Kind = Categorical
		d.Choices = make([]string, len(p.Value))
		for i, v := range p.Value {
			d.Choices[i] = fmt.Sprint(v)
		}
		if p.Initial != nil {
			want := fmt.Sprint(p.Initial)
			found := false
			for i, c := range d.Choices {
				if c == want {
					d.initial, d.hasInitial, found = float64(i), true, true
					break
				}
			}
			if !found {
				return nil, invalid("%s: initial value %q is not a choice", tag, want)
			}
		}

	case "uniform", "quniform", "loguniform", "qloguniform":
		if len(p.Value) != 2 {
			return nil, invalid("%s: expected [low, high], got %d values", tag, len(p.Value))
		}
		low, okLow := toFloat(p.Value[0])
		high, okHigh := toFloat(p.Value[1])
		if !okLow || !okHigh {
			return nil, invalid("%s: bounds must be numbers", tag)
		}
		if !(low < high) {
			return nil, invalid("%s: low %v must be less than high %v", tag, low, high)
		}
		d.Kind = Numeric
		d.IsLog = strings.Contains(p.Type, "log")
		d.IsInteger = strings.Contains(p.Type, "q")
		d.Low, d.High = low, high
		if d.IsInteger {
			d.qLow, d.qHigh = math.Ceil(low), math.Floor(high)
			if d.qLow > d.qHigh {
				return nil, invalid("%s: no whole number in [%v, %v]", tag, low, high)
			}
		}
		if d.IsLog {
			if low <= 0 {
				return nil, invalid("%s: log scaled bounds must be positive", tag)
			}
			d.Low, d.High = math.Log(low), math.Log(high)
		}
		if p.Initial != nil {
			v, ok := toFloat(p.Initial)
			if !ok || v < low || v > high {
				return nil, invalid("%s: initial value %v outside [%v, %v]", tag, p.Initial, low, high)
			}
			d.initial, d.hasInitial = v, true
		}

	default:
		return nil, invalid("%s: unknown parameter type %q", tag, p.Type)
	}

	return d, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func invalid(format string, args ...interface{}) error {
	return optimization.WrapErrorf(optimization.ErrInvalidSearchSpace, format, args...).
		WithComponent("space").WithOperation("Build")
}

// Len returns the number of domains.
func (s *Space) Len() int {
	return len(s.domains)
}

// Domain returns the domain at index i.
func (s *Space) Domain(i int) *Domain {
	return s.domains[i]
}

// Domains returns all domains in index order. The slice must not be modified.
func (s *Space) Domains() []*Domain {
	return s.domains
}

// Groups returns the mutually exclusive groups. The slice must not be modified.
func (s *Space) Groups() []Group {
	return s.groups
}

// NumGroups returns the number of alternatives a configuration chooses
// from. A space without groups has a single implicit one.
func (s *Space) NumGroups() int {
	if len(s.groups) == 0 {
		return 1
	}
	return len(s.groups)
}

// Lookup returns the index of the domain with the given tag.
func (s *Space) Lookup(tag string) (int, bool) {
	i, ok := s.byTag[tag]
	return i, ok
}

// Active returns the indices of the domains active under group, common
// domains first. The slice must not be modified.
func (s *Space) Active(group int) []int {
	return s.active[group]
}

// IsActive reports whether domain i takes part in configurations of group.
func (s *Space) IsActive(i, group int) bool {
	g := s.domains[i].group
	return g < 0 || g == group
}

// NewConfiguration returns a configuration for group with every value unset.
func (s *Space) NewConfiguration(group int) Configuration {
	values := make([]float64, len(s.domains))
	for i := range values {
		values[i] = math.NaN()
	}
	return Configuration{Group: group, Values: values}
}

// InitialConfiguration returns the starting point of local search: the
// first group and every domain at its initial value.
func (s *Space) InitialConfiguration() Configuration {
	c := Configuration{Values: make([]float64, len(s.domains))}
	for i, d := range s.domains {
		c.Values[i] = d.InitialValue()
	}
	return c
}

// GroupKey holds the name of the chosen group in formatted parameters of a
// space with alternative groups. Groups may share algorithm names, so the
// parameter keys alone do not identify the active group.
const GroupKey = "_group"

// Format renders the active domains of c as external parameters.
func (s *Space) Format(c Configuration) optimization.Parameters {
	active := s.Active(c.Group)
	out := make(optimization.Parameters, len(active)+1)
	for _, i := range active {
		d := s.domains[i]
		out[d.Key] = d.Format(c.Values[i])
	}
	if len(s.groups) > 1 {
		out[GroupKey] = s.GroupName(c.Group)
	}
	return out
}

// GroupName returns the name of group g, or "" for the implicit group.
func (s *Space) GroupName(g int) string {
	if g < len(s.groups) {
		return s.groups[g].Name
	}
	return ""
}
