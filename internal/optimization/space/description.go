package space

// Description is the ordered construction input of a search space. It maps
// one to one onto the JSON accepted by the service, using slices rather than
// objects so that domain order is stable.
type Description struct {
	// Common algorithms are active in every configuration.
	Common []AlgorithmSpec `json:"common,omitempty"`
	// Groups are mutually exclusive; exactly one is active per configuration.
	Groups []GroupSpec `json:"groups,omitempty"`
}

// GroupSpec is one conditional sub-space, e.g. an alternative pipeline.
type GroupSpec struct {
	Name       string          `json:"name"`
	Algorithms []AlgorithmSpec `json:"algorithms"`
}

// AlgorithmSpec is a named collection of parameters.
type AlgorithmSpec struct {
	Name   string      `json:"name"`
	Params []ParamSpec `json:"params"`
}

// ParamSpec describes a single parameter.
//
// Type is one of choice, uniform, quniform, loguniform or qloguniform. For
// choice, Value lists the categories; otherwise it holds exactly [low, high].
// Initial optionally names the starting value used by local search: a
// category for choice, a number otherwise.
type ParamSpec struct {
	Name    string        `json:"name"`
	Type    string        `json:"_type"`
	Value   []interface{} `json:"_value"`
	Initial interface{}   `json:"_initial,omitempty"`
}

// Choice is a convenience constructor for a categorical ParamSpec.
func Choice(name string, values ...string) ParamSpec {
	v := make([]interface{}, len(values))
	for i, s := range values {
		v[i] = s
	}
	return ParamSpec{Name: name, Type: "choice", Value: v}
}

// Uniform is a convenience constructor for a numeric ParamSpec of the given
// kind (uniform, quniform, loguniform or qloguniform).
func Uniform(name, kind string, low, high float64) ParamSpec {
	return ParamSpec{Name: name, Type: kind, Value: []interface{}{low, high}}
}

// WithInitial returns a copy of p carrying an initial value.
func (p ParamSpec) WithInitial(v interface{}) ParamSpec {
	p.Initial = v
	return p
}
