package grid

// Keys injected into every assignment.
const (
	KeyExpName        = "exp_name"
	KeyOutputDir      = "output_dir"
	KeyOutputFilename = "output_filename"
)

// KeyVars is reserved: the launcher passes the swept parameter names under
// it, so a document may not declare a parameter of that name.
const KeyVars = "vars"

// Param is one resolved parameter.
type Param struct {
	Name  string
	Value any
}

// Metadata is the run information injected into an assignment.
type Metadata struct {
	ExpName        string
	OutputDir      string
	OutputFilename string
}

// Assignment is the fully resolved parameter set of one run. It is an
// immutable value: accessors return copies.
type Assignment struct {
	params     []Param
	index      map[string]int
	swept      []string
	overridden []string
}

// Resolve merges the fixed entries of doc, the given combination of its
// swept entries, and meta into one assignment. Layers are applied in that
// order and a later layer overwrites an earlier value for the same key while
// keeping the key's original position.
//
// combo must come from doc.Grid(); its length must match the swept entries.
func Resolve(doc *Document, combo Combination, meta Metadata) Assignment {
	a := Assignment{index: make(map[string]int, len(doc.Entries)+3)}

	for _, e := range doc.FixedEntries() {
		a.set(e.Name, e.Value)
	}
	for i, e := range doc.SweptEntries() {
		a.set(e.Name, combo[i])
		a.swept = append(a.swept, e.Name)
	}
	a.set(KeyExpName, meta.ExpName)
	a.set(KeyOutputDir, meta.OutputDir)
	a.set(KeyOutputFilename, meta.OutputFilename)

	return a
}

func (a *Assignment) set(name string, value any) {
	if i, ok := a.index[name]; ok {
		a.params[i].Value = value
		a.overridden = append(a.overridden, name)
		return
	}
	a.index[name] = len(a.params)
	a.params = append(a.params, Param{Name: name, Value: value})
}

// Get returns the value of name.
func (a Assignment) Get(name string) (any, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.params[i].Value, true
}

// Len returns the number of parameters.
func (a Assignment) Len() int {
	return len(a.params)
}

// Params returns the parameters in resolution order.
func (a Assignment) Params() []Param {
	out := make([]Param, len(a.params))
	copy(out, a.params)
	return out
}

// SweptNames returns the names of the swept parameters in axis order.
func (a Assignment) SweptNames() []string {
	out := make([]string, len(a.swept))
	copy(out, a.swept)
	return out
}

// Overridden lists keys whose value was replaced by a later layer, one
// element per replacement.
func (a Assignment) Overridden() []string {
	out := make([]string, len(a.overridden))
	copy(out, a.overridden)
	return out
}

// Map returns the parameters as a plain map.
func (a Assignment) Map() map[string]any {
	m := make(map[string]any, len(a.params))
	for _, p := range a.params {
		m[p.Name] = p.Value
	}
	return m
}
