package churn

// Aligner maps records onto a fixed feature column list. It is immutable and
// safe for concurrent use.
type Aligner struct {
	columns []string
	index   map[string]int
}

// NewAligner validates columns and precomputes their positions.
func NewAligner(columns []string) (*Aligner, error) {
	if len(columns) == 0 {
		return nil, &SchemaMismatchError{Reason: "feature column list is empty"}
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return nil, &SchemaMismatchError{Reason: "feature column list has a blank name"}
		}
		if _, dup := index[name]; dup {
			return nil, &SchemaMismatchError{Reason: "feature column " + name + " appears twice"}
		}
		index[name] = i
	}
	return &Aligner{
		columns: append([]string(nil), columns...),
		index:   index,
	}, nil
}

// Align returns the feature vector for r in column order. Expanded values
// without a column are dropped and columns without a value stay zero, so an
// unseen category leaves its whole indicator slice at zero.
func (a *Aligner) Align(r Record) []float64 {
	vector := make([]float64, len(a.columns))
	for name, value := range r.Expand() {
		if i, ok := a.index[name]; ok {
			vector[i] = value
		}
	}
	return vector
}

// Columns returns a copy of the feature column list.
func (a *Aligner) Columns() []string {
	return append([]string(nil), a.columns...)
}

func (a *Aligner) Len() int { return len(a.columns) }
