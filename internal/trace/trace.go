// Package trace simulates a causal graph over sampled inputs and
// collects the resulting execution table.
package trace

import "fmt"

// Trace is a table of simulated values: one column per graph node, one
// row per surviving trial. Tables returned to callers never contain
// missing values; failed trials are dropped whole.
type Trace struct {
	Columns []string
	Values  map[string][]float64
}

// New creates an empty trace with the given column set.
func New(columns []string) *Trace {
	t := &Trace{
		Columns: append([]string(nil), columns...),
		Values:  make(map[string][]float64, len(columns)),
	}
	for _, c := range t.Columns {
		t.Values[c] = []float64{}
	}
	return t
}

// NumRows returns the number of rows in the table.
func (t *Trace) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Values[t.Columns[0]])
}

// Column returns the samples for one node.
func (t *Trace) Column(id string) []float64 {
	return t.Values[id]
}

// AppendRow adds one complete row. Every column must be present.
func (t *Trace) AppendRow(row map[string]float64) error {
	for _, c := range t.Columns {
		if _, ok := row[c]; !ok {
			return fmt.Errorf("row missing column %s", c)
		}
	}
	for _, c := range t.Columns {
		t.Values[c] = append(t.Values[c], row[c])
	}
	return nil
}

// Select returns a new trace containing the given rows, in order.
// Indexes may repeat, which is what bootstrap resampling relies on.
func (t *Trace) Select(rows []int) *Trace {
	out := New(t.Columns)
	for _, c := range t.Columns {
		src := t.Values[c]
		col := make([]float64, 0, len(rows))
		for _, i := range rows {
			col = append(col, src[i])
		}
		out.Values[c] = col
	}
	return out
}
