package patients

import (
	"bytes"
	"encoding/json"
)

// Record is one CSV row. Columns keep the header order.
type Record struct {
	columns []string
	values  map[string]string
}

// NewRecord builds a record from header columns and matching values;
// missing trailing values become empty strings.
func NewRecord(columns, values []string) Record {
	r := Record{columns: columns, values: make(map[string]string, len(columns))}
	for i, col := range columns {
		if i < len(values) {
			r.values[col] = values[i]
		} else {
			r.values[col] = ""
		}
	}
	return r
}

// Get returns the value of column col
func (r Record) Get(col string) (string, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Columns returns the column names in header order
func (r Record) Columns() []string {
	return r.columns
}

// Map returns a copy of the row as a plain map
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the row as an object with keys in header order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
