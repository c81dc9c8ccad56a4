package model

import (
	"bytes"
	"encoding/json"
)

type Field struct {
	Key   string
	Value any
}

// Fields is an insertion-ordered string→value mapping.
type Fields []Field

func NewFields(kv ...Field) Fields {
	var f Fields
	for _, p := range kv {
		f = f.Set(p.Key, p.Value)
	}
	return f
}

// Set replaces the value of an existing key in place or appends a new one.
func (f Fields) Set(key string, value any) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

func (f Fields) Get(key string) (any, bool) {
	for _, p := range f {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for _, p := range f {
		keys = append(keys, p.Key)
	}
	return keys
}

func (f Fields) Len() int { return len(f) }

// MarshalJSON encodes the fields as a JSON object keeping insertion order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
