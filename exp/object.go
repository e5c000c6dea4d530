package exp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aponysus/effex/effect"
)

// Field is a named member of an ObjExp.
type Field struct {
	name string
	eff  effect.Effect[any]
}

// F names the effect computing one field of an object.
func F[T any](name string, e effect.Effect[T]) Field {
	if e == nil {
		effect.Invalid("object", fmt.Sprintf("nil effect for field %q", name))
	}
	return Field{name: name, eff: Erase(e)}
}

// Object is an ordered set of named values. Keys keep declaration order.
type Object struct {
	keys   []string
	values map[string]any
}

// Keys returns the field names in declaration order.
func (o Object) Keys() []string { return append([]string(nil), o.keys...) }

// Get returns the value of a field.
func (o Object) Get(name string) (any, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Len reports the number of fields.
func (o Object) Len() int { return len(o.keys) }

// MarshalJSON encodes the object with its fields in declaration order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("effex: marshal field %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ObjExp assembles an Object whose fields are computed by effects.
type ObjExp struct {
	mode   mode
	fields []Field
}

// ObjSeq computes the fields in declared order and stops at the first failure.
func ObjSeq(fields ...Field) *ObjExp { return newObj(seq, fields) }

// ObjPar computes the fields concurrently.
func ObjPar(fields ...Field) *ObjExp { return newObj(par, fields) }

func newObj(m mode, fields []Field) *ObjExp {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.eff == nil {
			effect.Invalid("object", fmt.Sprintf("empty field at position %d", i))
		}
		if _, dup := seen[f.name]; dup {
			effect.Invalid("object", fmt.Sprintf("duplicate field %q", f.name))
		}
		seen[f.name] = struct{}{}
	}
	return &ObjExp{mode: m, fields: append([]Field(nil), fields...)}
}

// Effect returns the expression as an effect.
func (x *ObjExp) Effect() effect.Effect[Object] {
	fields, m := x.fields, x.mode
	members := make([]effect.Effect[any], len(fields))
	for i, f := range fields {
		members[i] = f.eff
	}
	return func(ctx context.Context) (Object, error) {
		vals, err := collect(ctx, m, members)
		if err != nil {
			return Object{}, err
		}
		o := Object{keys: make([]string, len(fields)), values: make(map[string]any, len(fields))}
		for i, f := range fields {
			o.keys[i] = f.name
			o.values[f.name] = vals[i]
		}
		return o, nil
	}
}

// Run evaluates the expression.
func (x *ObjExp) Run(ctx context.Context) (Object, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose fields are instrumented as label.name.
func (x *ObjExp) DebugEach(label string) *ObjExp {
	out := &ObjExp{mode: x.mode, fields: make([]Field, len(x.fields))}
	for i, f := range x.fields {
		out.fields[i] = Field{name: f.name, eff: f.eff.Debug(label + "." + f.name)}
	}
	return out
}
