// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

func join(path string, name string) string {
	if "" == path {
		return name
	}
	return path + "." + name
}

// check v against t and return it in canonical shape
//
// integers widen to numbers and dates, objects are reordered, -0
// becomes 0; a nil t accepts any value (additional properties)
func coerce(path string, v value.Value, t *value.Type) (value.Value, error) {
	if nil == v {
		return nil, fault.NewSchemaViolation(path, "null value")
	}
	if nil == t {
		return coerceAny(path, v)
	}

	if i, ok := v.(value.Integer); ok {
		switch t.Kind {
		case value.KindNumber:
			v = value.Number(i)
		case value.KindDate:
			v = value.Date(i)
		}
	}
	if v.Kind() != t.Kind {
		return nil, fault.NewSchemaViolation(path, "expected %s, found %s", t.Kind, v.Kind())
	}

	switch tv := v.(type) {
	case value.Integer:
		return tv, checkBounds(path, float64(tv), t)

	case value.Date:
		return tv, checkBounds(path, float64(tv), t)

	case value.Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fault.NewSchemaViolation(path, "not a finite number")
		}
		if 0 == f {
			tv = 0
		}
		return tv, checkBounds(path, f, t)

	case value.String:
		if !utf8.ValidString(string(tv)) {
			return nil, fault.NewSchemaViolation(path, "invalid UTF-8")
		}
		if err := checkLength(path, utf8.RuneCountInString(string(tv)), t.MinLength, t.MaxLength); nil != err {
			return nil, err
		}
		if nil != t.Pattern && !t.Pattern.MatchString(string(tv)) {
			return nil, fault.NewSchemaViolation(path, "does not match %s", t.Pattern)
		}
		return tv, nil

	case value.Bytes:
		return tv, checkLength(path, len(tv), t.MinLength, t.MaxLength)

	case value.Boolean, value.Identifier:
		return tv, nil

	case value.Array:
		if err := checkLength(path, len(tv), t.MinItems, t.MaxItems); nil != err {
			return nil, err
		}
		a := make(value.Array, len(tv))
		for i, item := range tv {
			c, err := coerce(path+"[]", item, t.Items)
			if nil != err {
				return nil, err
			}
			a[i] = c
		}
		return a, nil

	case value.Object:
		return coerceObject(path, tv, t)
	}
	return nil, fault.NewSchemaViolation(path, "unsupported value")
}

func coerceAny(path string, v value.Value) (value.Value, error) {
	switch tv := v.(type) {
	case value.Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fault.NewSchemaViolation(path, "not a finite number")
		}
		if 0 == f {
			tv = 0
		}
		return tv, nil

	case value.String:
		if !utf8.ValidString(string(tv)) {
			return nil, fault.NewSchemaViolation(path, "invalid UTF-8")
		}
		return tv, nil

	case value.Array:
		a := make(value.Array, len(tv))
		for i, item := range tv {
			c, err := coerceAny(path+"[]", item)
			if nil != err {
				return nil, err
			}
			a[i] = c
		}
		return a, nil

	case value.Object:
		o := make(value.Object, 0, len(tv))
		for _, f := range tv {
			if !contract.ValidPropertyName(f.Name) {
				return nil, fault.NewSchemaViolation(join(path, f.Name), "invalid property name")
			}
			c, err := coerceAny(join(path, f.Name), f.Value)
			if nil != err {
				return nil, err
			}
			o = append(o, value.Field{Name: f.Name, Value: c})
		}
		return sortFields(path, o)

	case nil:
		return nil, fault.NewSchemaViolation(path, "null value")
	}
	return v, nil
}

// declared members in schema order then extras sorted by name
func coerceObject(path string, fields value.Object, t *value.Type) (value.Object, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Name]; ok {
			return nil, fault.NewSchemaViolation(join(path, f.Name), "repeated property")
		}
		seen[f.Name] = struct{}{}
	}

	o := make(value.Object, 0, len(fields))
	for _, p := range t.Properties {
		v, ok := fields.Get(p.Name)
		if !ok {
			if t.IsRequired(p.Name) {
				return nil, fault.NewSchemaViolation(join(path, p.Name), "required property missing")
			}
			continue
		}
		c, err := coerce(join(path, p.Name), v, p.Type)
		if nil != err {
			return nil, err
		}
		o = append(o, value.Field{Name: p.Name, Value: c})
	}

	extras := make(value.Object, 0, len(fields)-len(o))
	for _, f := range fields {
		if nil != t.Property(f.Name) {
			continue
		}
		if !t.AdditionalProperties {
			return nil, fault.NewSchemaViolation(join(path, f.Name), "unknown property")
		}
		if !contract.ValidPropertyName(f.Name) {
			return nil, fault.NewSchemaViolation(join(path, f.Name), "invalid property name")
		}
		c, err := coerceAny(join(path, f.Name), f.Value)
		if nil != err {
			return nil, err
		}
		extras = append(extras, value.Field{Name: f.Name, Value: c})
	}
	sorted, err := sortFields(path, extras)
	if nil != err {
		return nil, err
	}
	return append(o, sorted...), nil
}

func sortFields(path string, o value.Object) (value.Object, error) {
	sort.Slice(o, func(i, j int) bool { return o[i].Name < o[j].Name })
	for i := 1; i < len(o); i += 1 {
		if o[i-1].Name == o[i].Name {
			return nil, fault.NewSchemaViolation(join(path, o[i].Name), "repeated property")
		}
	}
	return o, nil
}

func checkBounds(path string, f float64, t *value.Type) error {
	if nil != t.Minimum && f < *t.Minimum {
		return fault.NewSchemaViolation(path, "below minimum %v", *t.Minimum)
	}
	if nil != t.Maximum && f > *t.Maximum {
		return fault.NewSchemaViolation(path, "above maximum %v", *t.Maximum)
	}
	return nil
}

func checkLength(path string, n int, min *int, max *int) error {
	if nil != min && n < *min {
		return fault.NewSchemaViolation(path, "shorter than %d", *min)
	}
	if nil != max && n > *max {
		return fault.NewSchemaViolation(path, "longer than %d", *max)
	}
	return nil
}
