// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package document

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// JSON member holding the revision
const revisionProperty = "$revision"

// FromJSON - a document from its JSON form
//
// identifiers are base58 strings, byte arrays are base64 strings and
// timestamps are milliseconds
func FromJSON(raw []byte, dt *contract.DocumentType) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fault.NewSchemaViolation("", "malformed JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fault.NewSchemaViolation("", "document is not an object")
	}

	d := &Document{
		Revision: 1,
	}
	fields := value.Object{}
	var err error
	haveID := false
	haveOwner := false

	root.ForEach(func(k gjson.Result, v gjson.Result) bool {
		name := k.String()
		switch name {
		case contract.IDProperty:
			d.ID, err = jsonIdentifier(name, v)
			haveID = true
		case contract.OwnerIDProperty:
			d.OwnerID, err = jsonIdentifier(name, v)
			haveOwner = true
		case revisionProperty:
			var n int64
			n, err = jsonInteger(name, v)
			if nil == err && n < 1 {
				err = fault.NewSchemaViolation(name, "revision must be positive")
			}
			d.Revision = uint64(n)
		case contract.CreatedAtProperty:
			var n int64
			n, err = jsonInteger(name, v)
			d.CreatedAt = &n
		case contract.UpdatedAtProperty:
			var n int64
			n, err = jsonInteger(name, v)
			d.UpdatedAt = &n
		default:
			if strings.HasPrefix(name, "$") {
				err = fault.NewSchemaViolation(name, "unknown system property")
				return false
			}
			var pv value.Value
			pv, err = jsonValue(name, v, dt.Schema.Property(name))
			fields = append(fields, value.Field{Name: name, Value: pv})
		}
		return nil == err
	})
	if nil != err {
		return nil, err
	}
	if !haveID {
		return nil, fault.NewSchemaViolation(contract.IDProperty, "required property missing")
	}
	if !haveOwner {
		return nil, fault.NewSchemaViolation(contract.OwnerIDProperty, "required property missing")
	}

	o, err := coerceObject("", fields, dt.Schema)
	if nil != err {
		return nil, err
	}
	d.Properties = o
	return d, nil
}

func jsonIdentifier(path string, r gjson.Result) (value.Identifier, error) {
	if gjson.String != r.Type {
		return value.Identifier{}, fault.NewSchemaViolation(path, "expected identifier string")
	}
	id, err := value.ParseIdentifier(r.String())
	if nil != err {
		return value.Identifier{}, fault.NewSchemaViolation(path, "%s", err)
	}
	return id, nil
}

func jsonInteger(path string, r gjson.Result) (int64, error) {
	if gjson.Number != r.Type || r.Num != math.Trunc(r.Num) || math.Abs(r.Num) > 1<<63 {
		return 0, fault.NewSchemaViolation(path, "expected integer")
	}
	return r.Int(), nil
}

// ValueFromJSON - convert one JSON value to the declared type
//
// path names the value in any violation
func ValueFromJSON(path string, r gjson.Result, t *value.Type) (value.Value, error) {
	return jsonValue(path, r, t)
}

// t is nil for an undeclared member, its type is then inferred
func jsonValue(path string, r gjson.Result, t *value.Type) (value.Value, error) {
	if nil == t {
		return jsonInfer(path, r)
	}
	switch t.Kind {
	case value.KindString:
		if gjson.String != r.Type {
			return nil, fault.NewSchemaViolation(path, "expected string")
		}
		return value.String(r.String()), nil

	case value.KindInteger:
		n, err := jsonInteger(path, r)
		return value.Integer(n), err

	case value.KindDate:
		n, err := jsonInteger(path, r)
		return value.Date(n), err

	case value.KindNumber:
		if gjson.Number != r.Type {
			return nil, fault.NewSchemaViolation(path, "expected number")
		}
		return value.Number(r.Float()), nil

	case value.KindBoolean:
		if !r.IsBool() {
			return nil, fault.NewSchemaViolation(path, "expected boolean")
		}
		return value.Boolean(r.Bool()), nil

	case value.KindIdentifier:
		return jsonIdentifier(path, r)

	case value.KindBytes:
		if gjson.String != r.Type {
			return nil, fault.NewSchemaViolation(path, "expected base64 string")
		}
		b, err := base64.StdEncoding.DecodeString(r.String())
		if nil != err {
			return nil, fault.NewSchemaViolation(path, "expected base64 string")
		}
		return value.Bytes(b), nil

	case value.KindArray:
		if !r.IsArray() {
			return nil, fault.NewSchemaViolation(path, "expected array")
		}
		a := value.Array{}
		for _, item := range r.Array() {
			v, err := jsonValue(path+"[]", item, t.Items)
			if nil != err {
				return nil, err
			}
			a = append(a, v)
		}
		return a, nil

	case value.KindObject:
		if !r.IsObject() {
			return nil, fault.NewSchemaViolation(path, "expected object")
		}
		o := value.Object{}
		var err error
		r.ForEach(func(k gjson.Result, v gjson.Result) bool {
			var member value.Value
			member, err = jsonValue(join(path, k.String()), v, t.Property(k.String()))
			o = append(o, value.Field{Name: k.String(), Value: member})
			return nil == err
		})
		return o, err
	}
	return nil, fault.NewSchemaViolation(path, "unsupported type %s", t.Kind)
}

func jsonInfer(path string, r gjson.Result) (value.Value, error) {
	switch {
	case gjson.String == r.Type:
		return value.String(r.String()), nil
	case gjson.Number == r.Type:
		if r.Num == math.Trunc(r.Num) && math.Abs(r.Num) < 1<<53 {
			return value.Integer(r.Int()), nil
		}
		return value.Number(r.Float()), nil
	case r.IsBool():
		return value.Boolean(r.Bool()), nil
	case r.IsArray():
		a := value.Array{}
		for _, item := range r.Array() {
			v, err := jsonInfer(path+"[]", item)
			if nil != err {
				return nil, err
			}
			a = append(a, v)
		}
		return a, nil
	case r.IsObject():
		o := value.Object{}
		var err error
		r.ForEach(func(k gjson.Result, v gjson.Result) bool {
			var member value.Value
			member, err = jsonInfer(join(path, k.String()), v)
			o = append(o, value.Field{Name: k.String(), Value: member})
			return nil == err
		})
		return o, err
	}
	return nil, fault.NewSchemaViolation(path, "null value")
}

// JSON - the JSON form, members in canonical order
func (d *Document) JSON() ([]byte, error) {
	out := []byte(`{}`)
	var err error
	set := func(path string, v interface{}) {
		if nil == err {
			out, err = sjson.SetBytes(out, path, v)
		}
	}
	set(contract.IDProperty, d.ID.String())
	set(contract.OwnerIDProperty, d.OwnerID.String())
	set(revisionProperty, d.Revision)
	if nil != d.CreatedAt {
		set(contract.CreatedAtProperty, *d.CreatedAt)
	}
	if nil != d.UpdatedAt {
		set(contract.UpdatedAtProperty, *d.UpdatedAt)
	}
	if nil != err {
		return nil, err
	}

	for _, f := range d.Properties {
		raw, err := jsonRaw(f.Value)
		if nil != err {
			return nil, err
		}
		out, err = sjson.SetRawBytes(out, f.Name, raw)
		if nil != err {
			return nil, err
		}
	}
	return out, nil
}

func jsonRaw(v value.Value) ([]byte, error) {
	switch tv := v.(type) {
	case value.Array:
		out := []byte(`[]`)
		for _, item := range tv {
			raw, err := jsonRaw(item)
			if nil != err {
				return nil, err
			}
			out, err = sjson.SetRawBytes(out, "-1", raw)
			if nil != err {
				return nil, err
			}
		}
		return out, nil

	case value.Object:
		out := []byte(`{}`)
		for _, f := range tv {
			raw, err := jsonRaw(f.Value)
			if nil != err {
				return nil, err
			}
			out, err = sjson.SetRawBytes(out, f.Name, raw)
			if nil != err {
				return nil, err
			}
		}
		return out, nil
	}

	switch tv := v.(type) {
	case value.Integer:
		return strconv.AppendInt(nil, int64(tv), 10), nil
	case value.Date:
		return strconv.AppendInt(nil, int64(tv), 10), nil
	case value.Number:
		return strconv.AppendFloat(nil, float64(tv), 'g', -1, 64), nil
	case value.String:
		return gjson.AppendJSONString(nil, string(tv)), nil
	case value.Boolean:
		return strconv.AppendBool(nil, bool(tv)), nil
	case value.Bytes:
		return gjson.AppendJSONString(nil, base64.StdEncoding.EncodeToString(tv)), nil
	case value.Identifier:
		return gjson.AppendJSONString(nil, tv.String()), nil
	}
	return nil, fault.ErrTypeMismatch
}
