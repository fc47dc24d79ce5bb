// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"fmt"
	"math"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// media type marking a 32 byte array as an identifier
const identifierMediaType = "application/x.dash.dpp.identifier"

// deepest nesting of arrays and objects inside a property
const maxNesting = 8

var (
	typeNamePattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)
	propertyNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)
)

func invalid(format string, arguments ...interface{}) error {
	return fmt.Errorf(format+": %w", append(arguments, fault.ErrInvalidContract)...)
}

// Parse - validate a JSON contract
func Parse(raw []byte) (*DataContract, error) {
	if !gjson.ValidBytes(raw) {
		return nil, invalid("malformed JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, invalid("contract is not an object")
	}
	fields := root.Map()

	c := &DataContract{
		Raw: []byte(gjson.GetBytes(raw, "@ugly").Raw),
	}

	var err error
	c.ID, err = identifier(fields["$id"], "$id")
	if nil != err {
		return nil, err
	}
	c.OwnerID, err = identifier(fields["ownerId"], "ownerId")
	if nil != err {
		return nil, err
	}

	version := fields["version"]
	if gjson.Number != version.Type || version.Num < 1 || version.Num != math.Trunc(version.Num) {
		return nil, invalid("version: %s", version.Raw)
	}
	c.Version = version.Uint()

	documents := fields["documents"]
	if !documents.IsObject() {
		return nil, invalid("documents is not an object")
	}
	documents.ForEach(func(k gjson.Result, v gjson.Result) bool {
		name := k.String()
		if _, e := c.DocumentType(name); nil == e {
			err = invalid("document type %q repeated", name)
			return false
		}
		var dt *DocumentType
		dt, err = parseDocumentType(name, v)
		if nil != err {
			return false
		}
		c.Types = append(c.Types, dt)
		return true
	})
	if nil != err {
		return nil, err
	}
	if 0 == len(c.Types) {
		return nil, invalid("no document types")
	}
	return c, nil
}

func identifier(r gjson.Result, name string) (value.Identifier, error) {
	if gjson.String != r.Type {
		return value.Identifier{}, invalid("%s is not a string", name)
	}
	id, err := value.ParseIdentifier(r.String())
	if nil != err {
		return value.Identifier{}, invalid("%s: %s", name, err)
	}
	return id, nil
}

func parseDocumentType(name string, r gjson.Result) (*DocumentType, error) {
	if !typeNamePattern.MatchString(name) {
		return nil, invalid("document type name %q", name)
	}
	if !r.IsObject() {
		return nil, invalid("document type %q is not an object", name)
	}
	fields := r.Map()
	if t, ok := fields["type"]; ok && "object" != t.String() {
		return nil, invalid("document type %q has type %s", name, t.Raw)
	}

	schema, err := parseObject(name, fields, 0, true)
	if nil != err {
		return nil, err
	}

	dt := &DocumentType{
		Name:    name,
		Primary: newPrimaryIndex(),
		Mutable: true,
		raw:     r.Get("@ugly").Raw,
	}

	// timestamps are required at the document level only
	required := make([]string, 0, len(schema.Required))
	for _, p := range schema.Required {
		switch p {
		case CreatedAtProperty:
			dt.RequiresCreatedAt = true
		case UpdatedAtProperty:
			dt.RequiresUpdatedAt = true
		default:
			required = append(required, p)
		}
	}
	schema.Required = required
	dt.Schema = schema

	if dt.KeepsHistory, err = flag(fields, "documentsKeepHistory", false); nil != err {
		return nil, err
	}
	if dt.Mutable, err = flag(fields, "documentsMutable", true); nil != err {
		return nil, err
	}

	if err := parseIndices(dt, fields["indices"]); nil != err {
		return nil, err
	}
	return dt, nil
}

func flag(fields map[string]gjson.Result, name string, defaultValue bool) (bool, error) {
	r, ok := fields[name]
	if !ok {
		return defaultValue, nil
	}
	if !r.IsBool() {
		return false, invalid("%s is not a boolean", name)
	}
	return r.Bool(), nil
}

func parseType(path string, r gjson.Result, depth int) (*value.Type, error) {
	if depth > maxNesting {
		return nil, invalid("%s: nested too deeply", path)
	}
	if !r.IsObject() {
		return nil, invalid("%s: definition is not an object", path)
	}
	fields := r.Map()
	t := &value.Type{}

	var err error
	switch kind := fields["type"].String(); kind {
	case "string":
		t.Kind = value.KindString
		if t.MinLength, t.MaxLength, err = lengths(path, fields, "minLength", "maxLength"); nil != err {
			return nil, err
		}
		if p, ok := fields["pattern"]; ok {
			t.Pattern, err = regexp.Compile(p.String())
			if nil != err {
				return nil, invalid("%s: pattern: %s", path, err)
			}
		}

	case "integer":
		t.Kind = value.KindInteger
		if "date-time" == fields["format"].String() {
			t.Kind = value.KindDate
		}
		if t.Minimum, t.Maximum, err = bounds(path, fields); nil != err {
			return nil, err
		}

	case "number":
		t.Kind = value.KindNumber
		if t.Minimum, t.Maximum, err = bounds(path, fields); nil != err {
			return nil, err
		}

	case "date":
		t.Kind = value.KindDate
		if t.Minimum, t.Maximum, err = bounds(path, fields); nil != err {
			return nil, err
		}

	case "boolean":
		t.Kind = value.KindBoolean

	case "array":
		if fields["byteArray"].Bool() {
			t.Kind = value.KindBytes
			if t.MinLength, t.MaxLength, err = lengths(path, fields, "minItems", "maxItems"); nil != err {
				return nil, err
			}
			if identifierMediaType == fields["contentMediaType"].String() {
				if (nil != t.MinLength && value.IdentifierLength != *t.MinLength) ||
					(nil != t.MaxLength && value.IdentifierLength != *t.MaxLength) {
					return nil, invalid("%s: identifier must be %d bytes", path, value.IdentifierLength)
				}
				t.Kind = value.KindIdentifier
				t.MinLength = nil
				t.MaxLength = nil
			}
			break
		}
		items, ok := fields["items"]
		if !ok {
			return nil, invalid("%s: array without items", path)
		}
		t.Kind = value.KindArray
		if t.Items, err = parseType(path+"[]", items, depth+1); nil != err {
			return nil, err
		}
		if t.MinItems, t.MaxItems, err = lengths(path, fields, "minItems", "maxItems"); nil != err {
			return nil, err
		}

	case "object":
		return parseObject(path, fields, depth, false)

	default:
		return nil, invalid("%s: unsupported type %q", path, kind)
	}
	return t, nil
}

// the document level may list timestamps as required
func parseObject(path string, fields map[string]gjson.Result, depth int, document bool) (*value.Type, error) {
	t := &value.Type{
		Kind: value.KindObject,
	}

	properties := fields["properties"]
	if properties.Exists() && !properties.IsObject() {
		return nil, invalid("%s: properties is not an object", path)
	}

	var err error
	properties.ForEach(func(k gjson.Result, v gjson.Result) bool {
		name := k.String()
		if !propertyNamePattern.MatchString(name) {
			err = invalid("%s: property name %q", path, name)
			return false
		}
		if nil != t.Property(name) {
			err = invalid("%s: property %q repeated", path, name)
			return false
		}
		var pt *value.Type
		pt, err = parseType(path+"."+name, v, depth+1)
		if nil != err {
			return false
		}
		t.Properties = append(t.Properties, value.Property{Name: name, Type: pt})
		return true
	})
	if nil != err {
		return nil, err
	}

	if required, ok := fields["required"]; ok {
		if !required.IsArray() {
			return nil, invalid("%s: required is not an array", path)
		}
		for _, r := range required.Array() {
			name := r.String()
			switch {
			case gjson.String != r.Type:
				return nil, invalid("%s: required entry %s", path, r.Raw)
			case t.IsRequired(name):
				return nil, invalid("%s: required %q repeated", path, name)
			case document && (CreatedAtProperty == name || UpdatedAtProperty == name):
			case nil == t.Property(name):
				return nil, invalid("%s: required %q is not a property", path, name)
			}
			t.Required = append(t.Required, name)
		}
	}

	if a, ok := fields["additionalProperties"]; ok {
		if !a.IsBool() {
			return nil, invalid("%s: additionalProperties is not a boolean", path)
		}
		t.AdditionalProperties = a.Bool()
	}
	return t, nil
}

func lengths(path string, fields map[string]gjson.Result, minName string, maxName string) (*int, *int, error) {
	get := func(name string) (*int, error) {
		r, ok := fields[name]
		if !ok {
			return nil, nil
		}
		if gjson.Number != r.Type || r.Num < 0 || r.Num != math.Trunc(r.Num) || r.Num > math.MaxInt32 {
			return nil, invalid("%s: %s: %s", path, name, r.Raw)
		}
		n := int(r.Int())
		return &n, nil
	}
	min, err := get(minName)
	if nil != err {
		return nil, nil, err
	}
	max, err := get(maxName)
	if nil != err {
		return nil, nil, err
	}
	if nil != min && nil != max && *min > *max {
		return nil, nil, invalid("%s: %s exceeds %s", path, minName, maxName)
	}
	return min, max, nil
}

func bounds(path string, fields map[string]gjson.Result) (*float64, *float64, error) {
	get := func(name string) (*float64, error) {
		r, ok := fields[name]
		if !ok {
			return nil, nil
		}
		if gjson.Number != r.Type {
			return nil, invalid("%s: %s: %s", path, name, r.Raw)
		}
		f := r.Float()
		return &f, nil
	}
	min, err := get("minimum")
	if nil != err {
		return nil, nil, err
	}
	max, err := get("maximum")
	if nil != err {
		return nil, nil, err
	}
	if nil != min && nil != max && *min > *max {
		return nil, nil, invalid("%s: minimum exceeds maximum", path)
	}
	return min, max, nil
}

func parseIndices(dt *DocumentType, r gjson.Result) error {
	if !r.Exists() {
		return nil
	}
	if !r.IsArray() {
		return invalid("%s: indices is not an array", dt.Name)
	}
	list := r.Array()
	if len(list) > MaxIndices {
		return invalid("%s: %d indices exceeds %d", dt.Name, len(list), MaxIndices)
	}

	names := map[string]struct{}{
		PrimaryIndexName: {},
	}
	sequences := map[string]string{
		dt.Primary.pathSequence(): PrimaryIndexName,
	}
	for _, ir := range list {
		index, err := parseIndex(dt, ir)
		if nil != err {
			return err
		}
		if _, ok := names[index.Name]; ok {
			return invalid("%s: index name %q repeated", dt.Name, index.Name)
		}
		names[index.Name] = struct{}{}

		sequence := index.pathSequence()
		if other, ok := sequences[sequence]; ok {
			return fmt.Errorf("%s: index %q repeats the properties of %q: %w", dt.Name, index.Name, other, fault.ErrDuplicateIndex)
		}
		sequences[sequence] = index.Name
		dt.Indices = append(dt.Indices, index)
	}
	return nil
}

func parseIndex(dt *DocumentType, r gjson.Result) (*Index, error) {
	if !r.IsObject() {
		return nil, invalid("%s: index is not an object", dt.Name)
	}
	fields := r.Map()

	name := fields["name"]
	if gjson.String != name.Type || "" == name.String() {
		return nil, invalid("%s: index without a name", dt.Name)
	}
	index := &Index{
		Name: name.String(),
	}
	if u, ok := fields["unique"]; ok {
		if !u.IsBool() {
			return nil, invalid("%s: index %q: unique is not a boolean", dt.Name, index.Name)
		}
		index.Unique = u.Bool()
	}

	properties := fields["properties"]
	if !properties.IsArray() || 0 == len(properties.Array()) {
		return nil, invalid("%s: index %q has no properties", dt.Name, index.Name)
	}
	for _, pr := range properties.Array() {
		entries := 0
		var err error
		pr.ForEach(func(k gjson.Result, v gjson.Result) bool {
			entries += 1
			var p IndexProperty
			p, err = indexProperty(dt, index, k.String(), v)
			if nil != err {
				return false
			}
			index.Properties = append(index.Properties, p)
			return true
		})
		if nil != err {
			return nil, err
		}
		if !pr.IsObject() || 1 != entries {
			return nil, invalid("%s: index %q: property entry %s", dt.Name, index.Name, pr.Raw)
		}
	}
	return index, nil
}

func indexProperty(dt *DocumentType, index *Index, path string, direction gjson.Result) (IndexProperty, error) {
	p := IndexProperty{
		Path: path,
	}
	switch direction.String() {
	case "asc":
	case "desc":
		p.Descending = true
	default:
		return p, invalid("%s: index %q: %s: direction %s", dt.Name, index.Name, path, direction.Raw)
	}
	if index.Position(path) >= 0 {
		return p, invalid("%s: index %q: %s repeated", dt.Name, index.Name, path)
	}
	t, ok := dt.PropertyType(path)
	if !ok {
		return p, invalid("%s: index %q: %s is not a property", dt.Name, index.Name, path)
	}
	if !t.Kind.Indexable() {
		return p, invalid("%s: index %q: %s is a %s", dt.Name, index.Name, path, t.Kind)
	}
	return p, nil
}
