// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/sjson"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

func TestParseFamily(t *testing.T) {
	c, err := contract.Parse(familyJSON(t))
	if nil != err {
		t.Fatalf("parse error: %s", err)
	}

	assert.Equal(t, "GphPXDubjh675USdyScBcmXrxFadH1mq9u1bsQs1YTgZ", c.ID.String(), "id")
	assert.Equal(t, uint64(1), c.Version, "version")
	assert.Equal(t, 2, len(c.Types), "document types")
	assert.Equal(t, "person", c.Types[0].Name, "declared order")
	assert.False(t, strings.ContainsAny(string(c.Raw), " \n"), "raw JSON not compacted")

	person, err := c.DocumentType("person")
	assert.Nil(t, err, "person")
	assert.True(t, person.KeepsHistory, "person history")
	assert.True(t, person.Mutable, "person mutable")
	assert.True(t, person.RequiresCreatedAt, "person $createdAt")
	assert.True(t, person.RequiresUpdatedAt, "person $updatedAt")
	assert.Equal(t, []string{"firstName", "lastName", "age"}, person.Schema.Required, "required")

	names := []string{}
	for _, p := range person.Schema.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"firstName", "middleName", "lastName", "age", "message"}, names, "property order")
	assert.Equal(t, 63, *person.Schema.Property("firstName").MaxLength, "maxLength")

	assert.Equal(t, 5, len(person.Indices), "declared indices")
	assert.Equal(t, "+$id", person.Primary.Signature(), "primary")
	assert.True(t, person.Primary.Unique, "primary unique")
	assert.Equal(t, "+firstName,-age", person.Indices[3].Signature(), "compound signature")
	assert.Equal(t, 1, person.Indices[3].Position("age"), "position")
	assert.True(t, person.Indices[1].Unique, "unique index")
	assert.Equal(t, 6, len(person.AllIndices()), "all indices")
	assert.Equal(t, person.Primary, person.AllIndices()[0], "primary first")

	pt, ok := person.PropertyType("$ownerId")
	assert.True(t, ok, "system property")
	assert.Equal(t, value.KindIdentifier, pt.Kind, "$ownerId kind")
	pt, ok = person.PropertyType("$updatedAt")
	assert.True(t, ok, "system property")
	assert.Equal(t, value.KindDate, pt.Kind, "$updatedAt kind")
	_, ok = person.PropertyType("firstName.inner")
	assert.False(t, ok, "path through a string")

	contact, err := c.DocumentType("contact")
	assert.Nil(t, err, "contact")
	assert.False(t, contact.Mutable, "contact mutable")
	assert.False(t, contact.KeepsHistory, "contact history")
	assert.Equal(t, value.KindIdentifier, contact.Schema.Property("toUserId").Kind, "identifier byte array")
	tags := contact.Schema.Property("tags")
	assert.Equal(t, value.KindArray, tags.Kind, "array")
	assert.Equal(t, value.KindString, tags.Items.Kind, "array items")

	_, err = c.DocumentType("pet")
	assert.True(t, errors.Is(err, fault.ErrUnknownDocumentType), "unknown type: %v", err)
}

func TestParseNested(t *testing.T) {
	raw := `{"$id":"GphPXDubjh675USdyScBcmXrxFadH1mq9u1bsQs1YTgZ","ownerId":"8tt56GTxxgvPXCtcmkjLHLzpEyqCviQLH5jhsbstW5kA","version":3,
"documents":{"place":{"type":"object","properties":{
  "address":{"type":"object","properties":{"city":{"type":"string"},"zip":{"type":"integer"}},"required":["city"]},
  "founded":{"type":"integer","format":"date-time"},
  "photo":{"type":"array","byteArray":true,"maxItems":1024}},
 "indices":[{"name":"city","properties":[{"address.city":"asc"},{"founded":"desc"}]}]}}}`

	c, err := contract.Parse([]byte(raw))
	if nil != err {
		t.Fatalf("parse error: %s", err)
	}
	place, _ := c.DocumentType("place")
	pt, ok := place.PropertyType("address.city")
	assert.True(t, ok, "nested path")
	assert.Equal(t, value.KindString, pt.Kind, "nested kind")
	assert.Equal(t, []string{"city"}, place.Schema.Property("address").Required, "nested required")
	assert.Equal(t, value.KindDate, place.Schema.Property("founded").Kind, "date-time integer")
	assert.Equal(t, value.KindBytes, place.Schema.Property("photo").Kind, "byte array")
	assert.True(t, place.Mutable, "default mutable")
	assert.False(t, place.Schema.AdditionalProperties, "default additional properties")
}

func TestParseRejects(t *testing.T) {
	raw := familyJSON(t)

	set := func(path string, v interface{}) []byte {
		b, err := sjson.SetBytes(raw, path, v)
		if nil != err {
			t.Fatalf("set %s error: %s", path, err)
		}
		return b
	}
	setRaw := func(path string, v string) []byte {
		b, err := sjson.SetRawBytes(raw, path, []byte(v))
		if nil != err {
			t.Fatalf("set %s error: %s", path, err)
		}
		return b
	}

	// eleven distinct property sequences
	props := []string{"firstName", "middleName", "lastName", "age", "message"}
	many := []string{}
	for _, p := range props {
		many = append(many, fmt.Sprintf(`{"name":"%s1","properties":[{"%s":"asc"}]}`, p, p))
	}
	for i, p := range props {
		for _, q := range props[i+1:] {
			many = append(many, fmt.Sprintf(`{"name":"%s%s","properties":[{"%s":"asc"},{"%s":"asc"}]}`, p, q, p, q))
		}
	}
	many = many[:contract.MaxIndices+1]

	items := []struct {
		name     string
		raw      []byte
		expected error
	}{
		{"not JSON", []byte(`{"$id":`), fault.ErrInvalidContract},
		{"not an object", []byte(`[1,2]`), fault.ErrInvalidContract},
		{"short id", set("$id", "3mJr7AoUXx2Wqd"), fault.ErrInvalidContract},
		{"bad owner", set("ownerId", "0OIl"), fault.ErrInvalidContract},
		{"zero version", set("version", 0), fault.ErrInvalidContract},
		{"fractional version", set("version", 1.5), fault.ErrInvalidContract},
		{"no documents", setRaw("documents", `{}`), fault.ErrInvalidContract},
		{"bad type name", setRaw("documents.9lives", `{"properties":{}}`), fault.ErrInvalidContract},
		{"unknown property type", set("documents.person.properties.age.type", "decimal"), fault.ErrInvalidContract},
		{"array without items", setRaw("documents.person.properties.list", `{"type":"array"}`), fault.ErrInvalidContract},
		{"bad pattern", set("documents.person.properties.message.pattern", "(["), fault.ErrInvalidContract},
		{"inverted lengths", set("documents.person.properties.message.minLength", 500), fault.ErrInvalidContract},
		{"unknown required", setRaw("documents.person.required", `["nobody"]`), fault.ErrInvalidContract},
		{"index on array", setRaw("documents.contact.indices.-1", `{"name":"tags","properties":[{"tags":"asc"}]}`), fault.ErrInvalidContract},
		{"index on unknown", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"shoeSize":"asc"}]}`), fault.ErrInvalidContract},
		{"bad direction", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"age":"up"}]}`), fault.ErrInvalidContract},
		{"empty index", setRaw("documents.person.indices.-1", `{"name":"x","properties":[]}`), fault.ErrInvalidContract},
		{"repeated index property", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"age":"asc"},{"age":"desc"}]}`), fault.ErrInvalidContract},
		{"repeated index name", setRaw("documents.person.indices.-1", `{"name":"owner","properties":[{"age":"asc"}]}`), fault.ErrInvalidContract},
		{"two properties in one entry", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"age":"asc","message":"asc"}]}`), fault.ErrInvalidContract},
		{"too many indices", setRaw("documents.person.indices", "["+strings.Join(many, ",")+"]"), fault.ErrInvalidContract},
		{"duplicate sequence", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"firstName":"desc"}]}`), fault.ErrDuplicateIndex},
		{"duplicates primary", setRaw("documents.person.indices.-1", `{"name":"x","properties":[{"$id":"asc"}]}`), fault.ErrDuplicateIndex},
	}
	for _, item := range items {
		_, err := contract.Parse(item.raw)
		assert.True(t, errors.Is(err, item.expected), "%s: error: %v", item.name, err)
	}
}

func TestCheckUpdate(t *testing.T) {
	raw := familyJSON(t)
	current, err := contract.Parse(raw)
	if nil != err {
		t.Fatalf("parse error: %s", err)
	}

	parse := func(paths ...interface{}) *contract.DataContract {
		b := raw
		for i := 0; i < len(paths); i += 2 {
			switch v := paths[i+1].(type) {
			case string:
				b, err = sjson.SetRawBytes(b, paths[i].(string), []byte(v))
			default:
				b, err = sjson.SetBytes(b, paths[i].(string), v)
			}
			if nil != err {
				t.Fatalf("set error: %s", err)
			}
		}
		c, err := contract.Parse(b)
		if nil != err {
			t.Fatalf("parse error: %s", err)
		}
		return c
	}

	assert.Nil(t, current.CheckUpdate(parse("version", 2)), "plain version bump")
	assert.Nil(t, current.CheckUpdate(parse("version", 2, "documents.pet", `{"properties":{"name":{"type":"string"}}}`)), "added type")

	rejected := []*contract.DataContract{
		parse("version", 3),
		parse("version", 1),
		parse("version", 2, "ownerId", `"GphPXDubjh675USdyScBcmXrxFadH1mq9u1bsQs1YTgZ"`),
		parse("version", 2, "$id", `"8tt56GTxxgvPXCtcmkjLHLzpEyqCviQLH5jhsbstW5kA"`),
		parse("version", 2, "documents.person.properties.message.maxLength", 64),
		parse("version", 2, "documents.person.documentsMutable", false),
		parse("version", 2, "documents.person.indices.0.unique", true),
	}
	for i, next := range rejected {
		err := current.CheckUpdate(next)
		assert.True(t, errors.Is(err, fault.ErrInvalidContractUpdate), "%d: error: %v", i, err)
	}

	removed, err := sjson.DeleteBytes(raw, "documents.contact")
	assert.Nil(t, err, "delete error")
	removed, _ = sjson.SetBytes(removed, "version", 2)
	next, err := contract.Parse(removed)
	assert.Nil(t, err, "parse error")
	assert.True(t, errors.Is(current.CheckUpdate(next), fault.ErrInvalidContractUpdate), "removed type accepted")
}

func TestRegistry(t *testing.T) {
	raw := familyJSON(t)
	c, err := contract.Parse(raw)
	if nil != err {
		t.Fatalf("parse error: %s", err)
	}

	r := contract.NewRegistry(logger.New("contract"))
	_, ok := r.Get(c.ID, c.Version)
	assert.False(t, ok, "empty registry")

	first, err := r.Load(c.ID, c.Version, raw)
	assert.Nil(t, err, "load error")
	second, err := r.Load(c.ID, c.Version, first.Raw)
	assert.Nil(t, err, "cached load error")
	assert.True(t, first == second, "cache miss")

	// other bytes under the same id and version are parsed again
	_, err = r.Load(c.ID, c.Version, []byte(`{}`))
	assert.ErrorIs(t, err, fault.ErrInvalidContract, "stale cache entry used")

	_, err = r.Load(c.ID, c.Version+1, raw)
	assert.Equal(t, fault.ErrCorruptEncoding, err, "version mismatch")

	r.Flush()
	_, ok = r.Get(c.ID, c.Version)
	assert.False(t, ok, "flushed registry")
}
