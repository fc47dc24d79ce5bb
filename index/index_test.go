// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package index_test

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

func family(t *testing.T) (*contract.DataContract, *contract.DocumentType) {
	raw, err := ioutil.ReadFile("../testdata/family-contract.json")
	if nil != err {
		t.Fatalf("read contract error: %s", err)
	}
	c, err := contract.Parse(raw)
	if nil != err {
		t.Fatalf("parse contract error: %s", err)
	}
	dt, _ := c.DocumentType("person")
	return c, dt
}

func person(t *testing.T, dt *contract.DocumentType, id byte, first string, last string, age int64) *document.Document {
	d, err := document.New(value.Identifier{id}, value.Identifier{0xee}, map[string]value.Value{
		"firstName": value.String(first),
		"lastName":  value.String(last),
		"age":       value.Integer(age),
	}, dt)
	if nil != err {
		t.Fatalf("new document error: %s", err)
	}
	return d
}

func indexNamed(dt *contract.DocumentType, name string) *contract.Index {
	for _, idx := range dt.AllIndices() {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

func TestBuildEntries(t *testing.T) {
	c, dt := family(t)
	d := person(t, dt, 7, "Adey", "Randolf", 34)

	entries, err := index.BuildEntries(c, dt, d)
	assert.Nil(t, err, "build error")
	assert.Equal(t, 1+len(dt.Indices), len(entries), "entry count")

	primary := entries[0]
	assert.True(t, primary.Index.Primary, "primary first")
	assert.True(t, primary.Path.Equal(storage.Path{c.ID[:], []byte("person"), []byte("primary")}), "primary path")
	assert.Equal(t, d.ID[:], primary.Key, "primary key")
	assert.True(t, primary.EnforceUnique, "primary unique")

	for _, e := range entries[1:] {
		expected := storage.Path{c.ID[:], []byte("person"), []byte("indices"), []byte(e.Index.Signature())}
		assert.True(t, e.Path.Equal(expected), "%s: path %s", e.Index.Name, e.Path)
		assert.True(t, e.Target.Path.Equal(index.PrimaryPath(c, dt)), "%s: target path", e.Index.Name)
		assert.Equal(t, d.ID[:], e.Target.Key, "%s: target key", e.Index.Name)

		if e.Index.Unique {
			assert.True(t, e.EnforceUnique, "%s: enforce unique", e.Index.Name)
			assert.False(t, bytes.HasSuffix(e.Key, d.ID[:]), "%s: unique key has id", e.Index.Name)
		} else {
			assert.False(t, e.EnforceUnique, "%s: enforce unique", e.Index.Name)
			assert.True(t, bytes.HasSuffix(e.Key, d.ID[:]), "%s: key without id", e.Index.Name)
		}

		key, err := index.Key(e.Index, d)
		assert.Nil(t, err, "%s: key error", e.Index.Name)
		assert.Equal(t, e.Key, key, "%s: key differs from entry", e.Index.Name)
	}
}

func TestAbsentValue(t *testing.T) {
	raw := []byte(`{"$id":"GphPXDubjh675USdyScBcmXrxFadH1mq9u1bsQs1YTgZ","ownerId":"8tt56GTxxgvPXCtcmkjLHLzpEyqCviQLH5jhsbstW5kA","version":1,
"documents":{"user":{"properties":{"nick":{"type":"string"},"email":{"type":"string"}},
"indices":[{"name":"nick","unique":true,"properties":[{"nick":"asc"}]},{"name":"email","unique":true,"properties":[{"email":"desc"}]}]}}}`)
	c, err := contract.Parse(raw)
	if nil != err {
		t.Fatalf("parse error: %s", err)
	}
	dt, _ := c.DocumentType("user")

	without, _ := document.New(value.Identifier{1}, value.Identifier{2}, map[string]value.Value{}, dt)
	with, _ := document.New(value.Identifier{3}, value.Identifier{2}, map[string]value.Value{
		"nick":  value.String(""),
		"email": value.String("a@b"),
	}, dt)

	entries, err := index.BuildEntries(c, dt, without)
	assert.Nil(t, err, "build error")
	nick := entries[1]
	assert.False(t, nick.EnforceUnique, "absent value enforced")
	assert.Equal(t, append([]byte{0x00}, without.ID[:]...), nick.Key, "absent ascending key")
	email := entries[2]
	assert.Equal(t, append([]byte{0xff}, without.ID[:]...), email.Key, "absent descending key")

	present, err := index.BuildEntries(c, dt, with)
	assert.Nil(t, err, "build error")
	assert.True(t, present[1].EnforceUnique, "present value not enforced")
	assert.True(t, bytes.Compare(nick.Key, present[1].Key) < 0, "absent does not sort first")
	assert.True(t, bytes.Compare(email.Key, present[2].Key) > 0, "absent does not sort last when descending")
}

func TestCompoundOrder(t *testing.T) {
	_, dt := family(t)
	idx := indexNamed(dt, "firstNameAge") // +firstName,-age

	ordered := []*document.Document{
		person(t, dt, 1, "Adey", "X", 90),
		person(t, dt, 2, "Adey", "X", 34),
		person(t, dt, 3, "Adey", "X", 0),
		person(t, dt, 4, "Adeya", "X", 99),
		person(t, dt, 5, "Briney", "X", 58),
	}
	previous := []byte(nil)
	for i, d := range ordered {
		key, err := index.Key(idx, d)
		assert.Nil(t, err, "%d: key error", i)
		if nil != previous {
			assert.True(t, bytes.Compare(previous, key) < 0, "%d: out of order", i)
		}
		previous = key
	}

	// a first-property prefix spans exactly the documents with that value
	prefix, err := index.FieldKey(idx, 0, value.String("Adey"))
	assert.Nil(t, err, "field key error")
	for i, d := range ordered {
		key, _ := index.Key(idx, d)
		assert.Equal(t, i < 3, bytes.HasPrefix(key, prefix), "%d: prefix match", i)
	}
}

func TestFieldKeys(t *testing.T) {
	_, dt := family(t)
	idx := indexNamed(dt, "firstNameAge")

	start, end := index.PresentRange(idx, 0)
	key, _ := index.FieldKey(idx, 0, value.String("Zed"))
	assert.True(t, bytes.Compare(start, key) <= 0 && bytes.Compare(key, end) < 0, "ascending present range")

	start, end = index.PresentRange(idx, 1)
	for _, age := range []int64{0, 1, 150, -5} {
		key, _ := index.FieldKey(idx, 1, value.Integer(age))
		assert.True(t, bytes.Compare(start, key) <= 0 && bytes.Compare(key, end) < 0, "descending present range: %d", age)
	}
	absent, _ := index.FieldKey(idx, 1, nil)
	assert.False(t, bytes.Compare(start, absent) <= 0 && bytes.Compare(absent, end) < 0, "absent inside present range")

	start, end = index.PresentRange(dt.Primary, 0)
	assert.Nil(t, start, "primary start")
	assert.Nil(t, end, "primary end")
	id := value.Identifier{4, 5}
	key, err := index.FieldKey(dt.Primary, 0, id)
	assert.Nil(t, err, "primary key error")
	assert.Equal(t, id[:], key, "primary key is the raw id")
	_, err = index.FieldKey(dt.Primary, 0, value.String("x"))
	assert.NotNil(t, err, "primary accepted a string")
}

func TestTimeKey(t *testing.T) {
	k1 := index.TimeKey(15)
	k2 := index.TimeKey(1000)
	assert.True(t, bytes.Compare(k1, k2) < 0, "time order")
	ms, ok := index.TimeFromKey(k2)
	assert.True(t, ok, "decode")
	assert.Equal(t, uint64(1000), ms, "round trip")
	_, ok = index.TimeFromKey([]byte{1})
	assert.False(t, ok, "short key")
}
