// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/query"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

type fixture struct {
	c       *contract.DataContract
	dt      *contract.DocumentType
	people  []*document.Document
	tx      *storage.Transaction
	planner *query.Planner
}

func setup(t *testing.T) *fixture {
	c, dt := family(t)
	f := &fixture{
		c:       c,
		dt:      dt,
		people:  people(t, dt),
		tx:      begin(t),
		planner: query.NewPlanner(query.Configuration{}),
	}
	prepare(t, f.tx, c, dt)
	store(t, f.tx, c, dt, 1000, f.people...)
	return f
}

func (f *fixture) run(t *testing.T, raw string) ([]*document.Document, error) {
	q, err := f.planner.Parse([]byte(raw), f.c, f.dt)
	if nil != err {
		return nil, err
	}
	return q.Execute(f.tx)
}

func (f *fixture) names(t *testing.T, raw string) []string {
	docs, err := f.run(t, raw)
	if nil != err {
		t.Fatalf("query %s error: %s", raw, err)
	}
	return firstNames(docs)
}

func TestRangeQuery(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	kevina := named(t, f.people, "Kevina")
	rng := `["firstName", ">", "Chris"], ["firstName", "<=", "Noellyn"]`

	items := []struct {
		raw      string
		expected []string
	}{
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "asc"]]}`,
			[]string{"Dalia", "Gilligan", "Kevina", "Meta", "Noellyn"},
		},
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "asc"]], "startAfter": "` + kevina.ID.String() + `"}`,
			[]string{"Meta", "Noellyn"},
		},
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "asc"]], "startAt": "` + kevina.ID.String() + `"}`,
			[]string{"Kevina", "Meta", "Noellyn"},
		},
		{
			`{"where": [` + rng + `], "limit": 2}`,
			[]string{"Dalia", "Gilligan"},
		},
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "desc"]]}`,
			[]string{"Noellyn", "Meta", "Kevina", "Gilligan", "Dalia"},
		},
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "desc"]], "startAfter": "` + kevina.ID.String() + `"}`,
			[]string{"Gilligan", "Dalia"},
		},
		{
			`{"where": [` + rng + `], "orderBy": [["firstName", "desc"]], "startAt": "` + kevina.ID.String() + `", "limit": 2}`,
			[]string{"Kevina", "Gilligan"},
		},
		{
			`{"where": [["firstName", "<", "Cammi"]]}`,
			[]string{"Adey", "Briney"},
		},
		{
			`{"where": [["firstName", ">=", "Meta"]]}`,
			[]string{"Meta", "Noellyn", "Prissie"},
		},
		{
			`{"where": [["firstName", "StartsWith", "C"]]}`,
			[]string{"Cammi", "Celinda"},
		},
		{
			`{"where": [["firstName", "StartsWith", "Ce"]], "orderBy": [["firstName", "desc"]]}`,
			[]string{"Celinda"},
		},
		{
			`{"where": [["firstName", "==", "Zed"]]}`,
			[]string{},
		},
		{
			`{"where": [["firstName", "==", "Kevina"], ["lastName", "==", "Randolf"]]}`,
			[]string{"Kevina"},
		},
	}
	for i, item := range items {
		assert.Equal(t, item.expected, f.names(t, item.raw), "%d: %s", i, item.raw)
	}

	// equal values follow id order in a non unique index
	randolfs := byID([]*document.Document{named(t, f.people, "Adey"), kevina})
	assert.Equal(t, firstNames(randolfs), f.names(t, `{"where": [["lastName", "==", "Randolf"]]}`), "same last name")
}

func TestInQuery(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	items := []struct {
		raw      string
		expected []string
	}{
		{
			`{"where": [["firstName", "in", ["Meta", "Adey", "Cammi"]]]}`,
			[]string{"Adey", "Cammi", "Meta"},
		},
		{
			`{"where": [["firstName", "in", ["Meta", "Adey", "Cammi"]]], "orderBy": [["firstName", "desc"]]}`,
			[]string{"Meta", "Cammi", "Adey"},
		},
		{
			`{"where": [["firstName", "in", ["Meta", "Adey"]], ["age", "<", 50]]}`,
			[]string{"Adey"},
		},
		{
			`{"where": [["firstName", "in", ["Meta", "Adey"]], ["age", "<", 100]]}`,
			[]string{"Adey", "Meta"},
		},
		{
			`{"where": [["firstName", "in", ["Dalia", "Meta", "Adey"]], ["age", ">=", 69]]}`,
			[]string{"Dalia", "Meta"},
		},
		{
			`{"where": [["firstName", "in", ["Dalia", "Meta", "Adey"]], ["age", ">=", 69]], "orderBy": [["firstName", "desc"], ["age", "asc"]]}`,
			[]string{"Meta", "Dalia"},
		},
		{
			`{"where": [["firstName", "in", ["Nobody", "Meta"]]]}`,
			[]string{"Meta"},
		},
	}
	for i, item := range items {
		assert.Equal(t, item.expected, f.names(t, item.raw), "%d: %s", i, item.raw)
	}
}

func TestSystemPropertyQuery(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	adey := named(t, f.people, "Adey")
	briney := named(t, f.people, "Briney")

	assert.Equal(t, []string{"Briney"}, f.names(t, `{"where": [["$id", "==", "`+briney.ID.String()+`"]]}`), "by id")

	expected := firstNames(byID([]*document.Document{adey, briney}))
	assert.Equal(t, expected, f.names(t, `{"where": [["$id", "in", ["`+briney.ID.String()+`", "`+adey.ID.String()+`"]]]}`), "id set")

	owned := []*document.Document{}
	for _, d := range f.people {
		if d.OwnerID == adey.OwnerID {
			owned = append(owned, d)
		}
	}
	assert.Equal(t, firstNames(byID(owned)), f.names(t, `{"where": [["$ownerId", "==", "`+adey.OwnerID.String()+`"]]}`), "by owner")
}

func TestPagination(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	all := byID(f.people)
	assert.Equal(t, firstNames(all), f.names(t, `{}`), "every document in id order")

	// walk the whole set three at a time
	seen := []*document.Document{}
	raw := `{"limit": 3}`
	for i := 0; i < 5; i += 1 {
		page, err := f.run(t, raw)
		assert.Nil(t, err, "page %d error", i)
		if 0 == len(page) {
			break
		}
		seen = append(seen, page...)
		raw = fmt.Sprintf(`{"limit": 3, "startAfter": "%s"}`, page[len(page)-1].ID)
	}
	assert.Equal(t, firstNames(all), firstNames(seen), "pages")

	for k := 0; k < len(all); k += 1 {
		docs, err := f.run(t, fmt.Sprintf(`{"limit": 2, "startAt": "%s"}`, all[k].ID))
		assert.Nil(t, err, "startAt %d error", k)
		end := k + 2
		if end > len(all) {
			end = len(all)
		}
		assert.Equal(t, firstNames(all[k:end]), firstNames(docs), "startAt %d", k)
	}

	_, err := f.run(t, `{"startAt": "`+value.Identifier{9, 9, 9}.String()+`"}`)
	var start *fault.StartDocumentNotFound
	assert.True(t, errors.As(err, &start), "missing start document: %v", err)
	assert.Equal(t, "startAt document not found", start.Message, "message")

	_, err = f.run(t, `{"startAfter": "`+value.Identifier{9, 9, 9}.String()+`"}`)
	assert.ErrorIs(t, err, fault.ErrStartDocumentNotFound, "missing startAfter document")
	assert.Equal(t, "startAfter document not found", err.Error(), "message")
}

func TestProof(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	raw := `{"where": [["firstName", ">", "Chris"], ["firstName", "<=", "Noellyn"]], "limit": 3, "startAfter": "` + named(t, f.people, "Dalia").ID.String() + `"}`
	q, err := f.planner.Parse([]byte(raw), f.c, f.dt)
	assert.Nil(t, err, "parse error")

	docs, proof, err := q.ExecuteWithProof(f.tx)
	assert.Nil(t, err, "execute error")
	assert.Equal(t, []string{"Gilligan", "Kevina", "Meta"}, firstNames(docs), "result")

	expected, _ := f.tx.RootHash()
	root, verified, err := q.Verify(proof)
	assert.Nil(t, err, "verify error")
	assert.Equal(t, expected, root, "proved root")
	assert.Equal(t, firstNames(docs), firstNames(verified), "proved documents")

	// through the wire form
	b, err := proof.MarshalBinary()
	assert.Nil(t, err, "marshal error")
	decoded := &storage.Proof{}
	assert.Nil(t, decoded.UnmarshalBinary(b), "unmarshal error")
	root, verified, err = q.Verify(decoded)
	assert.Nil(t, err, "decoded verify error")
	assert.Equal(t, expected, root, "decoded root")
	assert.Equal(t, firstNames(docs), firstNames(verified), "decoded documents")

	// a different plan needs layers the proof does not hold
	other, _ := f.planner.Parse([]byte(`{"where": [["lastName", "==", "Randolf"]]}`), f.c, f.dt)
	_, _, err = other.Verify(proof)
	assert.ErrorIs(t, err, fault.ErrIncompleteProof, "other query")

	// tampering with a revealed item breaks the layer hash
	tampered := false
	for i := range decoded.Layers {
		for j := range decoded.Layers[i].Leaves {
			leaf := &decoded.Layers[i].Leaves[j]
			if !tampered && nil != leaf.Element && storage.ItemKind == leaf.Kind {
				leaf.Element = &storage.Element{Kind: storage.ItemKind, Value: append([]byte{}, leaf.Element.Value...)}
				leaf.Element.Value[len(leaf.Element.Value)-1] ^= 0x01
				tampered = true
			}
		}
	}
	assert.True(t, tampered, "no revealed item")
	_, _, err = q.Verify(decoded)
	assert.ErrorIs(t, err, fault.ErrInvalidProof, "tampered proof")
}

func TestHistoricalQuery(t *testing.T) {
	f := setup(t)
	defer f.tx.Rollback()

	adey := named(t, f.people, "Adey")
	briney := named(t, f.people, "Briney")

	older, err := document.New(adey.ID, adey.OwnerID, map[string]value.Value{
		"firstName":  value.String("Adey"),
		"middleName": value.String("Jo"),
		"lastName":   value.String("Randolf"),
		"age":        value.Integer(35),
	}, f.dt)
	assert.Nil(t, err, "new revision error")
	created, updated := int64(1000), int64(2000)
	older.Revision = 2
	older.CreatedAt = &created
	older.UpdatedAt = &updated
	b, _ := older.ToCanonicalBytes(f.dt)
	insert(t, f.tx, index.RevisionsPath(f.c, f.dt, adey.ID), index.TimeKey(2000), storage.NewItem(b))
	insert(t, f.tx, index.RevisionsPath(f.c, f.dt, briney.ID), index.TimeKey(3000), storage.NewItem([]byte{}))

	at := func(blockTime int64, where string) []*document.Document {
		docs, err := f.run(t, fmt.Sprintf(`{"where": [%s], "blockTime": %d}`, where, blockTime))
		if nil != err {
			t.Fatalf("blockTime %d error: %s", blockTime, err)
		}
		return docs
	}
	age := func(d *document.Document) value.Value {
		v, _ := d.Properties.Get("age")
		return v
	}

	assert.Equal(t, 0, len(at(500, "")), "before any insert")
	assert.Equal(t, 10, len(at(1500, "")), "after insert")
	assert.Equal(t, 9, len(at(3000, "")), "after delete")
	assert.Equal(t, firstNames(byID(f.people)), firstNames(at(2999, "")), "id order")

	docs := at(1500, `["firstName", "==", "Adey"]`)
	assert.Equal(t, 1, len(docs), "revision 1 count")
	assert.Equal(t, value.Integer(34), age(docs[0]), "revision 1")
	assert.Equal(t, uint64(1), docs[0].Revision, "revision 1 number")

	docs = at(2000, `["firstName", "==", "Adey"]`)
	assert.Equal(t, value.Integer(35), age(docs[0]), "revision 2")
	assert.Equal(t, uint64(2), docs[0].Revision, "revision 2 number")

	assert.Equal(t, 0, len(at(1999, `["firstName", "==", "Adey"], ["age", ">", 34]`)), "age at 1999")
	assert.Equal(t, 1, len(at(2000, `["firstName", "==", "Adey"], ["age", ">", 34]`)), "age at 2000")

	assert.Equal(t, []string{"Briney", "Cammi"}, firstNames(at(2500, `["firstName", "<", "Celinda"], ["firstName", ">", "Adey"]`)), "range")
	assert.Equal(t, []string{"Cammi"}, firstNames(at(3500, `["firstName", "<", "Celinda"], ["firstName", ">", "Adey"]`)), "range after delete")

	_, err = f.run(t, `{"blockTime": 3500, "startAt": "`+briney.ID.String()+`"}`)
	assert.ErrorIs(t, err, fault.ErrStartDocumentNotFound, "deleted start document")

	docs, err = f.run(t, `{"blockTime": 3500, "orderBy": [["firstName", "desc"]], "startAfter": "`+named(t, f.people, "Cammi").ID.String()+`"}`)
	assert.Nil(t, err, "paged history error")
	assert.Equal(t, []string{"Adey"}, firstNames(docs), "paged history")

	q, _ := f.planner.Parse([]byte(`{"where": [["firstName", "==", "Adey"]], "blockTime": 2500}`), f.c, f.dt)
	docs, proof, err := q.ExecuteWithProof(f.tx)
	assert.Nil(t, err, "proof error")
	expected, _ := f.tx.RootHash()
	root, verified, err := q.Verify(proof)
	assert.Nil(t, err, "verify error")
	assert.Equal(t, expected, root, "proved root")
	assert.Equal(t, 1, len(verified), "proved count")
	assert.Equal(t, age(docs[0]), age(verified[0]), "proved revision")

	d, err := query.At(f.tx, f.c, f.dt, adey.ID, 1999)
	assert.Nil(t, err, "at error")
	assert.Equal(t, value.Integer(34), age(d), "at 1999")
	d, err = query.At(f.tx, f.c, f.dt, value.Identifier{7}, 1999)
	assert.Nil(t, err, "unknown id error")
	assert.Nil(t, d, "unknown id")
}
