// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/document"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// Operator - comparison in a where clause
type Operator string

// the accepted operators
const (
	Equal          Operator = "=="
	Less           Operator = "<"
	LessOrEqual    Operator = "<="
	Greater        Operator = ">"
	GreaterOrEqual Operator = ">="
	In             Operator = "in"
	StartsWith     Operator = "StartsWith"
)

// MaxInValues - most values one in clause may list
const MaxInValues = 100

// WhereClause - one filter term
//
// the value of an in clause is a value.Array
type WhereClause struct {
	Property string
	Operator Operator
	Value    value.Value
}

// OrderClause - one sort term
type OrderClause struct {
	Property   string
	Descending bool
}

// Request - a query before planning
//
// a zero Limit selects the configured default
type Request struct {
	Where      []WhereClause
	OrderBy    []OrderClause
	Limit      int
	StartAt    *value.Identifier
	StartAfter *value.Identifier
	BlockTime  *int64
}

func (op Operator) valid() bool {
	switch op {
	case Equal, Less, LessOrEqual, Greater, GreaterOrEqual, In, StartsWith:
		return true
	}
	return false
}

func invalid(format string, arguments ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, arguments...), fault.ErrInvalidQueryStructure)
}

// ParseRequest - decode the JSON form of a request
//
//   {"where": [["firstName", ">", "Chris"]], "orderBy": [["firstName", "asc"]],
//    "limit": 5, "startAfter": "<base58 id>", "blockTime": 1600000000000}
//
// where values are converted to the declared property type
func ParseRequest(raw []byte, dt *contract.DocumentType) (*Request, error) {
	if !gjson.ValidBytes(raw) {
		return nil, invalid("query is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, invalid("query must be an object")
	}

	r := &Request{}
	var err error
	root.ForEach(func(k gjson.Result, v gjson.Result) bool {
		switch k.String() {
		case "where":
			r.Where, err = parseWhere(v, dt)
		case "orderBy":
			r.OrderBy, err = parseOrderBy(v)
		case "limit":
			var n int64
			n, err = jsonInteger("limit", v)
			r.Limit = int(n)
		case "startAt":
			r.StartAt, err = jsonIdentifier("startAt", v)
		case "startAfter":
			r.StartAfter, err = jsonIdentifier("startAfter", v)
		case "blockTime":
			var n int64
			n, err = jsonInteger("blockTime", v)
			r.BlockTime = &n
		default:
			err = invalid("unknown query member %q", k.String())
		}
		return nil == err
	})
	if nil != err {
		return nil, err
	}
	return r, nil
}

func jsonInteger(name string, r gjson.Result) (int64, error) {
	if gjson.Number != r.Type || r.Num != math.Trunc(r.Num) || math.Abs(r.Num) >= 1<<53 {
		return 0, invalid("%s must be an integer", name)
	}
	return r.Int(), nil
}

func jsonIdentifier(name string, r gjson.Result) (*value.Identifier, error) {
	if gjson.String != r.Type {
		return nil, invalid("%s must be an identifier string", name)
	}
	id, err := value.ParseIdentifier(r.String())
	if nil != err {
		return nil, invalid("%s: %s", name, err)
	}
	return &id, nil
}

func parseWhere(r gjson.Result, dt *contract.DocumentType) ([]WhereClause, error) {
	if !r.IsArray() {
		return nil, invalid("where must be an array")
	}
	clauses := []WhereClause{}
	for i, item := range r.Array() {
		terms := item.Array()
		if !item.IsArray() || 3 != len(terms) || gjson.String != terms[0].Type || gjson.String != terms[1].Type {
			return nil, invalid("where clause %d must be [property, operator, value]", i)
		}
		w := WhereClause{
			Property: terms[0].String(),
			Operator: Operator(terms[1].String()),
		}
		if !w.Operator.valid() {
			return nil, invalid("where clause %d: unknown operator %q", i, w.Operator)
		}
		t, ok := dt.PropertyType(w.Property)
		if !ok {
			return nil, invalid("where clause %d: unknown property %q", i, w.Property)
		}

		var err error
		if In == w.Operator {
			if !terms[2].IsArray() {
				return nil, invalid("where clause %d: in needs an array", i)
			}
			w.Value, err = document.ValueFromJSON(w.Property, terms[2], &value.Type{Kind: value.KindArray, Items: t})
		} else {
			w.Value, err = document.ValueFromJSON(w.Property, terms[2], t)
		}
		if nil != err {
			return nil, invalid("where clause %d: %s", i, err)
		}
		clauses = append(clauses, w)
	}
	return clauses, nil
}

func parseOrderBy(r gjson.Result) ([]OrderClause, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("orderBy must be an array: %w", fault.ErrInvalidOrderBy)
	}
	clauses := []OrderClause{}
	for i, item := range r.Array() {
		terms := item.Array()
		if !item.IsArray() || 2 != len(terms) || gjson.String != terms[0].Type {
			return nil, fmt.Errorf("orderBy entry %d must be [property, direction]: %w", i, fault.ErrInvalidOrderBy)
		}
		o := OrderClause{Property: terms[0].String()}
		switch terms[1].String() {
		case "asc":
		case "desc":
			o.Descending = true
		default:
			return nil, fmt.Errorf("orderBy entry %d: direction %q: %w", i, terms[1].String(), fault.ErrInvalidOrderBy)
		}
		clauses = append(clauses, o)
	}
	return clauses, nil
}
