// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/drive/codec"
	"github.com/bitmark-inc/drive/contract"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/index"
	"github.com/bitmark-inc/drive/storage"
	"github.com/bitmark-inc/drive/value"
)

// limits used when the configuration leaves them zero
const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Configuration - query limits
type Configuration struct {
	DefaultLimit int `gluamapper:"default_limit" json:"default_limit"`
	MaxLimit     int `gluamapper:"max_limit" json:"max_limit"`
}

// Planner - turns requests into path queries
type Planner struct {
	configuration Configuration
	log           *logger.L
}

// DriveQuery - a planned query, ready to run against a reader
type DriveQuery struct {
	Contract *contract.DataContract
	Type     *contract.DocumentType
	Index    *contract.Index

	Path    storage.Path
	Ranges  []storage.KeyRange
	Reverse bool
	Limit   int

	// pagination, at most one is set
	StartAt    *value.Identifier
	StartAfter *value.Identifier

	// milliseconds, only for history types
	BlockTime *int64

	log *logger.L
}

// NewPlanner - create a planner, zero limits take the defaults
func NewPlanner(configuration Configuration) *Planner {
	if configuration.MaxLimit <= 0 {
		configuration.MaxLimit = MaxLimit
	}
	if configuration.DefaultLimit <= 0 || configuration.DefaultLimit > configuration.MaxLimit {
		configuration.DefaultLimit = configuration.MaxLimit
	}
	return &Planner{
		configuration: configuration,
		log:           logger.New("query"),
	}
}

// Parse - plan the JSON form of a request
func (p *Planner) Parse(raw []byte, c *contract.DataContract, dt *contract.DocumentType) (*DriveQuery, error) {
	r, err := ParseRequest(raw, dt)
	if nil != err {
		return nil, err
	}
	return p.New(c, dt, r)
}

// New - validate a request, select its index and build the key ranges
func (p *Planner) New(c *contract.DataContract, dt *contract.DocumentType, r *Request) (*DriveQuery, error) {
	if nil != r.StartAt && nil != r.StartAfter {
		return nil, invalid("startAt and startAfter are exclusive")
	}
	if r.Limit < 0 {
		return nil, invalid("negative limit: %d", r.Limit)
	}
	if nil != r.BlockTime {
		if !dt.KeepsHistory {
			return nil, fmt.Errorf("document type %q: %w", dt.Name, fault.ErrHistoricalQueryUnsupported)
		}
		if *r.BlockTime < 0 {
			return nil, invalid("negative blockTime: %d", *r.BlockTime)
		}
	}

	f, err := partition(r.Where, dt)
	if nil != err {
		return nil, err
	}
	idx, reverse, err := f.selectIndex(dt, r.OrderBy)
	if nil != err {
		return nil, err
	}
	ranges, err := f.ranges(idx)
	if nil != err {
		return nil, err
	}

	limit := r.Limit
	if 0 == limit {
		limit = p.configuration.DefaultLimit
	}
	if limit > p.configuration.MaxLimit {
		limit = p.configuration.MaxLimit
	}

	q := &DriveQuery{
		Contract:   c,
		Type:       dt,
		Index:      idx,
		Path:       index.Path(c, dt, idx),
		Ranges:     ranges,
		Reverse:    reverse,
		Limit:      limit,
		StartAt:    r.StartAt,
		StartAfter: r.StartAfter,
		BlockTime:  r.BlockTime,
		log:        p.log,
	}
	p.log.Debugf("type: %s  index: %s  ranges: %d  reverse: %t  limit: %d", dt.Name, idx, len(ranges), reverse, limit)
	return q, nil
}

// a bound of a range clause
type bound struct {
	v         value.Value
	inclusive bool
}

type rangeClause struct {
	property string
	lower    *bound
	upper    *bound
	prefix   *value.String // StartsWith
}

// where clauses sorted by their role in the key
type filter struct {
	equal       map[string]value.Value
	setProperty string
	set         []value.Value
	rng         *rangeClause
}

func (f *filter) uses(property string) bool {
	_, ok := f.equal[property]
	return ok || property == f.setProperty || (nil != f.rng && property == f.rng.property)
}

func partition(where []WhereClause, dt *contract.DocumentType) (*filter, error) {
	f := &filter{
		equal: make(map[string]value.Value),
	}
	for i, w := range where {
		t, ok := dt.PropertyType(w.Property)
		if !ok {
			return nil, invalid("where clause %d: unknown property %q", i, w.Property)
		}
		if !t.Kind.Indexable() {
			return nil, invalid("where clause %d: property %q of kind %s cannot be queried", i, w.Property, t.Kind)
		}

		switch w.Operator {
		case Equal:
			v, err := convert(w.Property, w.Value, t)
			if nil != err {
				return nil, err
			}
			if f.uses(w.Property) {
				return nil, invalid("property %q is filtered more than once", w.Property)
			}
			f.equal[w.Property] = v

		case In:
			values, err := convertSet(w.Property, w.Value, t)
			if nil != err {
				return nil, err
			}
			if f.uses(w.Property) {
				return nil, invalid("property %q is filtered more than once", w.Property)
			}
			if 1 == len(values) {
				f.equal[w.Property] = values[0]
				break
			}
			if "" != f.setProperty {
				return nil, invalid("only one property may use in")
			}
			f.setProperty = w.Property
			f.set = values

		case Less, LessOrEqual, Greater, GreaterOrEqual:
			v, err := convert(w.Property, w.Value, t)
			if nil != err {
				return nil, err
			}
			if err := f.addBound(w.Property, w.Operator, v); nil != err {
				return nil, err
			}

		case StartsWith:
			s, ok := w.Value.(value.String)
			if !ok || value.KindString != t.Kind {
				return nil, invalid("StartsWith needs a string property and value")
			}
			if 0 == len(s) {
				return nil, invalid("StartsWith needs a non empty prefix")
			}
			if f.uses(w.Property) {
				return nil, invalid("StartsWith on %q cannot be combined with another clause", w.Property)
			}
			if nil != f.rng {
				return nil, invalid("only one property may carry a range")
			}
			f.rng = &rangeClause{property: w.Property, prefix: &s}

		default:
			return nil, invalid("where clause %d: unknown operator %q", i, w.Operator)
		}
	}

	if nil != f.rng && nil != f.rng.lower && nil != f.rng.upper {
		n, err := value.Compare(f.rng.lower.v, f.rng.upper.v)
		if nil != err {
			return nil, err
		}
		if n > 0 || (0 == n && !(f.rng.lower.inclusive && f.rng.upper.inclusive)) {
			return nil, invalid("range on %q can match nothing", f.rng.property)
		}
	}
	return f, nil
}

func (f *filter) addBound(property string, op Operator, v value.Value) error {
	if nil == f.rng {
		if f.uses(property) {
			return invalid("property %q is filtered more than once", property)
		}
		f.rng = &rangeClause{property: property}
	} else if property != f.rng.property {
		return invalid("only one property may carry a range")
	} else if nil != f.rng.prefix {
		return invalid("StartsWith on %q cannot be combined with another clause", property)
	}

	b := &bound{
		v:         v,
		inclusive: LessOrEqual == op || GreaterOrEqual == op,
	}
	if Greater == op || GreaterOrEqual == op {
		if nil != f.rng.lower {
			return invalid("two lower bounds on %q", property)
		}
		f.rng.lower = b
	} else {
		if nil != f.rng.upper {
			return invalid("two upper bounds on %q", property)
		}
		f.rng.upper = b
	}
	return nil
}

// bring a value to the declared kind, integers widen to numbers and dates
func convert(property string, v value.Value, t *value.Type) (value.Value, error) {
	if nil == v {
		return nil, invalid("property %q compared with null", property)
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
		return nil, fmt.Errorf("property %q needs %s not %s: %w", property, t.Kind, v.Kind(), fault.ErrTypeMismatch)
	}
	if n, ok := v.(value.Number); ok && (math.IsNaN(float64(n)) || math.IsInf(float64(n), 0)) {
		return nil, invalid("property %q compared with %v", property, n)
	}
	return v, nil
}

func convertSet(property string, v value.Value, t *value.Type) ([]value.Value, error) {
	a, ok := v.(value.Array)
	if !ok {
		return nil, invalid("in on %q needs an array", property)
	}
	if 0 == len(a) || len(a) > MaxInValues {
		return nil, invalid("in on %q needs 1 to %d values", property, MaxInValues)
	}
	values := make([]value.Value, 0, len(a))
	seen := make(map[string]struct{}, len(a))
	for _, item := range a {
		c, err := convert(property, item, t)
		if nil != err {
			return nil, err
		}
		k, err := codec.IndexKeyBytes(c)
		if nil != err {
			return nil, err
		}
		if _, ok := seen[string(k)]; ok {
			return nil, invalid("in on %q repeats a value", property)
		}
		seen[string(k)] = struct{}{}
		values = append(values, c)
	}
	return values, nil
}

// selectIndex - the smallest index serving the filter and the order,
// the earliest one on a tie
func (f *filter) selectIndex(dt *contract.DocumentType, orderBy []OrderClause) (*contract.Index, bool, error) {
	var best *contract.Index
	reverse := false
	whereMatched := false

	for _, idx := range dt.AllIndices() {
		if !f.matchWhere(idx) {
			continue
		}
		whereMatched = true
		r, ok := f.matchOrder(idx, orderBy)
		if !ok {
			continue
		}
		if nil == best || len(idx.Properties) < len(best.Properties) {
			best = idx
			reverse = r
		}
	}

	switch {
	case nil != best:
		return best, reverse, nil
	case whereMatched:
		return nil, false, fault.ErrInvalidOrderBy
	}
	return nil, false, fault.ErrNoIndexFound
}

// equalities fill a prefix, then the in property, then the range property
func (f *filter) matchWhere(idx *contract.Index) bool {
	n := len(f.equal)
	if len(idx.Properties) < n {
		return false
	}
	for _, p := range idx.Properties[:n] {
		if _, ok := f.equal[p.Path]; !ok {
			return false
		}
	}
	position := n
	if "" != f.setProperty {
		if position >= len(idx.Properties) || idx.Properties[position].Path != f.setProperty {
			return false
		}
		position += 1
	}
	if nil != f.rng {
		if position >= len(idx.Properties) || idx.Properties[position].Path != f.rng.property {
			return false
		}
	}
	return true
}

// order terms on equality properties carry no information; the rest
// must follow the index right after the equality prefix, all in the
// index direction or all reversed
func (f *filter) matchOrder(idx *contract.Index, orderBy []OrderClause) (bool, bool) {
	n := len(f.equal)
	remaining := make([]OrderClause, 0, len(orderBy))
	for _, o := range orderBy {
		if _, ok := f.equal[o.Property]; !ok {
			remaining = append(remaining, o)
		}
	}

	if 0 == len(remaining) {
		return n < len(idx.Properties) && idx.Properties[n].Descending, true
	}
	if n+len(remaining) > len(idx.Properties) {
		return false, false
	}

	reverse := false
	for j, o := range remaining {
		p := idx.Properties[n+j]
		if p.Path != o.Property {
			return false, false
		}
		flipped := p.Descending != o.Descending
		if 0 == j {
			reverse = flipped
		} else if flipped != reverse {
			return false, false
		}
	}
	return reverse, true
}

// ranges - ascending disjoint key ranges inside the index subtree
func (f *filter) ranges(idx *contract.Index) ([]storage.KeyRange, error) {
	prefix := []byte{}
	n := len(f.equal)
	for i := 0; i < n; i += 1 {
		k, err := index.FieldKey(idx, i, f.equal[idx.Properties[i].Path])
		if nil != err {
			return nil, err
		}
		prefix = append(prefix, k...)
	}

	if "" == f.setProperty {
		r, ok, err := f.rangeAt(idx, n, prefix)
		if nil != err || !ok {
			return nil, err
		}
		return []storage.KeyRange{r}, nil
	}

	prefixes := make([][]byte, 0, len(f.set))
	for _, v := range f.set {
		k, err := index.FieldKey(idx, n, v)
		if nil != err {
			return nil, err
		}
		prefixes = append(prefixes, append(append([]byte{}, prefix...), k...))
	}
	sort.Slice(prefixes, func(i, j int) bool { return bytes.Compare(prefixes[i], prefixes[j]) < 0 })

	ranges := make([]storage.KeyRange, 0, len(prefixes))
	for _, p := range prefixes {
		r, ok, err := f.rangeAt(idx, n+1, p)
		if nil != err {
			return nil, err
		}
		if ok {
			ranges = append(ranges, r)
		}
	}
	return ranges, nil
}

// the keys below prefix that satisfy the range clause at position;
// false if none can
func (f *filter) rangeAt(idx *contract.Index, position int, prefix []byte) (storage.KeyRange, bool, error) {
	if nil == f.rng {
		if 0 == len(prefix) {
			return storage.KeyRange{}, true, nil
		}
		return storage.KeyRange{Start: prefix, End: codec.PrefixEnd(prefix)}, true, nil
	}

	descending := idx.Properties[position].Descending
	if nil != f.rng.prefix {
		k := append(append([]byte{}, prefix...), codec.FieldPrefix(*f.rng.prefix, descending)...)
		return storage.KeyRange{Start: k, End: codec.PrefixEnd(k)}, true, nil
	}

	// only present values can satisfy a comparison
	ps, pe := index.PresentRange(idx, position)
	r := storage.KeyRange{
		Start: join(prefix, ps),
		End:   codec.PrefixEnd(prefix),
	}
	if nil != pe {
		r.End = join(prefix, pe)
	}
	if 0 == len(r.Start) {
		r.Start = nil
	}

	// key order runs against value order on a descending property
	low, high := f.rng.lower, f.rng.upper
	if descending {
		low, high = high, low
	}
	if nil != low {
		k, err := f.boundKey(idx, position, prefix, low.v)
		if nil != err {
			return r, false, err
		}
		if !low.inclusive {
			k = codec.PrefixEnd(k)
			if nil == k {
				return r, false, nil
			}
		}
		r.Start = k
	}
	if nil != high {
		k, err := f.boundKey(idx, position, prefix, high.v)
		if nil != err {
			return r, false, err
		}
		if high.inclusive {
			k = codec.PrefixEnd(k)
		}
		r.End = k
	}
	return r, !r.Empty(), nil
}

func (f *filter) boundKey(idx *contract.Index, position int, prefix []byte, v value.Value) ([]byte, error) {
	k, err := index.FieldKey(idx, position, v)
	if nil != err {
		return nil, err
	}
	return join(prefix, k), nil
}

func join(a []byte, b []byte) []byte {
	return append(append(make([]byte, 0, len(a)+len(b)), a...), b...)
}
