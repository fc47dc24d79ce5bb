// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"fmt"
	"strings"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

// system properties present on every document
const (
	IDProperty        = "$id"
	OwnerIDProperty   = "$ownerId"
	CreatedAtProperty = "$createdAt"
	UpdatedAtProperty = "$updatedAt"
)

// MaxIndices - declared indices allowed on one document type
const MaxIndices = 10

// PrimaryIndexName - name of the implicit $id index
const PrimaryIndexName = "$id"

// DataContract - a parsed contract
type DataContract struct {
	ID      value.Identifier
	OwnerID value.Identifier
	Version uint64
	Types   []*DocumentType // declared order
	Raw     []byte          // compacted source JSON
}

// DocumentType - one document type of a contract
type DocumentType struct {
	Name              string
	Schema            *value.Type
	Indices           []*Index // declared order, without the primary
	Primary           *Index
	KeepsHistory      bool
	Mutable           bool
	RequiresCreatedAt bool
	RequiresUpdatedAt bool

	raw string // compacted definition, compared by contract updates
}

// IndexProperty - one member of an index
type IndexProperty struct {
	Path       string
	Descending bool
}

// Index - an ordered list of properties
type Index struct {
	Name       string
	Properties []IndexProperty
	Unique     bool
	Primary    bool
}

var systemTypes = map[string]*value.Type{
	IDProperty:        value.Scalar(value.KindIdentifier),
	OwnerIDProperty:   value.Scalar(value.KindIdentifier),
	CreatedAtProperty: value.Scalar(value.KindDate),
	UpdatedAtProperty: value.Scalar(value.KindDate),
}

// ValidPropertyName - letters, digits, '-' and '_' starting with a letter
func ValidPropertyName(name string) bool {
	return propertyNamePattern.MatchString(name)
}

// IsSystemProperty - true for $id, $ownerId, $createdAt and $updatedAt
func IsSystemProperty(name string) bool {
	_, ok := systemTypes[name]
	return ok
}

func newPrimaryIndex() *Index {
	return &Index{
		Name:       PrimaryIndexName,
		Properties: []IndexProperty{{Path: IDProperty}},
		Unique:     true,
		Primary:    true,
	}
}

// DocumentType - find a document type by name
func (c *DataContract) DocumentType(name string) (*DocumentType, error) {
	for _, dt := range c.Types {
		if dt.Name == name {
			return dt, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, fault.ErrUnknownDocumentType)
}

// String - for the fmt package
func (c *DataContract) String() string {
	return fmt.Sprintf("%s v%d", c.ID, c.Version)
}

// AllIndices - the primary index followed by the declared indices
func (dt *DocumentType) AllIndices() []*Index {
	all := make([]*Index, 0, len(dt.Indices)+1)
	all = append(all, dt.Primary)
	return append(all, dt.Indices...)
}

// PropertyType - the declared type of a dotted property path
func (dt *DocumentType) PropertyType(path string) (*value.Type, bool) {
	if t, ok := systemTypes[path]; ok {
		return t, true
	}
	t := dt.Schema
	for _, name := range strings.Split(path, ".") {
		if nil == t || value.KindObject != t.Kind {
			return nil, false
		}
		t = t.Property(name)
	}
	return t, nil != t
}

// Signature - the properties and directions of an index
//
// this names the index subtree, e.g. "+firstName,-age"
func (i *Index) Signature() string {
	s := make([]string, len(i.Properties))
	for n, p := range i.Properties {
		if p.Descending {
			s[n] = "-" + p.Path
		} else {
			s[n] = "+" + p.Path
		}
	}
	return strings.Join(s, ",")
}

// Position - index of path within the index properties, -1 if absent
func (i *Index) Position(path string) int {
	for n, p := range i.Properties {
		if p.Path == path {
			return n
		}
	}
	return -1
}

// String - for the fmt package
func (i *Index) String() string {
	return i.Name + "(" + i.Signature() + ")"
}

// paths only, directions ignored
func (i *Index) pathSequence() string {
	s := make([]string, len(i.Properties))
	for n, p := range i.Properties {
		s[n] = p.Path
	}
	return strings.Join(s, ",")
}
