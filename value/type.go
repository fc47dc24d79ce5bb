// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package value

import (
	"regexp"
)

// Type - a declared property type
type Type struct {
	Kind Kind

	// arrays
	Items    *Type
	MinItems *int
	MaxItems *int

	// objects, properties are in declared order
	Properties           []Property
	Required             []string
	AdditionalProperties bool

	// strings and byte arrays
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp

	// integers, numbers and dates
	Minimum *float64
	Maximum *float64
}

// Property - a named member of an object type
type Property struct {
	Name string
	Type *Type
}

// Property - the declared type of a direct member
func (t *Type) Property(name string) *Type {
	if nil == t {
		return nil
	}
	for _, p := range t.Properties {
		if p.Name == name {
			return p.Type
		}
	}
	return nil
}

// IsRequired - true if name is in the required list
func (t *Type) IsRequired(name string) bool {
	for _, r := range t.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Scalar - shorthand for an unconstrained scalar type
func Scalar(k Kind) *Type {
	return &Type{Kind: k}
}
