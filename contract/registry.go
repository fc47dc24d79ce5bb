// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/value"
)

const (
	registryExpiration = 30 * time.Minute
	registryCleanup    = 10 * time.Minute
)

// Registry - parsed contracts keyed by id and version
//
// safe for concurrent use, a contract is never modified after parsing
type Registry struct {
	log   *logger.L
	cache *cache.Cache
}

// NewRegistry - create an empty registry
func NewRegistry(log *logger.L) *Registry {
	return &Registry{
		log:   log,
		cache: cache.New(registryExpiration, registryCleanup),
	}
}

func registryKey(id value.Identifier, version uint64) string {
	return fmt.Sprintf("%s/%d", id, version)
}

// Get - a cached contract
func (r *Registry) Get(id value.Identifier, version uint64) (*DataContract, bool) {
	item, found := r.cache.Get(registryKey(id, version))
	if !found {
		return nil, false
	}
	return item.(*DataContract), true
}

// Add - cache a parsed contract
func (r *Registry) Add(c *DataContract) {
	r.cache.Set(registryKey(c.ID, c.Version), c, cache.DefaultExpiration)
}

// Load - cached contract or parse raw, which must match id and version
//
// a cached entry is only used if it was parsed from the same bytes
func (r *Registry) Load(id value.Identifier, version uint64, raw []byte) (*DataContract, error) {
	if c, ok := r.Get(id, version); ok && bytes.Equal(c.Raw, raw) {
		return c, nil
	}

	r.log.Debugf("parse contract: %s  version: %d", id, version)
	c, err := Parse(raw)
	if nil != err {
		return nil, err
	}
	if c.ID != id || c.Version != version {
		r.log.Errorf("stored contract: %s  version: %d  contains: %s", id, version, c)
		return nil, fault.ErrCorruptEncoding
	}
	r.Add(c)
	return c, nil
}

// Flush - discard every cached contract
func (r *Registry) Flush() {
	r.cache.Flush()
}
