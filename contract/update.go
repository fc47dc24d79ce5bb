// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract

import (
	"fmt"

	"github.com/bitmark-inc/drive/fault"
)

func invalidUpdate(format string, arguments ...interface{}) error {
	return fmt.Errorf(format+": %w", append(arguments, fault.ErrInvalidContractUpdate)...)
}

// CheckUpdate - verify that next may replace c
//
// the version must increase by one; document types may be added but
// existing ones keep their definition exactly, stored documents and
// index subtrees depend on it
func (c *DataContract) CheckUpdate(next *DataContract) error {
	if next.ID != c.ID {
		return invalidUpdate("id changed from %s to %s", c.ID, next.ID)
	}
	if next.OwnerID != c.OwnerID {
		return invalidUpdate("owner changed from %s to %s", c.OwnerID, next.OwnerID)
	}
	if next.Version != c.Version+1 {
		return invalidUpdate("version %d does not follow %d", next.Version, c.Version)
	}
	for _, old := range c.Types {
		dt, err := next.DocumentType(old.Name)
		if nil != err {
			return invalidUpdate("document type %q removed", old.Name)
		}
		if dt.raw != old.raw {
			return invalidUpdate("document type %q changed", old.Name)
		}
	}
	return nil
}
