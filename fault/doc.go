// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Provides a single instance of errors to allow easy comparison
// without having to resort to partial string matches.  Errors that
// carry data (schema violations, unique index violations, pagination
// anchors and database failures) are structs that unwrap to a class
// instance so both errors.Is and the IsErrXXX helpers work on them.
package fault
