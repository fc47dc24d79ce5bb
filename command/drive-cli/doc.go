// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// drive-cli - apply contracts and work with documents in a local drive
//
// every write command runs in its own transaction which is committed
// only if the command succeeds; the database and log locations come
// from a Lua configuration file, see drive.conf.sample
package main
