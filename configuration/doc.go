// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - parse a Lua configuration file
//
// the file is a Lua chunk that returns one table; most of base Lua is
// available, so os.getenv can supply items and arg[0] holds the name
// of the file itself
package configuration
