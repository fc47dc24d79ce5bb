// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/bitmark-inc/drive/fault"
)

// ParseConfigurationFile - run a Lua file and map the table it
// returns onto a configuration structure
//
// fields already set in config are kept unless the table names them
func ParseConfigurationFile(fileName string, config interface{}) error {
	L := lua.NewState()
	defer L.Close()

	L.OpenLibs()

	// arg[0] = config file
	arg := &lua.LTable{}
	arg.Insert(0, lua.LString(fileName))
	L.SetGlobal("arg", arg)

	if err := L.DoFile(fileName); nil != err {
		return fmt.Errorf("%s: %s: %w", fileName, err, fault.ErrInvalidConfiguration)
	}

	table, ok := L.Get(L.GetTop()).(*lua.LTable)
	if !ok {
		return fmt.Errorf("%s: did not return a table: %w", fileName, fault.ErrInvalidConfiguration)
	}

	mapper := gluamapper.NewMapper(gluamapper.Option{
		NameFunc: func(s string) string {
			return s
		},
		TagName: "gluamapper",
	})
	if err := mapper.Map(table, config); nil != err {
		return fmt.Errorf("%s: %s: %w", fileName, err, fault.ErrInvalidConfiguration)
	}
	return nil
}
