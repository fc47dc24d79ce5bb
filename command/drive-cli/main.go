// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/drive/configuration"
	"github.com/bitmark-inc/drive/drive"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/storage"
)

type metadata struct {
	config  *configuration.Configuration
	store   *storage.Store
	drive   *drive.Drive
	log     *logger.L
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {

	app := cli.NewApp()
	app.Name = "drive-cli"
	app.Usage = "contract driven document storage"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	contractFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "contract, c",
			Value: "",
			Usage: "*contract `ID`",
		},
		cli.StringFlag{
			Name:  "type, t",
			Value: "",
			Usage: "*document `TYPE`",
		},
	}
	blockFlags := []cli.Flag{
		cli.Uint64Flag{
			Name:  "height",
			Value: 0,
			Usage: " block `HEIGHT`",
		},
		cli.Uint64Flag{
			Name:  "time",
			Value: 0,
			Usage: " block time `MILLISECONDS` (default: now)",
		},
	}

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "config-file, f",
			Value: "drive.conf",
			Usage: " configuration `FILE`",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "apply-contract",
			Usage:     "store a new data contract",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "json, j",
					Value: "",
					Usage: "*contract JSON `FILE`",
				},
			},
			Action: runApplyContract,
		},
		{
			Name:      "update-contract",
			Usage:     "replace a data contract with its next version",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "json, j",
					Value: "",
					Usage: "*contract JSON `FILE`",
				},
			},
			Action: runUpdateContract,
		},
		{
			Name:      "contract",
			Usage:     "display a stored data contract",
			ArgsUsage: "\n   (* = required)",
			Flags:     contractFlags[:1],
			Action:    runContract,
		},
		{
			Name:      "insert",
			Usage:     "insert a document",
			ArgsUsage: "\n   (* = required)",
			Flags: append(append([]cli.Flag{
				cli.StringFlag{
					Name:  "json, j",
					Value: "",
					Usage: "*document JSON `FILE`",
				},
			}, contractFlags...), blockFlags...),
			Action: runInsert,
		},
		{
			Name:      "update",
			Usage:     "replace a document with its next revision",
			ArgsUsage: "\n   (* = required)",
			Flags: append(append([]cli.Flag{
				cli.StringFlag{
					Name:  "json, j",
					Value: "",
					Usage: "*document JSON `FILE`",
				},
			}, contractFlags...), blockFlags...),
			Action: runUpdate,
		},
		{
			Name:      "delete",
			Usage:     "delete a document",
			ArgsUsage: "\n   (* = required)",
			Flags: append(append([]cli.Flag{
				cli.StringFlag{
					Name:  "id, i",
					Value: "",
					Usage: "*document `ID`",
				},
			}, contractFlags...), blockFlags...),
			Action: runDelete,
		},
		{
			Name:      "fetch",
			Usage:     "display a document",
			ArgsUsage: "\n   (* = required)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "id, i",
					Value: "",
					Usage: "*document `ID`",
				},
				cli.Int64Flag{
					Name:  "at, a",
					Value: -1,
					Usage: " revision current at block time `MILLISECONDS`",
				},
			}, contractFlags...),
			Action: runFetch,
		},
		{
			Name:      "query",
			Usage:     "run a document query",
			ArgsUsage: "\n   (* = required)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "query, q",
					Value: "{}",
					Usage: " query `JSON`",
				},
				cli.StringFlag{
					Name:  "prove, p",
					Value: "",
					Usage: " write a proof of the result to `FILE`",
				},
			}, contractFlags...),
			Action: runQuery,
		},
		{
			Name:      "verify",
			Usage:     "check a query result against a proof",
			ArgsUsage: "\n   (* = required)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "query, q",
					Value: "{}",
					Usage: " query `JSON`",
				},
				cli.StringFlag{
					Name:  "proof, p",
					Value: "",
					Usage: "*proof `FILE`",
				},
			}, contractFlags...),
			Action: runVerify,
		},
		{
			Name:   "root-hash",
			Usage:  "display the root hash of the committed tree",
			Action: runRootHash,
		},
		{
			Name:  "version",
			Usage: "display drive-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the configuration and open the database
	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		w := c.App.Writer
		verbose := c.GlobalBool("verbose")

		// to suppress reading config file if certain commands
		command := c.Args().Get(0)
		if "version" == command || "" == command || "help" == command {
			return nil
		}

		file := c.GlobalString("config-file")
		if verbose {
			fmt.Fprintf(e, "reading config file: %s\n", file)
		}
		config, err := configuration.Get(file)
		if nil != err {
			return err
		}

		if err := logger.Initialise(config.Logging); nil != err {
			return err
		}
		if err := fault.Initialise(); nil != err {
			logger.Finalise()
			return err
		}
		log := logger.New("main")
		log.Infof("version: %s  command: %s", version, command)

		store, err := storage.Open(config.Database)
		if nil != err {
			log.Criticalf("open database error: %s", err)
			fault.Finalise()
			logger.Finalise()
			return err
		}

		c.App.Metadata["config"] = &metadata{
			config:  config,
			store:   store,
			drive:   drive.New(store, config.Drive),
			log:     log,
			verbose: verbose,
			e:       e,
			w:       w,
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		m, ok := c.App.Metadata["config"].(*metadata)
		if !ok {
			return nil
		}
		err := m.store.Close()
		m.log.Info("finished")
		fault.Finalise()
		logger.Finalise()
		return err
	}

	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}
