// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/drive/drive"
	"github.com/bitmark-inc/drive/fault"
	"github.com/bitmark-inc/drive/query"
	"github.com/bitmark-inc/drive/storage"
)

// basic defaults (directories and files are relative to the DataDirectory)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultDatabaseDirectory = "data"
	defaultDatabaseName      = "drive"

	defaultLogDirectory = "log"
	defaultLogFile      = "drive.log"
	defaultLogCount     = 10          // number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size
)

// Configuration - everything a drive process needs
type Configuration struct {
	DataDirectory string                `gluamapper:"data_directory" json:"data_directory"`
	Database      storage.Configuration `gluamapper:"database" json:"database"`
	Drive         drive.Configuration   `gluamapper:"drive" json:"drive"`
	Logging       logger.Configuration  `gluamapper:"logging" json:"logging"`
}

func invalid(format string, arguments ...interface{}) error {
	return fmt.Errorf(format+": %w", append(arguments, fault.ErrInvalidConfiguration)...)
}

// Get - read, default and verify a configuration file
//
// relative paths are taken from the data directory and the database
// and log directories are created
func Get(fileName string) (*Configuration, error) {
	fileName, err := filepath.Abs(filepath.Clean(fileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(fileName)

	options := &Configuration{
		DataDirectory: defaultDataDirectory,

		Database: storage.Configuration{
			Backend:   storage.LevelDBBackend,
			Directory: defaultDatabaseDirectory,
			Name:      defaultDatabaseName,
		},

		Drive: drive.Configuration{
			Query: query.Configuration{
				DefaultLimit: query.DefaultLimit,
				MaxLimit:     query.MaxLimit,
			},
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels: map[string]string{
				logger.DefaultTag: "critical",
			},
		},
	}

	if err := ParseConfigurationFile(fileName, options); nil != err {
		return nil, err
	}

	switch options.Database.Backend {
	case storage.LevelDBBackend, storage.BadgerBackend:
	default:
		return nil, invalid("database backend: %q", options.Database.Backend)
	}

	q := options.Drive.Query
	if q.DefaultLimit <= 0 || q.MaxLimit <= 0 || q.DefaultLimit > q.MaxLimit {
		return nil, invalid("query limits: default: %d  max: %d", q.DefaultLimit, q.MaxLimit)
	}

	// ensure absolute data directory
	switch options.DataDirectory {
	case "", "~":
		return nil, invalid("path: %q is not a valid directory", options.DataDirectory)
	case ".":
		options.DataDirectory = dataDirectory // same directory as the configuration file
	}
	options.DataDirectory = filepath.Clean(options.DataDirectory)

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, invalid("path: %q is not a directory", options.DataDirectory)
	}

	// file items must be plain names, their directory gives the location
	for _, name := range []string{options.Database.Name, options.Logging.File} {
		switch filepath.Dir(name) {
		case "", ".":
		default:
			return nil, invalid("file: %q is not plain name", name)
		}
	}
	if "" == options.Database.Name || "" == options.Logging.File {
		return nil, invalid("database name and log file must be set")
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.Database.Directory,
		&options.Logging.Directory,
	} {
		*d = ensureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	return options, nil
}

func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
