// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
	"fmt"
)

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised         = ProcessError("already initialised")
	ErrContractAlreadyExists      = ExistsError("contract already exists")
	ErrContractNotFound           = NotFoundError("contract not found")
	ErrCorruptEncoding            = InvalidError("corrupt encoding")
	ErrDocumentAlreadyExists      = ExistsError("document already exists")
	ErrDocumentDeleted            = ExistsError("document id was deleted")
	ErrDocumentNotFound           = NotFoundError("document not found")
	ErrDocumentNotMutable         = InvalidError("document type is not mutable")
	ErrDuplicateIndex             = InvalidError("duplicate index properties")
	ErrHistoricalQueryUnsupported = InvalidError("historical query unsupported")
	ErrIncompatibleDatabase       = InvalidError("database version is newer than this program")
	ErrIncompleteProof            = InvalidError("proof does not cover the query")
	ErrInvalidConfiguration       = InvalidError("invalid configuration")
	ErrInvalidContract            = InvalidError("invalid contract")
	ErrInvalidContractUpdate      = InvalidError("invalid contract update")
	ErrInvalidIdentifier          = InvalidError("invalid identifier")
	ErrInvalidLoggerChannel       = InvalidError("invalid logger channel")
	ErrInvalidOrderBy             = InvalidError("invalid order by")
	ErrInvalidProof               = InvalidError("invalid proof")
	ErrInvalidQueryStructure      = InvalidError("invalid query structure")
	ErrInvalidRevision            = InvalidError("invalid revision")
	ErrKeyNotFound                = NotFoundError("key not found")
	ErrNoIndexFound               = NotFoundError("no index found")
	ErrNotATree                   = InvalidError("element is not a tree")
	ErrNotIndexable               = InvalidError("value is not indexable")
	ErrNotInitialised             = ProcessError("not initialised")
	ErrOwnerMismatch              = InvalidError("owner mismatch")
	ErrPathNotFound               = NotFoundError("path not found")
	ErrReferenceLimit             = InvalidError("reference hop limit exceeded")
	ErrSchemaViolation            = InvalidError("schema violation")
	ErrStartDocumentNotFound      = NotFoundError("start document not found")
	ErrSubtreeNotEmpty            = InvalidError("subtree is not empty")
	ErrTransactionFinished        = ProcessError("transaction already finished")
	ErrTypeMismatch               = InvalidError("type mismatch")
	ErrUniqueIndexViolation       = ExistsError("unique index violation")
	ErrUnknownBackend             = InvalidError("unknown database backend")
	ErrUnknownDocumentType        = NotFoundError("unknown document type")
)

// the error interface methods
func (e GenericError) Error() string  { return string(e) }
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// SchemaViolation - a property does not conform to its declared type
type SchemaViolation struct {
	Property string
	Reason   string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: property: %q  reason: %s", e.Property, e.Reason)
}

func (e *SchemaViolation) Unwrap() error { return ErrSchemaViolation }

// NewSchemaViolation - create a schema violation with a formatted reason
func NewSchemaViolation(property string, format string, arguments ...interface{}) error {
	return &SchemaViolation{
		Property: property,
		Reason:   fmt.Sprintf(format, arguments...),
	}
}

// UniqueIndexViolation - a second document with the same unique key
type UniqueIndexViolation struct {
	IndexSignature string
}

func (e *UniqueIndexViolation) Error() string {
	return fmt.Sprintf("unique index violation: %s", e.IndexSignature)
}

func (e *UniqueIndexViolation) Unwrap() error { return ErrUniqueIndexViolation }

// StartDocumentNotFound - the pagination anchor is not present
type StartDocumentNotFound struct {
	Message string
}

func (e *StartDocumentNotFound) Error() string { return e.Message }

func (e *StartDocumentNotFound) Unwrap() error { return ErrStartDocumentNotFound }

// StorageError - failure reported by the underlying database
//
// the original error is kept unchanged and is reachable via errors.Is/As
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %s", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage - wrap a database error, nil stays nil
func Storage(operation string, err error) error {
	if nil == err {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Operation: operation, Err: err}
}

// determine the class of an error
func IsErrExists(e error) bool   { var c ExistsError; return errors.As(e, &c) }
func IsErrInvalid(e error) bool  { var c InvalidError; return errors.As(e, &c) }
func IsErrNotFound(e error) bool { var c NotFoundError; return errors.As(e, &c) }
func IsErrProcess(e error) bool  { var c ProcessError; return errors.As(e, &c) }
func IsErrStorage(e error) bool  { var c *StorageError; return errors.As(e, &c) }
