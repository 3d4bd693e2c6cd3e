package constants

import "errors"

// Errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNoCollection       = errors.New("collection is not set")
	ErrInvalidName        = errors.New("invalid collection name")
	ErrEmptyFieldName     = errors.New("field name must not be empty")
	ErrDuplicateField     = errors.New("revision field names must be distinct")
	ErrStoreClosed        = errors.New("store is closed")
	ErrReservedField      = errors.New("revision field name is reserved by the store")
)

var (
	ErrNoEndpoint       = errors.New("endpoint is required")
	ErrNoNamespaceOrDB  = errors.New("namespace or database or both are not set")
	ErrUnsupportedDSN   = errors.New("unsupported sql driver")
	ErrUnsupportedValue = errors.New("value cannot be converted to revision attributes")
)
