package memcore

import "github.com/pkg/errors"

// ErrInvalidSize is the error returned when a region is created with a non-positive
// size or an allocation is requested with a non-positive size
var ErrInvalidSize error = errors.New("size must be a positive integer")

// ErrInvalidHandle is the error returned when an operation receives a handle that does
// not map to a live allocation in the region it was used with
var ErrInvalidHandle error = errors.New("handle does not map to a live allocation in this region")
