package memcore

import (
	cerrors "github.com/cockroachdb/errors"
)

// CheckPositive returns ErrInvalidSize, wrapped with the offending value, if the
// provided number is not greater than zero.
func CheckPositive(number int, name string) error {
	if number <= 0 {
		return cerrors.Wrapf(ErrInvalidSize, "%s is %d", name, number)
	}
	return nil
}
