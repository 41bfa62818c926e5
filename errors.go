package tdigest

import "github.com/pkg/errors"

// ErrInvalidArgument is returned (wrapped) when a call is rejected because of
// its input: a NaN sample, a quantile outside [0, 1], incompatible digests or
// bad options. The digest is left untouched.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrCorrupted is returned (wrapped) when a digest or an encoded payload
// breaks the structural guarantees the estimates rely on. Continuing with
// such a digest would produce silently wrong answers.
var ErrCorrupted = errors.New("corrupted t-digest")

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

func corrupted(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupted, format, args...)
}
