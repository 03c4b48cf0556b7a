package cache

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrInvalidTarget is returned when a directory path points at a file or a
	// data file path points at a directory.
	ErrInvalidTarget = zerr.New("invalid target")

	// ErrIO is returned when creating, reading, writing or deleting a data file fails.
	ErrIO = zerr.New("data file io failure")

	// ErrParse is returned when a data file cannot be decoded or encoded.
	ErrParse = zerr.New("data file parse failure")

	// ErrTypeMismatch is returned by typed accessors when the cached value has another shape.
	ErrTypeMismatch = zerr.New("type mismatch")

	// ErrKeyNotFound is returned by typed accessors when the key has no value.
	ErrKeyNotFound = zerr.New("key not found")
)

func ioError(op, path string, err error) error {
	return zerr.With(zerr.With(fmt.Errorf("%w: %s: %w", ErrIO, op, err), "op", op), "path", path)
}

func parseError(path string, err error) error {
	return zerr.With(fmt.Errorf("%w: %w", ErrParse, err), "path", path)
}

// 哨兵错误必须先经 %w 包装再附加元数据，zerr.With 直接作用于哨兵会丢失 errors.Is 语义。

func invalidTarget(path, want string) error {
	err := fmt.Errorf("%w: %s is not a %s", ErrInvalidTarget, path, want)
	return zerr.With(zerr.With(err, "path", path), "want", want)
}

func mismatch(want Kind, got Kind) error {
	err := fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, want, got)
	return zerr.With(zerr.With(err, "want", want.String()), "got", got.String())
}

func notFound() error {
	return fmt.Errorf("%w", ErrKeyNotFound)
}

func withKey(err error, key string) error {
	if err == nil {
		return nil
	}
	return zerr.With(err, "key", key)
}
