// Package status exports errors produced by the index package.
package status

import (
	"github.com/divvun/pahkat-reposrv/pkg/errors"
)

var (
	// ErrRepoNotFound indicates a repo name outside the configured set
	ErrRepoNotFound = errors.New("repo not found")

	// ErrPackageNotFound indicates an update against a package that does not exist
	ErrPackageNotFound = errors.New("package not found")

	// ErrPackageExists indicates a create against a package that already exists
	ErrPackageExists = errors.New("package already exists")

	// ErrInvalid indicates a request rejected before any store mutation
	ErrInvalid = errors.New("invalid request")

	// ErrBackend indicates a store failure; the working tree has been reset
	ErrBackend = errors.New("store backend failure")
)
