// Package status exports errors produced by store backends.
package status

import (
	"github.com/divvun/pahkat-reposrv/pkg/errors"
)

var (
	// ErrOpenRepo indicates a working tree that could not be opened as a git repository
	ErrOpenRepo = errors.New("cannot open repository working tree")

	// ErrReset indicates a failure discarding uncommitted changes from a working tree
	ErrReset = errors.New("cannot reset working tree")

	// ErrLoadIndex indicates a failure scanning package descriptors from a working tree
	ErrLoadIndex = errors.New("cannot load package index")

	// ErrWrite indicates a failure materializing a descriptor file in a working tree
	ErrWrite = errors.New("cannot write package descriptor")

	// ErrCommit indicates a failure staging or committing a descriptor change
	ErrCommit = errors.New("cannot commit package change")

	// ErrDirty indicates a mutation attempted on a working tree with uncommitted residue
	ErrDirty = errors.New("working tree has uncommitted changes")
)
