// Package store defines the durable backend contract the mutation engine
// drives: descriptor files live in a versioned working tree and every
// successful mutation becomes exactly one commit.
package store

import (
	"context"

	"github.com/divvun/pahkat-reposrv/pkg/model"
)

// CommitID identifies one commit in a repo's history.
type CommitID string

// Backend persists package descriptors for one or more repo working trees.
//
// Reset must be idempotent and safe to call on a tree with no pending
// changes. CreatePackage and UpdatePackage leave the store untouched when
// they fail: callers recover by calling Reset.
type Backend interface {
	// Reset discards uncommitted residue, restoring the working tree to
	// its last commit.
	Reset(ctx context.Context, repoDir string) error

	// Head reports the current head ref of the working tree, or an empty
	// string for a repo with no history yet.
	Head(ctx context.Context, repoDir string) (string, error)

	// LoadIndex scans the working tree's package descriptors.
	LoadIndex(ctx context.Context, repoDir string) ([]model.PackageDescriptor, error)

	// CreatePackage materializes a new descriptor and commits it.
	CreatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor) (CommitID, error)

	// UpdatePackage materializes a merged descriptor and commits it.
	// The summary is the subject quoted in the commit message, naming
	// the package and the patched release key.
	UpdatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor, summary string) (CommitID, error)
}
