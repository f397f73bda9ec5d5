// Package gitstore implements the store backend on plain git working
// trees: one repo per directory, one commit per mutation.
package gitstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/divvun/pahkat-reposrv/pkg/model"
	"github.com/divvun/pahkat-reposrv/pkg/store"
	"github.com/divvun/pahkat-reposrv/pkg/store/status"
)

const (
	defaultSignatureName  = "Pahkat Repository Server"
	defaultSignatureEmail = "feedback@divvun.no"
	defaultBranch         = "main"

	originRemote = "origin"
)

var _ store.Backend = &Store{}

// Store commits package descriptor changes to git working trees.
type Store struct {
	signatureName  string
	signatureEmail string
	branch         string
	push           bool
	l              *zap.Logger
}

// New creates a git-backed store.
func New(opts ...Option) *Store {
	s := &Store{
		signatureName:  defaultSignatureName,
		signatureEmail: defaultSignatureEmail,
		branch:         defaultBranch,
		l:              zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func open(repoDir string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return nil, nil, status.ErrOpenRepo.Wrap(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, status.ErrOpenRepo.Wrap(err)
	}
	return repo, wt, nil
}

// Reset drops untracked files and restores tracked ones to HEAD. A repo
// without history gets its working tree and index emptied instead.
func (s *Store) Reset(_ context.Context, repoDir string) error {
	repo, wt, err := open(repoDir)
	if err != nil {
		return err
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return status.ErrReset.Wrap(err)
	}
	if _, err := repo.Head(); err != nil {
		if err != plumbing.ErrReferenceNotFound {
			return status.ErrReset.Wrap(err)
		}
		// no commit to reset to: drop whatever an interrupted first
		// create left staged, or it rides along into the next commit
		return clearIndex(repo, wt)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return status.ErrReset.Wrap(err)
	}
	return nil
}

func clearIndex(repo *git.Repository, wt *git.Worktree) error {
	idx, err := repo.Storer.Index()
	if err != nil {
		return status.ErrReset.Wrap(err)
	}
	if len(idx.Entries) == 0 {
		return nil
	}
	for _, entry := range idx.Entries {
		if err := wt.Filesystem.Remove(entry.Name); err != nil && !os.IsNotExist(err) {
			return status.ErrReset.Wrap(err)
		}
	}
	idx.Entries = nil
	if err := repo.Storer.SetIndex(idx); err != nil {
		return status.ErrReset.Wrap(err)
	}
	return nil
}

// Head reports the hash the working tree's HEAD resolves to.
func (s *Store) Head(_ context.Context, repoDir string) (string, error) {
	repo, _, err := open(repoDir)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", nil
		}
		return "", status.ErrOpenRepo.Wrap(err)
	}
	return ref.Hash().String(), nil
}

// LoadIndex scans packages/*/index.toml into descriptors. Unparsable
// descriptor files are logged and skipped, like the reader side of the
// repo tolerates them.
func (s *Store) LoadIndex(_ context.Context, repoDir string) ([]model.PackageDescriptor, error) {
	_, wt, err := open(repoDir)
	if err != nil {
		return nil, err
	}
	fs := wt.Filesystem

	entries, err := fs.ReadDir(model.PackagesDir)
	if err != nil {
		// a repo that never had a package yet
		return []model.PackageDescriptor{}, nil
	}

	descriptors := make([]model.PackageDescriptor, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		indexPath := model.IndexFilePath(entry.Name())
		data, err := util.ReadFile(fs, indexPath)
		if err != nil {
			s.l.Error("could not read package descriptor",
				zap.String("repo_dir", repoDir),
				zap.String("path", indexPath),
				zap.Error(err))
			continue
		}
		d, err := model.UnmarshalDescriptor(data)
		if err != nil {
			s.l.Error("could not parse package descriptor",
				zap.String("repo_dir", repoDir),
				zap.String("path", indexPath),
				zap.Error(err))
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// CreatePackage materializes a new descriptor and commits it as
// [<repo>:create] `<package-id>`.
func (s *Store) CreatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor) (store.CommitID, error) {
	msg := "[" + filepath.Base(repoDir) + ":create] `" + packageID + "`"
	return s.commitDescriptor(ctx, repoDir, packageID, d, msg)
}

// UpdatePackage materializes a merged descriptor and commits it as
// [<repo>:update] `<summary>`.
func (s *Store) UpdatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor, summary string) (store.CommitID, error) {
	if summary == "" {
		summary = packageID
	}
	msg := "[" + filepath.Base(repoDir) + ":update] `" + summary + "`"
	return s.commitDescriptor(ctx, repoDir, packageID, d, msg)
}

func (s *Store) commitDescriptor(_ context.Context, repoDir, packageID string, d model.PackageDescriptor, msg string) (store.CommitID, error) {
	repo, wt, err := open(repoDir)
	if err != nil {
		return "", err
	}

	data, err := model.MarshalDescriptor(d)
	if err != nil {
		return "", status.ErrWrite.Wrap(err)
	}
	indexPath := model.IndexFilePath(packageID)
	if err := util.WriteFile(wt.Filesystem, indexPath, data, 0o644); err != nil {
		return "", status.ErrWrite.Wrap(err)
	}

	if _, err := wt.Add(indexPath); err != nil {
		return "", status.ErrCommit.Wrap(err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.signatureName,
			Email: s.signatureEmail,
			When:  time.Now(),
		},
		// re-submitting byte-identical metadata must still succeed
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", status.ErrCommit.Wrap(err)
	}

	s.l.Info("committed package change",
		zap.String("repo_dir", repoDir),
		zap.String("package_id", packageID),
		zap.String("commit", hash.String()))

	if s.push {
		s.pushOrigin(repo, repoDir)
	}
	return store.CommitID(hash.String()), nil
}

// pushOrigin publishes the branch to origin. The commit is already
// durable locally, so a failed push is logged rather than turned into a
// mutation failure.
func (s *Store) pushOrigin(repo *git.Repository, repoDir string) {
	err := repo.Push(&git.PushOptions{
		RemoteName: originRemote,
		RefSpecs: []config.RefSpec{
			config.RefSpec("HEAD:refs/heads/" + s.branch),
		},
	})
	switch err {
	case nil, git.NoErrAlreadyUpToDate:
	case git.ErrRemoteNotFound:
		s.l.Debug("no origin remote, skipping push", zap.String("repo_dir", repoDir))
	default:
		s.l.Error("push to origin failed", zap.String("repo_dir", repoDir), zap.Error(err))
	}
}
