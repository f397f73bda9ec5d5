package index

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/divvun/pahkat-reposrv/pkg/index/status"
	"github.com/divvun/pahkat-reposrv/pkg/model"
	"github.com/divvun/pahkat-reposrv/pkg/store"
)

// CreateRequest carries the initial metadata for a new package.
type CreateRequest struct {
	Name        model.LangTagMap `json:"name"`
	Description model.LangTagMap `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// Engine turns validated requests into merged descriptors, drives the
// store backend and republishes consistent snapshots.
//
// Every mutation runs the same per-repo sequence under that repo's
// write-lock: reset the working tree, merge against the published
// snapshot, commit, publish the successor snapshot. A backend failure at
// the commit step rolls the working tree back before the lock is
// released, so no partial write ever survives into the next operation.
type Engine struct {
	registry *Registry
	backend  store.Backend
	l        *zap.Logger
}

// EngineOption is a functor to build an engine with some options
type EngineOption func(*Engine)

// EngineLogger provides a logger to the engine
func EngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// NewEngine creates a mutation engine over a registry and its backend.
func NewEngine(registry *Registry, backend store.Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		backend:  backend,
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Registry exposes the repo registry backing this engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Get reads one descriptor from the repo's published snapshot.
func (e *Engine) Get(repoName, packageID string) (model.PackageDescriptor, error) {
	repo, err := e.registry.Resolve(repoName)
	if err != nil {
		return model.PackageDescriptor{}, err
	}
	d, ok := repo.Snapshot().Get(packageID)
	if !ok {
		return model.PackageDescriptor{}, status.ErrPackageNotFound
	}
	return d, nil
}

// List reads the repo's published package set.
func (e *Engine) List(repoName string) ([]model.PackageDescriptor, error) {
	repo, err := e.registry.Resolve(repoName)
	if err != nil {
		return nil, err
	}
	return repo.Snapshot().List(), nil
}

// Create builds a new descriptor with an empty release list and commits
// it. It fails with ErrPackageExists when the id is already taken, with
// no store mutation performed.
func (e *Engine) Create(ctx context.Context, repoName, packageID string, req CreateRequest) (store.CommitID, error) {
	d := model.PackageDescriptor{
		ID:          packageID,
		Name:        req.Name.Copy(),
		Description: req.Description.Copy(),
		Tags:        append([]string(nil), req.Tags...),
		Releases:    []model.Release{},
	}
	// rejected before the write-lock: the store is never touched
	if err := model.Validate(d); err != nil {
		return "", status.ErrInvalid.Wrap(err)
	}

	repo, err := e.registry.Resolve(repoName)
	if err != nil {
		return "", err
	}

	repo.writeMu.Lock()
	defer repo.writeMu.Unlock()

	if err := e.backend.Reset(ctx, repo.dir); err != nil {
		return "", status.ErrBackend.Wrap(err)
	}

	if _, exists := repo.Snapshot().Get(packageID); exists {
		return "", status.ErrPackageExists
	}

	commitID, err := e.backend.CreatePackage(ctx, repo.dir, packageID, d)
	if err != nil {
		return "", e.rollback(ctx, repo, "create", packageID, err)
	}

	repo.publish(repo.Snapshot().with(string(commitID), d))
	e.l.Info("created package",
		zap.String("repo", repoName),
		zap.String("package_id", packageID),
		zap.String("commit", string(commitID)))
	return commitID, nil
}

// Update merges a partial update into the existing descriptor and
// commits the result. It fails with ErrPackageNotFound when the package
// does not exist, with no store mutation performed.
func (e *Engine) Update(ctx context.Context, repoName, packageID string, patch model.PackagePatch) (store.CommitID, error) {
	// rejected before the write-lock: the store is never touched
	if err := patch.Validate(); err != nil {
		return "", status.ErrInvalid.Wrap(err)
	}

	repo, err := e.registry.Resolve(repoName)
	if err != nil {
		return "", err
	}

	repo.writeMu.Lock()
	defer repo.writeMu.Unlock()

	if err := e.backend.Reset(ctx, repo.dir); err != nil {
		return "", status.ErrBackend.Wrap(err)
	}

	current, exists := repo.Snapshot().Get(packageID)
	if !exists {
		return "", status.ErrPackageNotFound
	}

	merged := current.Patched(patch)
	if err := model.Validate(merged); err != nil {
		return "", status.ErrInvalid.Wrap(err)
	}

	commitID, err := e.backend.UpdatePackage(ctx, repo.dir, packageID, merged, patch.CommitSummary(packageID))
	if err != nil {
		return "", e.rollback(ctx, repo, "update", packageID, err)
	}

	repo.publish(repo.Snapshot().with(string(commitID), merged))
	e.l.Info("updated package",
		zap.String("repo", repoName),
		zap.String("package_id", packageID),
		zap.String("commit", string(commitID)))
	return commitID, nil
}

// rollback restores the working tree after a failed commit. The caller
// still holds the repo's write-lock.
func (e *Engine) rollback(ctx context.Context, repo *Repo, op, packageID string, cause error) error {
	e.l.Error("store commit failed, resetting working tree",
		zap.String("repo", repo.name),
		zap.String("op", op),
		zap.String("package_id", packageID),
		zap.Error(cause))
	if err := e.backend.Reset(ctx, repo.dir); err != nil {
		e.l.Error("rollback reset failed",
			zap.String("repo", repo.name),
			zap.Error(err))
	}
	return status.ErrBackend.Wrap(cause)
}

// Refresh reloads the snapshot of every repo whose store head moved
// since it was last published. It lets changes pushed from outside this
// process become visible to readers.
func (e *Engine) Refresh(ctx context.Context) error {
	for _, repo := range e.registry.Repos() {
		head, err := e.backend.Head(ctx, repo.dir)
		if err != nil {
			return status.ErrBackend.Wrap(err)
		}
		if head == repo.Snapshot().HeadRef() {
			continue
		}

		repo.writeMu.Lock()
		snap, err := loadSnapshot(ctx, e.backend, repo.dir)
		if err == nil {
			repo.publish(snap)
			e.l.Info("refreshed repo index",
				zap.String("repo", repo.name),
				zap.String("head_ref", snap.HeadRef()),
				zap.Int("packages", snap.Len()))
		}
		repo.writeMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// RefreshForever re-runs Refresh on the given interval until the context
// is canceled.
func (e *Engine) RefreshForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil {
				e.l.Error("error while refreshing indexes", zap.Error(err))
			}
		}
	}
}
