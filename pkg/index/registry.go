// Package index maintains the in-memory view of the configured package
// repos and implements the mutation engine that reconciles it against
// the durable store.
package index

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/divvun/pahkat-reposrv/pkg/index/status"
	"github.com/divvun/pahkat-reposrv/pkg/store"
)

// Repo is the handle for one configured repo: its working-tree location,
// its write-lock and its currently published snapshot.
type Repo struct {
	name string
	dir  string

	// writeMu serializes writers to this repo only. Readers never take it:
	// they load the published snapshot.
	writeMu  sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

// Name of the repo as configured.
func (r *Repo) Name() string { return r.name }

// Dir is the repo's working-tree location.
func (r *Repo) Dir() string { return r.dir }

// Snapshot returns the most recently published snapshot. The returned
// value stays valid for the reader even if a writer publishes a
// successor concurrently.
func (r *Repo) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

func (r *Repo) publish(s *Snapshot) {
	r.snapshot.Store(s)
}

// Registry maps configured repo names to their handles. It is built once
// at startup and passed by reference into every request handler.
type Registry struct {
	repos map[string]*Repo
	order []string
	l     *zap.Logger
}

// RegistryOption is a functor to build a registry with some options
type RegistryOption func(*registrySettings)

type registrySettings struct {
	l           *zap.Logger
	skipCleanup bool
}

// RegistryLogger provides a logger to the registry
func RegistryLogger(l *zap.Logger) RegistryOption {
	return func(s *registrySettings) {
		if l != nil {
			s.l = l
		}
	}
}

// SkipCleanup leaves working trees as found at startup instead of
// resetting them (useful for development)
func SkipCleanup(skip bool) RegistryOption {
	return func(s *registrySettings) {
		s.skipCleanup = skip
	}
}

// NewRegistry builds one handle per configured repo name under the store
// root and publishes each repo's initial snapshot. Unless SkipCleanup is
// set, every working tree is reset first so residue from an interrupted
// run never reaches a snapshot.
func NewRegistry(ctx context.Context, backend store.Backend, storeRoot string, repoNames []string, opts ...RegistryOption) (*Registry, error) {
	settings := registrySettings{l: zap.NewNop()}
	for _, apply := range opts {
		apply(&settings)
	}

	reg := &Registry{
		repos: make(map[string]*Repo, len(repoNames)),
		order: append([]string(nil), repoNames...),
		l:     settings.l,
	}

	for _, name := range repoNames {
		repo := &Repo{
			name: name,
			dir:  filepath.Join(storeRoot, name),
		}

		if settings.skipCleanup {
			settings.l.Warn("skipping working tree cleanup (due to configuration option)",
				zap.String("repo", name))
		} else if err := backend.Reset(ctx, repo.dir); err != nil {
			return nil, status.ErrBackend.Wrap(err)
		}

		snap, err := loadSnapshot(ctx, backend, repo.dir)
		if err != nil {
			return nil, err
		}
		repo.publish(snap)
		settings.l.Info("loaded repo index",
			zap.String("repo", name),
			zap.Int("packages", snap.Len()),
			zap.String("head_ref", snap.HeadRef()))

		reg.repos[name] = repo
	}
	return reg, nil
}

func loadSnapshot(ctx context.Context, backend store.Backend, repoDir string) (*Snapshot, error) {
	head, err := backend.Head(ctx, repoDir)
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	descriptors, err := backend.LoadIndex(ctx, repoDir)
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	return newSnapshot(head, descriptors), nil
}

// Resolve maps a repo name to its handle.
func (reg *Registry) Resolve(name string) (*Repo, error) {
	repo, ok := reg.repos[name]
	if !ok {
		return nil, status.ErrRepoNotFound
	}
	return repo, nil
}

// Repos returns the handles in configuration order.
func (reg *Registry) Repos() []*Repo {
	out := make([]*Repo, 0, len(reg.order))
	for _, name := range reg.order {
		out = append(out, reg.repos[name])
	}
	return out
}

// HeadRefs reports the published head ref per repo.
func (reg *Registry) HeadRefs() map[string]string {
	out := make(map[string]string, len(reg.order))
	for _, name := range reg.order {
		out[name] = reg.repos[name].Snapshot().HeadRef()
	}
	return out
}
