// Package mockstore provides an in-memory store backend for tests.
package mockstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/divvun/pahkat-reposrv/pkg/model"
	"github.com/divvun/pahkat-reposrv/pkg/store"
	"github.com/divvun/pahkat-reposrv/pkg/store/status"
)

var _ store.Backend = &StoreMock{}

// StoreMock implements store.Backend against in-memory state. Any of the
// *Func fields, when set, overrides the default behavior of the matching
// operation.
type StoreMock struct {
	ResetFunc     func(ctx context.Context, repoDir string) error
	HeadFunc      func(ctx context.Context, repoDir string) (string, error)
	LoadIndexFunc func(ctx context.Context, repoDir string) ([]model.PackageDescriptor, error)
	CreateFunc    func(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor) (store.CommitID, error)
	UpdateFunc    func(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor, summary string) (store.CommitID, error)

	mu     sync.Mutex
	repos  map[string]*repoState
	delays map[string]time.Duration
}

type repoState struct {
	commits    int
	summaries  []string
	packages   map[string]model.PackageDescriptor
	dirty      bool
	resetCalls int
}

// New creates an empty in-memory backend.
func New() *StoreMock {
	return &StoreMock{
		repos:  make(map[string]*repoState),
		delays: make(map[string]time.Duration),
	}
}

// SetCommitDelay stretches commits against one repo, to exercise writer
// serialization and cross-repo independence.
func (s *StoreMock) SetCommitDelay(repoDir string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[repoDir] = d
}

func (s *StoreMock) repo(repoDir string) *repoState {
	r, ok := s.repos[repoDir]
	if !ok {
		r = &repoState{packages: make(map[string]model.PackageDescriptor)}
		s.repos[repoDir] = r
	}
	return r
}

// Reset discards simulated uncommitted residue.
func (s *StoreMock) Reset(ctx context.Context, repoDir string) error {
	if s.ResetFunc != nil {
		return s.ResetFunc(ctx, repoDir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repo(repoDir)
	r.dirty = false
	r.resetCalls++
	return nil
}

// Head reports a synthetic head ref that changes with every commit.
func (s *StoreMock) Head(ctx context.Context, repoDir string) (string, error) {
	if s.HeadFunc != nil {
		return s.HeadFunc(ctx, repoDir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repo(repoDir)
	if r.commits == 0 {
		return "", nil
	}
	return fmt.Sprintf("commit-%d", r.commits), nil
}

// LoadIndex returns deep copies of the committed descriptors.
func (s *StoreMock) LoadIndex(ctx context.Context, repoDir string) ([]model.PackageDescriptor, error) {
	if s.LoadIndexFunc != nil {
		return s.LoadIndexFunc(ctx, repoDir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repo(repoDir)
	out := make([]model.PackageDescriptor, 0, len(r.packages))
	for _, d := range r.packages {
		out = append(out, d.Copy())
	}
	return out, nil
}

// CreatePackage commits a new descriptor.
func (s *StoreMock) CreatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor) (store.CommitID, error) {
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, repoDir, packageID, d)
	}
	return s.commit(repoDir, packageID, d, packageID)
}

// UpdatePackage commits a merged descriptor.
func (s *StoreMock) UpdatePackage(ctx context.Context, repoDir, packageID string, d model.PackageDescriptor, summary string) (store.CommitID, error) {
	if s.UpdateFunc != nil {
		return s.UpdateFunc(ctx, repoDir, packageID, d, summary)
	}
	return s.commit(repoDir, packageID, d, summary)
}

func (s *StoreMock) commit(repoDir, packageID string, d model.PackageDescriptor, summary string) (store.CommitID, error) {
	s.mu.Lock()
	delay := s.delays[repoDir]
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repo(repoDir)
	if r.dirty {
		// residue from a simulated crash was never cleaned up
		return "", status.ErrDirty
	}
	r.packages[packageID] = d.Copy()
	r.commits++
	r.summaries = append(r.summaries, summary)
	return store.CommitID(fmt.Sprintf("commit-%d", r.commits)), nil
}

// MarkDirty simulates a crash that left uncommitted residue in the
// working tree. Mutations fail until Reset is called.
func (s *StoreMock) MarkDirty(repoDir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo(repoDir).dirty = true
}

// ResetCalls reports how many times Reset ran against a repo.
func (s *StoreMock) ResetCalls(repoDir string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo(repoDir).resetCalls
}

// Summaries reports the commit subjects a repo received, oldest first.
func (s *StoreMock) Summaries(repoDir string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.repo(repoDir).summaries...)
}

// Commits reports how many commits a repo received.
func (s *StoreMock) Commits(repoDir string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo(repoDir).commits
}

// Descriptor returns the committed descriptor for a package, if present.
func (s *StoreMock) Descriptor(repoDir, packageID string) (model.PackageDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.repo(repoDir).packages[packageID]
	if !ok {
		return model.PackageDescriptor{}, false
	}
	return d.Copy(), true
}

// Seed installs a committed descriptor without going through the engine.
func (s *StoreMock) Seed(repoDir string, descriptors ...model.PackageDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repo(repoDir)
	for _, d := range descriptors {
		r.packages[d.ID] = d.Copy()
	}
	r.commits++
}
