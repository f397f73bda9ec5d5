package index

import (
	"github.com/divvun/pahkat-reposrv/pkg/model"
)

// Snapshot is an immutable view of one repo's package set at a point in
// the store's history. It is safe to share across concurrent readers:
// a published snapshot is never mutated, only replaced wholesale.
type Snapshot struct {
	headRef  string
	packages map[string]model.PackageDescriptor
}

func newSnapshot(headRef string, descriptors []model.PackageDescriptor) *Snapshot {
	packages := make(map[string]model.PackageDescriptor, len(descriptors))
	for _, d := range descriptors {
		packages[d.ID] = d
	}
	return &Snapshot{headRef: headRef, packages: packages}
}

// Get looks up one package descriptor. Callers must treat the returned
// descriptor as read-only.
func (s *Snapshot) Get(packageID string) (model.PackageDescriptor, bool) {
	d, ok := s.packages[packageID]
	return d, ok
}

// List returns the package set. Order is not significant.
func (s *Snapshot) List() []model.PackageDescriptor {
	out := make([]model.PackageDescriptor, 0, len(s.packages))
	for _, d := range s.packages {
		out = append(out, d)
	}
	return out
}

// Len reports the number of packages in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.packages)
}

// HeadRef reports the store head this snapshot was taken at.
func (s *Snapshot) HeadRef() string {
	return s.headRef
}

// with builds the successor snapshot incorporating one changed
// descriptor, leaving the receiver untouched.
func (s *Snapshot) with(headRef string, d model.PackageDescriptor) *Snapshot {
	packages := make(map[string]model.PackageDescriptor, len(s.packages)+1)
	for id, existing := range s.packages {
		packages[id] = existing
	}
	packages[d.ID] = d
	return &Snapshot{headRef: headRef, packages: packages}
}
