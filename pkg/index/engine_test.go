package index

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/divvun/pahkat-reposrv/pkg/errors"
	"github.com/divvun/pahkat-reposrv/pkg/index/status"
	"github.com/divvun/pahkat-reposrv/pkg/model"
	"github.com/divvun/pahkat-reposrv/pkg/store"
	"github.com/divvun/pahkat-reposrv/pkg/store/mockstore"
)

const (
	mainRepo  = "divvun-installer"
	toolsRepo = "tools"
)

func testEngine(t *testing.T, backend store.Backend) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	reg, err := NewRegistry(context.Background(), backend, root, []string{mainRepo, toolsRepo})
	require.NoError(t, err)
	return NewEngine(reg, backend), root
}

func createReq() CreateRequest {
	return CreateRequest{
		Name:        model.LangTagMap{"en": "Divvun Installer"},
		Description: model.LangTagMap{"en": "Installs packages"},
		Tags:        []string{"category:utilities"},
	}
}

func TestCreateThenConflict(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)
	ctx := context.Background()

	commitID, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)
	assert.NotEmpty(t, commitID)

	_, err = eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrPackageExists))

	list, err := eng.List(mainRepo)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "divvun-installer", list[0].ID)
	assert.Equal(t, []model.Release{}, list[0].Releases)
}

func TestCreateUnknownRepo(t *testing.T) {
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)

	_, err := eng.Create(context.Background(), "no-such-repo", "pkg", createReq())
	assert.True(t, errors.Is(err, status.ErrRepoNotFound))
}

func TestCreateInvalidBeforeLock(t *testing.T) {
	backend := mockstore.New()
	eng, root := testEngine(t, backend)

	_, err := eng.Create(context.Background(), mainRepo, "bad id!", createReq())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalid))

	// validation failures never touch the store
	assert.Zero(t, backend.Commits(filepath.Join(root, mainRepo)))
}

func TestUpdateNotFoundLeavesSnapshotUntouched(t *testing.T) {
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	before, err := eng.List(mainRepo)
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "no-such-package", model.PackagePatch{
		Name: model.LangTagMap{"en": "X"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrPackageNotFound))

	after, err := eng.List(mainRepo)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateMergesLocales(t *testing.T) {
	backend := mockstore.New()
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "speller-sme", CreateRequest{
		Name: model.LangTagMap{"en": "Y"},
	})
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "speller-sme", model.PackagePatch{
		Name: model.LangTagMap{"sv": "X"},
	})
	require.NoError(t, err)

	d, err := eng.Get(mainRepo, "speller-sme")
	require.NoError(t, err)
	assert.Equal(t, model.LangTagMap{"en": "Y", "sv": "X"}, d.Name)

	// the committed descriptor matches the published snapshot
	committed, ok := backend.Descriptor(filepath.Join(root, mainRepo), "speller-sme")
	require.True(t, ok)
	assert.Equal(t, d, committed)
}

func TestUpdateTargetMerging(t *testing.T) {
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Version: "1.0.0",
		Channel: "stable",
		Target:  &model.Target{Platform: "macos", URL: "https://example.org/a.pkg"},
	})
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Version: "1.0.0",
		Channel: "stable",
		Target:  &model.Target{Platform: "windows", URL: "https://example.org/a.exe"},
	})
	require.NoError(t, err)

	d, err := eng.Get(mainRepo, "divvun-installer")
	require.NoError(t, err)
	require.Len(t, d.Releases, 1)
	require.Len(t, d.Releases[0].Targets, 2)

	// re-submitting a platform replaces its target in place
	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Version: "1.0.0",
		Channel: "stable",
		Target:  &model.Target{Platform: "macos", URL: "https://example.org/b.pkg"},
	})
	require.NoError(t, err)

	d, err = eng.Get(mainRepo, "divvun-installer")
	require.NoError(t, err)
	require.Len(t, d.Releases, 1)
	require.Len(t, d.Releases[0].Targets, 2)
	for _, target := range d.Releases[0].Targets {
		if target.Platform == "macos" {
			assert.Equal(t, "https://example.org/b.pkg", target.URL)
		}
	}
}

func TestUpdateCommitSummary(t *testing.T) {
	backend := mockstore.New()
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Version: "2.1.0",
		Target:  &model.Target{Platform: "windows", URL: "https://example.org/a.exe"},
	})
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Name: model.LangTagMap{"nb": "Divvun"},
	})
	require.NoError(t, err)

	summaries := backend.Summaries(filepath.Join(root, mainRepo))
	require.Len(t, summaries, 3)
	assert.Equal(t, "divvun-installer", summaries[0])
	assert.Equal(t, "divvun-installer 2.1.0 windows (stable)", summaries[1])
	// a metadata-only patch has no release key to name
	assert.Equal(t, "divvun-installer", summaries[2])
}

func TestBackendFailureRollsBack(t *testing.T) {
	backend := mockstore.New()
	injected := errors.New("disk full")
	backend.UpdateFunc = func(_ context.Context, _, _ string, _ model.PackageDescriptor, _ string) (store.CommitID, error) {
		return "", injected
	}
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	repoDir := filepath.Join(root, mainRepo)
	resetsBefore := backend.ResetCalls(repoDir)
	before, err := eng.Get(mainRepo, "divvun-installer")
	require.NoError(t, err)

	_, err = eng.Update(ctx, mainRepo, "divvun-installer", model.PackagePatch{
		Name: model.LangTagMap{"nb": "Divvun"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrBackend))
	assert.True(t, errors.Is(err, injected))

	// one reset ahead of the merge, one rolling back the failed commit
	assert.Equal(t, resetsBefore+2, backend.ResetCalls(repoDir))

	after, err := eng.Get(mainRepo, "divvun-installer")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConcurrentCreateSamePackage(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)
	ctx := context.Background()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, status.ErrPackageExists):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	list, err := eng.List(mainRepo)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepoIsolationUnderSlowCommit(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := mockstore.New()
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	backend.SetCommitDelay(filepath.Join(root, mainRepo), 500*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := eng.Create(ctx, mainRepo, "slow-pkg", createReq())
		assert.NoError(t, err)
	}()

	// give the slow writer a head start into its commit
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_, err := eng.Create(ctx, toolsRepo, "fast-pkg", createReq())
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, 250*time.Millisecond,
		"a writer to one repo must not wait on another repo's commit")

	wg.Wait()
}

func TestDirtyWorkingTreeSelfHeals(t *testing.T) {
	backend := mockstore.New()
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	repoDir := filepath.Join(root, mainRepo)
	backend.MarkDirty(repoDir)

	// the next mutation resets the residue away and succeeds
	_, err = eng.Create(ctx, mainRepo, "pahkat-service", createReq())
	require.NoError(t, err)

	list, err := eng.List(mainRepo)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSnapshotStableForConcurrentReaders(t *testing.T) {
	backend := mockstore.New()
	eng, _ := testEngine(t, backend)
	ctx := context.Background()

	_, err := eng.Create(ctx, mainRepo, "divvun-installer", createReq())
	require.NoError(t, err)

	repo, err := eng.Registry().Resolve(mainRepo)
	require.NoError(t, err)
	held := repo.Snapshot()

	_, err = eng.Create(ctx, mainRepo, "pahkat-service", createReq())
	require.NoError(t, err)

	// the superseded snapshot stays valid for readers already holding it
	assert.Equal(t, 1, held.Len())
	assert.Equal(t, 2, repo.Snapshot().Len())
}

func TestRefreshPicksUpExternalCommits(t *testing.T) {
	backend := mockstore.New()
	eng, root := testEngine(t, backend)
	ctx := context.Background()

	repoDir := filepath.Join(root, mainRepo)
	backend.Seed(repoDir, model.PackageDescriptor{
		ID:   "pushed-from-ci",
		Name: model.LangTagMap{"en": "Pushed"},
	})

	require.NoError(t, eng.Refresh(ctx))

	d, err := eng.Get(mainRepo, "pushed-from-ci")
	require.NoError(t, err)
	assert.Equal(t, "Pushed", d.Name["en"])
}
