package nextver

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// testRepo builds go-git histories with strictly increasing commit times.
type testRepo struct {
	t     *testing.T
	repo  *git.Repository
	wt    *git.Worktree
	clock time.Time
	files int
}

// newTestRepo creates an in-memory repository on master.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return wrapTestRepo(t, repo)
}

// newTestRepoFS creates a repository on disk under a temporary directory.
func newTestRepoFS(t *testing.T) (*testRepo, string) {
	t.Helper()
	dir := t.TempDir()
	fs := osfs.New(dir)
	repo, err := git.Init(filesystem.NewStorage(osfs.New(dir+"/.git"), cache.NewObjectLRUDefault()), fs)
	require.NoError(t, err)
	return wrapTestRepo(t, repo), dir
}

func wrapTestRepo(t *testing.T, repo *git.Repository) *testRepo {
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{t: t, repo: repo, wt: wt, clock: testEpoch}
}

func (r *testRepo) signature() *object.Signature {
	r.clock = r.clock.Add(time.Minute)
	return &object.Signature{
		Name:  "test",
		Email: "test@example.com",
		When:  r.clock,
	}
}

func (r *testRepo) touch() {
	r.t.Helper()
	r.files++
	name := fmt.Sprintf("file_%d.txt", r.files)
	require.NoError(r.t, writeFile(r.wt.Filesystem, name, "content "+name))
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

// commit adds a new file and commits it on the checked out branch.
func (r *testRepo) commit(message string) plumbing.Hash {
	r.t.Helper()
	r.touch()
	sig := r.signature()
	h, err := r.wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return h
}

// commits adds n commits and returns the last one.
func (r *testRepo) commits(n int) plumbing.Hash {
	r.t.Helper()
	var h plumbing.Hash
	for i := 0; i < n; i++ {
		h = r.commit(fmt.Sprintf("commit %d", r.files+1))
	}
	return h
}

// merge creates a merge commit of branch into the checked out branch.
func (r *testRepo) merge(branch, message string) plumbing.Hash {
	r.t.Helper()
	head := r.head()
	other, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(r.t, err)

	r.touch()
	sig := r.signature()
	h, err := r.wt.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{head, other.Hash()},
	})
	require.NoError(r.t, err)
	return h
}

func (r *testRepo) head() plumbing.Hash {
	r.t.Helper()
	ref, err := r.repo.Head()
	require.NoError(r.t, err)
	return ref.Hash()
}

// tag places a lightweight tag on h.
func (r *testRepo) tag(name string, h plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, h, nil)
	require.NoError(r.t, err)
}

// annotatedTag places an annotated tag on h.
func (r *testRepo) annotatedTag(name string, h plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, h, &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: "Release " + name,
	})
	require.NoError(r.t, err)
}

// branch creates name at the current HEAD and checks it out.
func (r *testRepo) branch(name string) {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), r.head())
	require.NoError(r.t, r.repo.Storer.SetReference(ref))
	r.checkout(name)
}

func (r *testRepo) checkout(name string) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	}))
}

func (r *testRepo) repository(opts ...GitOption) *GitRepository {
	return NewGitRepository(r.repo, opts...)
}

func (r *testRepo) context(cfg *Configuration, opts ...GitOption) *Context {
	r.t.Helper()
	ctx, err := NewContext(Options{
		Repository:    r.repository(opts...),
		Configuration: cfg,
		Logger:        zaptest.NewLogger(r.t),
	})
	require.NoError(r.t, err)
	return ctx
}

func (r *testRepo) calculate(cfg *Configuration, opts ...GitOption) (*Result, error) {
	return Calculate(Options{
		Repository:    r.repository(opts...),
		Configuration: cfg,
		Logger:        zaptest.NewLogger(r.t),
	})
}

func (r *testRepo) commitOf(h plumbing.Hash) *Commit {
	r.t.Helper()
	c, err := r.repository().Commit(h.String())
	require.NoError(r.t, err)
	return c
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}

// configWith parses yamlText over the defaults.
func configWith(t *testing.T, yamlText string) *Configuration {
	t.Helper()
	cfg, err := ParseConfiguration([]byte(yamlText))
	require.NoError(t, err)
	return cfg
}
