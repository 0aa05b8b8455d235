// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package nextver

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// detachedBranchName is reported when HEAD is detached and no branch points
// at it.
const detachedBranchName = "(no branch)"

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

// GitOption configures a GitRepository.
type GitOption func(*GitRepository)

// WithCommitish analyzes the given revision instead of the branch tip.
func WithCommitish(rev plumbing.Revision) GitOption {
	return func(r *GitRepository) {
		r.commitish = rev
	}
}

// WithBranch overrides the current branch, for CI systems that check out a
// detached HEAD.
func WithBranch(name string) GitOption {
	return func(r *GitRepository) {
		r.branchName = name
	}
}

// GitRepository implements Repository over go-git.
type GitRepository struct {
	repo       *git.Repository
	commitish  plumbing.Revision
	branchName string
}

// NewGitRepository wraps repo.
func NewGitRepository(repo *git.Repository, opts ...GitOption) *GitRepository {
	r := &GitRepository{repo: repo}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newCommit(c *object.Commit) *Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &Commit{
		Sha:     c.Hash.String(),
		When:    c.Committer.When,
		Message: c.Message,
		Parents: parents,
	}
}

func (r *GitRepository) commitObject(sha string) (*object.Commit, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("getting commit object %s: %w", sha, err)
	}
	return c, nil
}

// Commit looks up a commit by sha.
func (r *GitRepository) Commit(sha string) (*Commit, error) {
	c, err := r.commitObject(sha)
	if err != nil {
		return nil, err
	}
	return newCommit(c), nil
}

// Branches lists local and remote-tracking branches.
func (r *GitRepository) Branches() ([]Branch, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}

	var branches []Branch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if !name.IsBranch() && !name.IsRemote() {
			return nil
		}

		c, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		branches = append(branches, Branch{
			Name:     name.String(),
			Tip:      newCommit(c),
			IsRemote: name.IsRemote(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

// Tags lists every tag that resolves to a commit. Annotated tags are peeled
// to their target.
func (r *GitRepository) Tags() ([]Tag, error) {
	tagRefs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var tags []Tag
	err = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		target := ref.Hash()
		obj, err := r.repo.TagObject(ref.Hash())
		switch err {
		case nil:
			// Annotated tag
			if obj.TargetType != plumbing.CommitObject {
				return nil
			}
			target = obj.Target
		case plumbing.ErrObjectNotFound:
			// Lightweight tag
		default:
			return err
		}

		tags = append(tags, Tag{
			Name:      ref.Name().Short(),
			TargetSha: target.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})
	return tags, nil
}

// CurrentBranch returns the overridden branch, the checked out branch, or a
// branch whose tip is the detached HEAD.
func (r *GitRepository) CurrentBranch() (Branch, error) {
	if r.branchName != "" {
		return r.namedBranch(r.branchName)
	}

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Unborn branch
		sym, symErr := r.repo.Reference(plumbing.HEAD, false)
		if symErr != nil {
			return Branch{}, fmt.Errorf("reading HEAD: %w", symErr)
		}
		return Branch{Name: sym.Target().String()}, nil
	}
	if err != nil {
		return Branch{}, fmt.Errorf("reading HEAD: %w", err)
	}

	c, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return Branch{}, fmt.Errorf("getting commit object: %w", err)
	}
	if head.Name().IsBranch() {
		return Branch{Name: head.Name().String(), Tip: newCommit(c)}, nil
	}

	branches, err := r.Branches()
	if err != nil {
		return Branch{}, err
	}
	for _, b := range branches {
		if !b.IsRemote && b.Tip.Sha == c.Hash.String() {
			return b, nil
		}
	}
	return Branch{Name: detachedBranchName, Tip: newCommit(c)}, nil
}

func (r *GitRepository) namedBranch(name string) (Branch, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.ReferenceName(name),
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName("origin", name),
	}
	for _, candidate := range candidates {
		ref, err := r.repo.Reference(candidate, true)
		if err != nil {
			continue
		}
		c, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return Branch{}, fmt.Errorf("resolving %s: %w", candidate, err)
		}
		return Branch{Name: candidate.String(), Tip: newCommit(c), IsRemote: candidate.IsRemote()}, nil
	}

	// Not a known branch: use the checked out commit under the given name.
	head, err := r.repo.Head()
	if err != nil {
		return Branch{Name: plumbing.NewBranchReferenceName(name).String()}, nil
	}
	c, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return Branch{}, fmt.Errorf("getting commit object: %w", err)
	}
	return Branch{Name: plumbing.NewBranchReferenceName(name).String(), Tip: newCommit(c)}, nil
}

// CurrentCommit returns the commitish override or the current branch tip.
func (r *GitRepository) CurrentCommit() (*Commit, error) {
	if r.commitish != "" {
		revision, err := r.repo.ResolveRevision(r.commitish)
		if err != nil {
			return nil, fmt.Errorf("resolving commitish: %w", err)
		}
		return r.Commit(revision.String())
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	return branch.Tip, nil
}

// CommitLog walks from to in commit time order, newest first, stopping at
// anything reachable from from.
func (r *GitRepository) CommitLog(from, to *Commit) iter.Seq2[*Commit, error] {
	return func(yield func(*Commit, error) bool) {
		if to == nil {
			return
		}
		tip, err := r.commitObject(to.Sha)
		if err != nil {
			yield(nil, err)
			return
		}

		walk := newCommitWalk()
		walk.push(tip, false)
		if from != nil {
			base, err := r.commitObject(from.Sha)
			if err != nil {
				yield(nil, err)
				return
			}
			walk.push(base, true)
		}

		for c, hidden := range walk.next {
			err := c.Parents().ForEach(func(p *object.Commit) error {
				walk.push(p, hidden)
				return nil
			})
			if err != nil {
				yield(nil, fmt.Errorf("walking commits: %w", err))
				return
			}
			if hidden {
				continue
			}
			if !yield(newCommit(c), nil) {
				return
			}
		}
	}
}

type walkState struct {
	hidden bool
	queued bool
}

// commitWalk visits the commits reachable from the interesting tips but not
// from the hidden ones, newest committer time first. Both sides are expanded
// together and the walk ends once only hidden commits remain queued, so
// history below the merge base is never loaded. A commit is only known to be
// hidden once a hidden walk reaches it; with committer times that go
// backwards along the history it may already have been emitted.
type commitWalk struct {
	queue   *binaryheap.Heap
	state   map[plumbing.Hash]*walkState
	visible int
}

func newCommitWalk() *commitWalk {
	return &commitWalk{
		queue: binaryheap.NewWith(func(a, b interface{}) int {
			ca, cb := a.(*object.Commit), b.(*object.Commit)
			switch {
			case ca.Committer.When.After(cb.Committer.When):
				return -1
			case ca.Committer.When.Before(cb.Committer.When):
				return 1
			}
			return strings.Compare(ca.Hash.String(), cb.Hash.String())
		}),
		state: map[plumbing.Hash]*walkState{},
	}
}

func (w *commitWalk) push(c *object.Commit, hidden bool) {
	st, ok := w.state[c.Hash]
	switch {
	case !ok:
		st = &walkState{}
		w.state[c.Hash] = st
	case st.hidden || !hidden:
		return
	}

	if st.queued && !st.hidden {
		w.visible--
	}
	st.hidden = st.hidden || hidden
	if !st.hidden {
		w.visible++
	}
	if !st.queued {
		st.queued = true
		w.queue.Push(c)
	}
}

// next yields queued commits with whether they are hidden. A commit that
// turns hidden after it was yielded is queued again so the mark reaches its
// parents.
func (w *commitWalk) next(yield func(*object.Commit, bool) bool) {
	for w.visible > 0 {
		v, ok := w.queue.Pop()
		if !ok {
			return
		}
		c := v.(*object.Commit)
		st := w.state[c.Hash]
		st.queued = false
		if !st.hidden {
			w.visible--
		}
		if !yield(c, st.hidden) {
			return
		}
	}
}

// MergeBase returns the newest common ancestor of a and b, or nil.
func (r *GitRepository) MergeBase(a, b *Commit) (*Commit, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	ca, err := r.commitObject(a.Sha)
	if err != nil {
		return nil, err
	}
	cb, err := r.commitObject(b.Sha)
	if err != nil {
		return nil, err
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return nil, fmt.Errorf("merge base of %s and %s: %w", a.ShortSha(), b.ShortSha(), err)
	}
	if len(bases) == 0 {
		return nil, nil
	}
	sort.Slice(bases, func(i, j int) bool {
		return bases[i].Committer.When.After(bases[j].Committer.When)
	})
	return newCommit(bases[0]), nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A
// commit is its own ancestor.
func (r *GitRepository) IsAncestor(ancestor, descendant *Commit) (bool, error) {
	if ancestor == nil || descendant == nil {
		return false, nil
	}
	if ancestor.Sha == descendant.Sha {
		return true, nil
	}
	ca, err := r.commitObject(ancestor.Sha)
	if err != nil {
		return false, err
	}
	cd, err := r.commitObject(descendant.Sha)
	if err != nil {
		return false, err
	}
	return ca.IsAncestor(cd)
}

// UncommittedChanges counts modified, added, deleted and untracked paths.
func (r *GitRepository) UncommittedChanges() (int, error) {
	workTree, err := r.repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := workTree.Status()
	if err != nil {
		return 0, fmt.Errorf("getting git status: %w", err)
	}

	count := 0
	for _, s := range status {
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			count++
		}
	}
	return count, nil
}
