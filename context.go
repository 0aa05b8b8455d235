package nextver

import (
	"fmt"

	"go.uber.org/zap"
)

// Context is the fixed repository state a calculation runs against.
type Context struct {
	Store         *RepositoryStore
	Configuration *Configuration
	Log           *zap.Logger

	CurrentBranch              Branch
	CurrentCommit              *Commit
	CurrentCommitTaggedVersion *SemanticVersion
	UncommittedChanges         int
}

// NewContext snapshots the repository state described by opts.
func NewContext(opts Options) (*Context, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	cfg := opts.Configuration
	if cfg == nil {
		cfg = DefaultConfiguration()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	branch, err := opts.Repository.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("determining current branch: %w", err)
	}
	commit, err := opts.Repository.CurrentCommit()
	if err != nil {
		return nil, fmt.Errorf("determining current commit: %w", err)
	}
	if commit != nil && (branch.Tip == nil || branch.Tip.Sha != commit.Sha) {
		// Analyzing an older commit of the branch
		branch.Tip = commit
	}

	uncommitted, err := opts.Repository.UncommittedChanges()
	if err != nil {
		return nil, fmt.Errorf("counting uncommitted changes: %w", err)
	}

	ctx := &Context{
		Store:              NewRepositoryStore(opts.Repository, log),
		Configuration:      cfg,
		Log:                log,
		CurrentBranch:      branch,
		CurrentCommit:      commit,
		UncommittedChanges: uncommitted,
	}

	tagged, err := ctx.Store.TaggedVersionsOnCommit(commit, cfg.TagPrefix, cfg.SemanticVersionFormat)
	if err != nil {
		return nil, fmt.Errorf("reading tags on current commit: %w", err)
	}
	if len(tagged) > 0 {
		v := tagged[0].Version
		ctx.CurrentCommitTaggedVersion = &v
	}
	return ctx, nil
}

// IsCurrentCommitTagged reports whether a version tag points at the current
// commit.
func (c *Context) IsCurrentCommitTagged() bool {
	return c.CurrentCommitTaggedVersion != nil
}

// IsCurrentCommit reports whether commit is the commit being versioned.
func (c *Context) IsCurrentCommit(commit *Commit) bool {
	return commit != nil && c.CurrentCommit != nil && commit.Sha == c.CurrentCommit.Sha
}
