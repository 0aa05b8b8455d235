package nextver

import (
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Commit is the engine's view of a commit.
type Commit struct {
	Sha     string
	When    time.Time
	Message string
	Parents []string
}

// ShortSha returns the first seven characters of the sha.
func (c *Commit) ShortSha() string {
	if len(c.Sha) < 7 {
		return c.Sha
	}
	return c.Sha[:7]
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

func (c *Commit) String() string {
	if c == nil {
		return "-"
	}
	return c.ShortSha() + " " + c.When.UTC().Format(time.RFC3339)
}

// Branch is a named reference to a tip commit.
type Branch struct {
	// Name is the full reference name, e.g. refs/heads/main.
	Name     string
	Tip      *Commit
	IsRemote bool
}

// Friendly returns the branch name without its refs/heads/ or
// refs/remotes/<remote>/ prefix.
func (b Branch) Friendly() string {
	switch {
	case strings.HasPrefix(b.Name, "refs/heads/"):
		return strings.TrimPrefix(b.Name, "refs/heads/")
	case strings.HasPrefix(b.Name, "refs/remotes/"):
		rest := strings.TrimPrefix(b.Name, "refs/remotes/")
		if i := strings.Index(rest, "/"); i >= 0 {
			return rest[i+1:]
		}
		return rest
	default:
		return b.Name
	}
}

func (b Branch) String() string {
	return b.Friendly()
}

// Tag is a tag name pointing at a commit.
type Tag struct {
	Name      string
	TargetSha string
}

// Repository is the minimal history query surface the engine needs.
type Repository interface {
	Branches() ([]Branch, error)
	Tags() ([]Tag, error)
	CurrentBranch() (Branch, error)
	// CurrentCommit returns nil when the branch has no commits.
	CurrentCommit() (*Commit, error)
	Commit(sha string) (*Commit, error)
	// CommitLog yields commits reachable from to but not from from, newest
	// first. A nil from walks back to the root.
	CommitLog(from, to *Commit) iter.Seq2[*Commit, error]
	MergeBase(a, b *Commit) (*Commit, error)
	IsAncestor(ancestor, descendant *Commit) (bool, error)
	UncommittedChanges() (int, error)
}

// Options configures version calculation behavior
type Options struct {
	// Repository is the repository to analyze
	Repository Repository

	// Configuration is the branching configuration, DefaultConfiguration()
	// when nil
	Configuration *Configuration

	// Logger receives progress output, a no-op logger when nil
	Logger *zap.Logger
}

// Result is the outcome of a version calculation.
type Result struct {
	Version             SemanticVersion
	BaseVersion         BaseVersion
	BranchConfiguration EffectiveBranchConfiguration
}
