package nextver

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"
)

// TaggedSemanticVersion is a tag that parses as a version.
type TaggedSemanticVersion struct {
	Tag     Tag
	Commit  *Commit
	Version SemanticVersion
}

// SourceBranch is a candidate parent of a branch and the commit the branch
// diverged from it at.
type SourceBranch struct {
	Branch    Branch
	MergeBase *Commit
}

// RepositoryStore answers the engine's history queries over a Repository.
// Tag lookups are cached for the lifetime of the store, which is one
// calculation over one repository snapshot.
type RepositoryStore struct {
	repo Repository
	log  *zap.Logger

	branches       []Branch
	tagged         map[string][]TaggedSemanticVersion
	taggedOnBranch map[string][]TaggedSemanticVersion
}

// NewRepositoryStore wraps repo.
func NewRepositoryStore(repo Repository, log *zap.Logger) *RepositoryStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RepositoryStore{
		repo:           repo,
		log:            log,
		tagged:         map[string][]TaggedSemanticVersion{},
		taggedOnBranch: map[string][]TaggedSemanticVersion{},
	}
}

// Repository returns the underlying repository.
func (s *RepositoryStore) Repository() Repository {
	return s.repo
}

// Branches returns the repository branches, loaded once.
func (s *RepositoryStore) Branches() ([]Branch, error) {
	if s.branches != nil {
		return s.branches, nil
	}
	branches, err := s.repo.Branches()
	if err != nil {
		return nil, err
	}
	if branches == nil {
		branches = []Branch{}
	}
	s.branches = branches
	return branches, nil
}

func taggedKey(prefix string, format SemanticVersionFormat) string {
	return prefix + "\x00" + format.String()
}

// TaggedVersions returns every tag that parses with prefix and format,
// newest tagged commit first.
func (s *RepositoryStore) TaggedVersions(prefix string, format SemanticVersionFormat) ([]TaggedSemanticVersion, error) {
	key := taggedKey(prefix, format)
	if cached, ok := s.tagged[key]; ok {
		return cached, nil
	}

	tags, err := s.repo.Tags()
	if err != nil {
		return nil, err
	}

	commits := map[string]*Commit{}
	result := []TaggedSemanticVersion{}
	for _, tag := range tags {
		version, ok := TryParseVersion(tag.Name, prefix, format)
		if !ok {
			continue
		}
		commit, ok := commits[tag.TargetSha]
		if !ok {
			commit, err = s.repo.Commit(tag.TargetSha)
			if err != nil {
				return nil, fmt.Errorf("resolving tag %s: %w", tag.Name, err)
			}
			commits[tag.TargetSha] = commit
		}
		result = append(result, TaggedSemanticVersion{Tag: tag, Commit: commit, Version: version})
	}

	sortTaggedVersions(result)
	s.tagged[key] = result
	return result, nil
}

func sortTaggedVersions(tagged []TaggedSemanticVersion) {
	sort.SliceStable(tagged, func(i, j int) bool {
		a, b := tagged[i], tagged[j]
		if !a.Commit.When.Equal(b.Commit.When) {
			return a.Commit.When.After(b.Commit.When)
		}
		return a.Version.CompareTo(b.Version, true) > 0
	})
}

// TaggedVersionsOnBranch returns the tagged versions reachable from the
// branch tip, newest tagged commit first.
func (s *RepositoryStore) TaggedVersionsOnBranch(branch Branch, prefix string, format SemanticVersionFormat) ([]TaggedSemanticVersion, error) {
	if branch.Tip == nil {
		return nil, nil
	}
	key := branch.Name + "\x00" + branch.Tip.Sha + "\x00" + taggedKey(prefix, format)
	if cached, ok := s.taggedOnBranch[key]; ok {
		return cached, nil
	}

	all, err := s.TaggedVersions(prefix, format)
	if err != nil {
		return nil, err
	}

	reachable := map[string]bool{}
	result := []TaggedSemanticVersion{}
	for _, tagged := range all {
		ok, seen := reachable[tagged.Commit.Sha]
		if !seen {
			ok, err = s.repo.IsAncestor(tagged.Commit, branch.Tip)
			if err != nil {
				return nil, err
			}
			reachable[tagged.Commit.Sha] = ok
		}
		if ok {
			result = append(result, tagged)
		}
	}

	s.log.Debug("tagged versions on branch",
		zap.String("branch", branch.Friendly()),
		zap.Int("count", len(result)))
	s.taggedOnBranch[key] = result
	return result, nil
}

// TaggedVersionsOnCommit returns the tagged versions placed on commit,
// highest version first.
func (s *RepositoryStore) TaggedVersionsOnCommit(commit *Commit, prefix string, format SemanticVersionFormat) ([]TaggedSemanticVersion, error) {
	if commit == nil {
		return nil, nil
	}
	all, err := s.TaggedVersions(prefix, format)
	if err != nil {
		return nil, err
	}

	var result []TaggedSemanticVersion
	for _, tagged := range all {
		if tagged.Commit.Sha == commit.Sha {
			result = append(result, tagged)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Version.CompareTo(result[j].Version, true) > 0
	})
	return result, nil
}

// SourceBranches returns the nearest branches branch could have been created
// from, restricted to the rule's source-branches and skipping excluded
// branch names. All branches sharing the newest merge base are returned.
func (s *RepositoryStore) SourceBranches(branch Branch, cfg *Configuration, excluded map[string]bool) ([]SourceBranch, error) {
	if branch.Tip == nil {
		return nil, nil
	}
	rule, err := cfg.BranchRule(branch.Friendly())
	if err != nil {
		return nil, err
	}
	allowed := rule.Configuration.SourceBranches
	if len(allowed) == 0 {
		return nil, nil
	}

	branches, err := s.Branches()
	if err != nil {
		return nil, err
	}

	local := map[string]bool{}
	for _, b := range branches {
		if !b.IsRemote {
			local[b.Friendly()] = true
		}
	}

	var candidates []SourceBranch
	for _, b := range branches {
		friendly := b.Friendly()
		if friendly == branch.Friendly() || excluded[friendly] || b.Tip == nil {
			continue
		}
		if b.IsRemote && (local[friendly] || friendly == "HEAD") {
			continue
		}

		sourceRule, err := cfg.BranchRule(friendly)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(allowed, sourceRule.Name) {
			continue
		}

		base, err := s.repo.MergeBase(branch.Tip, b.Tip)
		if err != nil {
			return nil, err
		}
		if base == nil {
			continue
		}
		candidates = append(candidates, SourceBranch{Branch: b, MergeBase: base})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	nearest := candidates[0].MergeBase
	for _, c := range candidates[1:] {
		if c.MergeBase.When.After(nearest.When) {
			nearest = c.MergeBase
		}
	}

	var result []SourceBranch
	for _, c := range candidates {
		if c.MergeBase.Sha == nearest.Sha {
			result = append(result, c)
		}
	}
	return result, nil
}

// BranchPoint returns the commit branch diverged from its nearest source
// branch at, or nil when it has none.
func (s *RepositoryStore) BranchPoint(branch Branch, cfg *Configuration) (*Commit, error) {
	sources, err := s.SourceBranches(branch, cfg, nil)
	if err != nil || len(sources) == 0 {
		return nil, err
	}
	return sources[0].MergeBase, nil
}
