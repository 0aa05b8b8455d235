package nextver

import (
	"fmt"
	"iter"
)

// TaggedCommitStrategy proposes every version tag reachable from the branch.
// Tags on the current commit are taken as-is; older tags are incremented.
type TaggedCommitStrategy struct {
	ctx *Context
}

func (s *TaggedCommitStrategy) Name() string { return string(StrategyTaggedCommit) }

func (s *TaggedCommitStrategy) BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error] {
	return func(yield func(BaseVersion, error) bool) {
		tagged, err := s.ctx.Store.TaggedVersionsOnBranch(cfg.Branch, cfg.Value.TagPrefix, cfg.Value.SemanticVersionFormat)
		if err != nil {
			yield(BaseVersion{}, fmt.Errorf("reading tags on %s: %w", cfg.Branch, err))
			return
		}

		onCurrentBranch := cfg.Branch.Name == s.ctx.CurrentBranch.Name
		seen := map[string]bool{}
		for _, t := range tagged {
			if !onCurrentBranch {
				ok, err := isAncestorOfCurrent(s.ctx, t.Commit)
				if err != nil {
					yield(BaseVersion{}, err)
					return
				}
				if !ok {
					continue
				}
			}
			seen[t.Tag.Name] = true
			if !yield(s.baseVersion(t), nil) {
				return
			}
		}

		if !cfg.Value.TrackMergeTarget {
			return
		}
		targets, err := s.mergeTargetTags(seen)
		if err != nil {
			yield(BaseVersion{}, err)
			return
		}
		for _, t := range targets {
			if !yield(s.baseVersion(t), nil) {
				return
			}
		}
	}
}

func (s *TaggedCommitStrategy) baseVersion(t TaggedSemanticVersion) BaseVersion {
	return BaseVersion{
		Source:            fmt.Sprintf("Git tag '%s'", t.Tag.Name),
		ShouldIncrement:   !s.ctx.IsCurrentCommit(t.Commit),
		SemanticVersion:   t.Version,
		BaseVersionSource: t.Commit,
	}
}

// mergeTargetTags finds tags placed on merge commits, outside the current
// history, that merged a commit of the current branch.
func (s *TaggedCommitStrategy) mergeTargetTags(seen map[string]bool) ([]TaggedSemanticVersion, error) {
	cfg := s.ctx.Configuration
	all, err := s.ctx.Store.TaggedVersions(cfg.TagPrefix, cfg.SemanticVersionFormat)
	if err != nil {
		return nil, err
	}

	repo := s.ctx.Store.Repository()
	var result []TaggedSemanticVersion
	for _, t := range all {
		if seen[t.Tag.Name] || !t.Commit.IsMerge() {
			continue
		}
		if s.ctx.CurrentCommit != nil && t.Commit.When.After(s.ctx.CurrentCommit.When) {
			continue
		}
		for _, parentSha := range t.Commit.Parents[1:] {
			parent, err := repo.Commit(parentSha)
			if err != nil {
				return nil, err
			}
			ok, err := isAncestorOfCurrent(s.ctx, parent)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, t)
				break
			}
		}
	}
	return result, nil
}
