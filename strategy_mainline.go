package nextver

import (
	"fmt"
	"iter"
	"slices"
)

// MainlineStrategy treats every merge on the branch's first-parent history
// as an implicit release. Starting from the newest reachable tag, each merge
// bumps the version once, and direct commits after the last merge bump it
// once more.
type MainlineStrategy struct {
	ctx *Context
}

func (s *MainlineStrategy) Name() string { return string(StrategyMainline) }

func (s *MainlineStrategy) BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error] {
	return func(yield func(BaseVersion, error) bool) {
		if s.ctx.CurrentCommit == nil {
			return
		}

		version, source, err := s.startingPoint(cfg)
		if err != nil {
			yield(BaseVersion{}, err)
			return
		}

		chain, err := s.firstParentChain(source)
		if err != nil {
			yield(BaseVersion{}, err)
			return
		}
		if len(chain) == 0 {
			return
		}

		finder := NewIncrementStrategyFinder(s.ctx)
		var direct []*Commit
		from := source
		emit := func(v SemanticVersion, label string) bool {
			return yield(BaseVersion{
				Source:            label,
				SemanticVersion:   v,
				BaseVersionSource: source,
			}, nil)
		}

		for i, commit := range chain {
			if !commit.IsMerge() {
				direct = append(direct, commit)
				continue
			}

			var parent *Commit
			if i > 0 {
				parent = chain[i-1]
			} else if source != nil {
				parent = source
			}
			field, err := s.field(finder, parent, commit, cfg.Value)
			if err != nil {
				yield(BaseVersion{}, err)
				return
			}
			version = version.Increment(field, "", true)
			direct = nil
			from = commit
			if !emit(version, fmt.Sprintf("Mainline merge %s", commit.ShortSha())) {
				return
			}
		}

		if len(direct) == 0 {
			return
		}
		field, err := s.field(finder, from, direct[len(direct)-1], cfg.Value)
		if err != nil {
			yield(BaseVersion{}, err)
			return
		}
		version = version.Increment(field, "", true)
		emit(version, fmt.Sprintf("Mainline commits up to %s", direct[len(direct)-1].ShortSha()))
	}
}

// startingPoint returns the newest tagged version reachable from the
// current commit, or the empty version with no source.
func (s *MainlineStrategy) startingPoint(cfg EffectiveBranchConfiguration) (SemanticVersion, *Commit, error) {
	current := s.ctx.CurrentBranch
	tagged, err := s.ctx.Store.TaggedVersionsOnBranch(current, cfg.Value.TagPrefix, cfg.Value.SemanticVersionFormat)
	if err != nil {
		return SemanticVersion{}, nil, err
	}
	for _, t := range tagged {
		if s.ctx.Configuration.Ignore.ExcludesCommit(t.Commit) {
			continue
		}
		return t.Version, t.Commit, nil
	}
	return EmptyVersion, nil, nil
}

// firstParentChain returns the first-parent history from the current commit
// back to, but excluding, source. The result is oldest first.
func (s *MainlineStrategy) firstParentChain(source *Commit) ([]*Commit, error) {
	repo := s.ctx.Store.Repository()
	var chain []*Commit
	for commit := s.ctx.CurrentCommit; commit != nil; {
		if source != nil {
			if commit.Sha == source.Sha {
				break
			}
			reached, err := repo.IsAncestor(commit, source)
			if err != nil {
				return nil, err
			}
			if reached {
				break
			}
		}
		chain = append(chain, commit)
		if len(commit.Parents) == 0 {
			break
		}
		parent, err := repo.Commit(commit.Parents[0])
		if err != nil {
			return nil, err
		}
		commit = parent
	}
	slices.Reverse(chain)
	return chain, nil
}

func (s *MainlineStrategy) field(finder *IncrementStrategyFinder, from, to *Commit, cfg EffectiveConfiguration) (VersionField, error) {
	field, found, err := finder.FieldFromCommits(from, to, cfg)
	if err != nil {
		return VersionFieldNone, err
	}
	if found {
		return field, nil
	}
	return cfg.Increment.VersionField(), nil
}
