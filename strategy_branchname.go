package nextver

import (
	"iter"

	"go.uber.org/zap"
)

// VersionInBranchNameStrategy proposes the version embedded in a release
// branch name, e.g. release/2.0.0.
type VersionInBranchNameStrategy struct {
	ctx *Context
}

func (s *VersionInBranchNameStrategy) Name() string { return string(StrategyVersionInBranchName) }

func (s *VersionInBranchNameStrategy) BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error] {
	return func(yield func(BaseVersion, error) bool) {
		if !cfg.Value.IsReleaseBranch {
			return
		}

		name := cfg.Branch.Friendly()
		version, remainder, ok := versionInBranchName(name, cfg.Value.TagPrefix)
		if !ok {
			s.ctx.Log.Debug("no version in branch name", zap.String("branch", name))
			return
		}

		source, err := s.ctx.Store.BranchPoint(cfg.Branch, s.ctx.Configuration)
		if err != nil {
			yield(BaseVersion{}, err)
			return
		}

		base := BaseVersion{
			Source:            "Version in branch name",
			SemanticVersion:   version,
			BaseVersionSource: source,
		}
		// The remainder only names the branch being versioned, not an
		// ancestor it inherits from.
		if cfg.Branch.Name == s.ctx.CurrentBranch.Name {
			base.BranchNameOverride = remainder
		}
		yield(base, nil)
	}
}
