package nextver

import (
	"fmt"
	"iter"
)

// ConfiguredNextVersionStrategy proposes the next-version set in the
// configuration file. It is skipped on a tagged commit.
type ConfiguredNextVersionStrategy struct {
	ctx *Context
}

func (s *ConfiguredNextVersionStrategy) Name() string { return string(StrategyConfiguredNextVersion) }

func (s *ConfiguredNextVersionStrategy) BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error] {
	return func(yield func(BaseVersion, error) bool) {
		if cfg.Value.NextVersion == "" || s.ctx.IsCurrentCommitTagged() {
			return
		}

		version, err := ParseVersion(cfg.Value.NextVersion, cfg.Value.TagPrefix, FormatLoose)
		if err != nil {
			yield(BaseVersion{}, fmt.Errorf("next-version: %w", err))
			return
		}

		yield(BaseVersion{
			Source:          "NextVersion in configuration file",
			SemanticVersion: version,
		}, nil)
	}
}
