package nextver

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// NextVersion is a base version, the version it increments to, and the
// configuration that produced it.
type NextVersion struct {
	IncrementedVersion  SemanticVersion
	BaseVersion         BaseVersion
	BranchConfiguration EffectiveBranchConfiguration
}

// Compare orders next versions by their incremented version.
func (n NextVersion) Compare(other NextVersion) int {
	return n.IncrementedVersion.CompareTo(other.IncrementedVersion, true)
}

func (n NextVersion) String() string {
	return fmt.Sprintf("%s from %s", n.IncrementedVersion.SemVer(), n.BaseVersion)
}

// NextVersionCalculator runs every strategy against every effective branch
// configuration and selects the winning candidate.
type NextVersionCalculator struct {
	ctx        *Context
	strategies []VersionStrategy
	branches   *BranchConfigurationFinder
	increments *IncrementStrategyFinder
}

// NewNextVersionCalculator creates a calculator using the strategies the
// configuration enables.
func NewNextVersionCalculator(ctx *Context) (*NextVersionCalculator, error) {
	strategies, err := NewVersionStrategies(ctx)
	if err != nil {
		return nil, err
	}
	return &NextVersionCalculator{
		ctx:        ctx,
		strategies: strategies,
		branches:   NewBranchConfigurationFinder(ctx),
		increments: NewIncrementStrategyFinder(ctx),
	}, nil
}

// FindVersion returns the final version, after the deployment mode of the
// winning configuration has been applied.
func (c *NextVersionCalculator) FindVersion() (NextVersion, error) {
	c.ctx.Log.Info("running against branch",
		zap.String("branch", c.ctx.CurrentBranch.Friendly()),
		zap.Stringer("commit", c.ctx.CurrentCommit))
	if c.ctx.IsCurrentCommitTagged() {
		c.ctx.Log.Info("current commit is tagged, version calculation is for metadata only",
			zap.Stringer("version", c.ctx.CurrentCommitTaggedVersion))
	}

	next, err := c.CalculateNextVersion()
	if err != nil {
		return NextVersion{}, err
	}

	calculator := NewVersionModeCalculator(c.ctx, next.BranchConfiguration.Value.DeploymentMode)
	version, err := calculator.Calculate(next)
	if err != nil {
		return NextVersion{}, err
	}
	next.IncrementedVersion = version
	return next, nil
}

// CalculateNextVersion collects every candidate and selects one, before any
// deployment mode is applied.
func (c *NextVersionCalculator) CalculateNextVersion() (NextVersion, error) {
	candidates, err := c.NextVersions()
	if err != nil {
		return NextVersion{}, err
	}
	winner, err := SelectNextVersion(candidates)
	if err != nil {
		return NextVersion{}, err
	}
	c.ctx.Log.Info("base version used", zap.Stringer("base", winner.BaseVersion))
	return winner, nil
}

// NextVersions returns a candidate per base version that passes the ignore
// filters and matches the branch label. A configuration without candidates
// contributes the fallback version.
func (c *NextVersionCalculator) NextVersions() ([]NextVersion, error) {
	branch := c.ctx.CurrentBranch
	if branch.Tip == nil {
		return nil, ErrNoCommits
	}

	configurations, err := c.branches.Configurations(branch)
	if err != nil {
		return nil, err
	}

	filters := c.ctx.Configuration.Ignore.Filters()
	var result []NextVersion
	for _, eff := range configurations {
		c.ctx.Log.Info("calculating base versions", zap.String("branch", eff.Branch.Friendly()))
		found := false
		for _, strategy := range c.strategies {
			for base, err := range strategy.BaseVersions(eff) {
				if err != nil {
					return nil, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
				}
				c.ctx.Log.Info("base version",
					zap.String("strategy", strategy.Name()),
					zap.Stringer("base", base))
				if excluded, reason := excludeBaseVersion(filters, base); excluded {
					c.ctx.Log.Info(reason)
					continue
				}
				next, ok, err := c.tryNextVersion(eff, base)
				if err != nil {
					return nil, err
				}
				if ok {
					result = append(result, next)
					found = true
				}
			}
		}

		if !found {
			fallback := BaseVersion{
				Source:          "Fallback base version",
				ShouldIncrement: true,
				SemanticVersion: EmptyVersion,
			}
			next, ok, err := c.tryNextVersion(eff, fallback)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, next)
			}
		}
	}

	if len(result) == 0 {
		return nil, ErrNoBaseVersions
	}
	return result, nil
}

func (c *NextVersionCalculator) tryNextVersion(eff EffectiveBranchConfiguration, base BaseVersion) (NextVersion, bool, error) {
	label := eff.Value.BranchSpecificLabel(c.ctx.CurrentBranch.Friendly(), base.BranchNameOverride)
	if label != nil && (eff.Value.Label == nil || *label != *eff.Value.Label) {
		c.ctx.Log.Debug("using current branch name to calculate version tag", zap.String("label", *label))
	}

	incremented, err := c.incrementedVersion(eff, base, label)
	if err != nil {
		return NextVersion{}, false, err
	}
	if !incremented.IsMatchForBranchSpecificLabel(label) {
		c.ctx.Log.Debug("candidate does not match branch label",
			zap.String("version", incremented.SemVer()),
			zap.Stringp("label", label))
		return NextVersion{}, false, nil
	}
	return NextVersion{IncrementedVersion: incremented, BaseVersion: base, BranchConfiguration: eff}, true, nil
}

// incrementedVersion applies the branch label to base. A nil label keeps
// whatever pre-release name base already carries.
func (c *NextVersionCalculator) incrementedVersion(eff EffectiveBranchConfiguration, base BaseVersion, label *string) (SemanticVersion, error) {
	name := base.SemanticVersion.PreReleaseTag.Name
	if label != nil {
		name = *label
	}

	if !base.ShouldIncrement {
		v := base.SemanticVersion
		// A released version found behind the current commit is continued
		// as the first pre-release of the branch label.
		if !v.IsPreRelease() && name != "" && !c.ctx.IsCurrentCommit(base.BaseVersionSource) {
			v = v.WithPreReleaseTag(PreReleaseTag{Name: name}.WithNumber(1))
		}
		return v, nil
	}

	field, err := c.increments.DetermineIncrementedField(base, eff.Value)
	if err != nil {
		return SemanticVersion{}, err
	}
	return base.SemanticVersion.Increment(field, name, false), nil
}

// SelectNextVersion picks the winning candidate. When several candidates
// with a source commit increment to the highest version, the one with the
// oldest source wins. Otherwise the highest candidate wins and the source
// of the newest comparable candidate is used for commit counting.
func SelectNextVersion(candidates []NextVersion) (NextVersion, error) {
	if len(candidates) == 0 {
		return NextVersion{}, ErrNoBaseVersions
	}

	maxVersion := candidates[0]
	for _, n := range candidates[1:] {
		if n.Compare(maxVersion) > 0 {
			maxVersion = n
		}
	}

	var matching []NextVersion
	for _, n := range candidates {
		if n.BaseVersion.BaseVersionSource != nil && n.IncrementedVersion.CompareTo(maxVersion.IncrementedVersion, true) == 0 {
			matching = append(matching, n)
		}
	}

	var source *Commit
	if len(matching) > 0 {
		oldest := matching[0]
		for _, n := range matching[1:] {
			oldest = olderSource(oldest, n)
		}
		maxVersion = oldest
		source = oldest.BaseVersion.BaseVersionSource
	} else {
		filtered := candidates
		if !maxVersion.IncrementedVersion.IsPreRelease() {
			filtered = slices.DeleteFunc(slices.Clone(candidates), func(n NextVersion) bool {
				return n.BaseVersion.SemanticVersion.IsPreRelease()
			})
			if len(filtered) == 0 {
				filtered = candidates
			}
		}
		source = latestSource(filtered).BaseVersion.BaseVersionSource
	}

	base := maxVersion.BaseVersion
	base.BaseVersionSource = source
	return NextVersion{
		IncrementedVersion:  maxVersion.IncrementedVersion,
		BaseVersion:         base,
		BranchConfiguration: maxVersion.BranchConfiguration,
	}, nil
}

// olderSource keeps the candidate with the older source commit. A missing
// source always loses.
func olderSource(a, b NextVersion) NextVersion {
	switch {
	case a.BaseVersion.BaseVersionSource == nil:
		return b
	case b.BaseVersion.BaseVersionSource == nil:
		return a
	case a.BaseVersion.BaseVersionSource.When.Before(b.BaseVersion.BaseVersionSource.When):
		return a
	default:
		return b
	}
}

// latestSource orders by incremented version then by source commit date,
// both descending, preferring candidates with a source.
func latestSource(candidates []NextVersion) NextVersion {
	withSource := slices.DeleteFunc(slices.Clone(candidates), func(n NextVersion) bool {
		return n.BaseVersion.BaseVersionSource == nil
	})
	pool := withSource
	if len(pool) == 0 {
		pool = slices.Clone(candidates)
	}
	slices.SortStableFunc(pool, func(a, b NextVersion) int {
		if cmp := b.Compare(a); cmp != 0 {
			return cmp
		}
		if a.BaseVersion.BaseVersionSource == nil || b.BaseVersion.BaseVersionSource == nil {
			return 0
		}
		return b.BaseVersion.BaseVersionSource.When.Compare(a.BaseVersion.BaseVersionSource.When)
	})
	return pool[0]
}
