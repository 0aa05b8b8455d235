package nextver

import (
	"go.uber.org/zap"
)

// VersionModeCalculator turns the selected candidate into the final version
// for a deployment mode.
type VersionModeCalculator interface {
	Calculate(next NextVersion) (SemanticVersion, error)
}

// NewVersionModeCalculator returns the calculator for mode.
func NewVersionModeCalculator(ctx *Context, mode DeploymentMode) VersionModeCalculator {
	base := versionModeBase{ctx: ctx}
	switch mode {
	case ContinuousDelivery:
		return &ContinuousDeliveryCalculator{base}
	case ContinuousDeployment:
		return &ContinuousDeploymentCalculator{base}
	default:
		return &ManualDeploymentCalculator{base}
	}
}

type versionModeBase struct {
	ctx *Context
}

// shouldTakeIncrementedVersion is false only when the current commit carries
// the tag the base version was read from.
func (b versionModeBase) shouldTakeIncrementedVersion(next NextVersion) bool {
	source := next.BaseVersion.BaseVersionSource
	return !b.ctx.IsCurrentCommit(source) ||
		b.ctx.CurrentCommitTaggedVersion == nil ||
		!next.BaseVersion.SemanticVersion.Equal(*b.ctx.CurrentCommitTaggedVersion)
}

// calculateIncrementedVersion attaches build metadata to the incremented
// version. A later release tagged on the configuration's branch, not newer
// than the current commit and not ignored, raises the version numbers to
// that release.
func (b versionModeBase) calculateIncrementedVersion(next NextVersion) (SemanticVersion, error) {
	cfg := b.ctx.Configuration
	tagged, err := b.ctx.Store.TaggedVersionsOnBranch(next.BranchConfiguration.Branch, cfg.TagPrefix, cfg.SemanticVersionFormat)
	if err != nil {
		return SemanticVersion{}, err
	}

	meta, err := b.buildMetaData(next.BaseVersion.BaseVersionSource)
	if err != nil {
		return SemanticVersion{}, err
	}

	for _, t := range tagged {
		if cfg.Ignore.ExcludesCommit(t.Commit) {
			continue
		}
		if b.ctx.CurrentCommit != nil && t.Commit.When.After(b.ctx.CurrentCommit.When) {
			continue
		}
		if t.Version.CompareTo(next.IncrementedVersion, false) > 0 {
			b.ctx.Log.Info("tag on branch is ahead of the incremented version",
				zap.String("tag", t.Tag.Name),
				zap.String("incremented", next.IncrementedVersion.SemVer()))
			return t.Version.
				WithPreReleaseTag(next.IncrementedVersion.PreReleaseTag).
				WithBuildMetaData(meta), nil
		}
		break
	}
	return next.IncrementedVersion.WithBuildMetaData(meta), nil
}

// baseVersionWithMetaData returns the base version as-is with fresh build
// metadata.
func (b versionModeBase) baseVersionWithMetaData(next NextVersion) (SemanticVersion, error) {
	meta, err := b.buildMetaData(next.BaseVersion.BaseVersionSource)
	if err != nil {
		return SemanticVersion{}, err
	}
	return next.BaseVersion.SemanticVersion.WithBuildMetaData(meta), nil
}

// buildMetaData counts the commits since source, skipping ignored commits.
func (b versionModeBase) buildMetaData(source *Commit) (BuildMetaData, error) {
	var count int64
	current := b.ctx.CurrentCommit
	if current != nil {
		log := b.ctx.Configuration.Ignore.FilterCommits(b.ctx.Store.Repository().CommitLog(source, current))
		for _, err := range log {
			if err != nil {
				return BuildMetaData{}, err
			}
			count++
		}
		b.ctx.Log.Info("commits since version source",
			zap.Int64("count", count),
			zap.Stringer("source", source),
			zap.Stringer("current", current))
	}

	meta := BuildMetaData{
		CommitsSinceTag:           &count,
		CommitsSinceVersionSource: count,
		Branch:                    b.ctx.CurrentBranch.Friendly(),
		UncommittedChanges:        int64(b.ctx.UncommittedChanges),
	}
	if source != nil {
		meta.VersionSourceSha = source.Sha
	}
	if current != nil {
		meta.Sha = current.Sha
		meta.ShortSha = current.ShortSha()
		meta.CommitDate = current.When
	}
	return meta, nil
}

// ManualDeploymentCalculator keeps the incremented version and attaches
// build metadata.
type ManualDeploymentCalculator struct {
	versionModeBase
}

func (c *ManualDeploymentCalculator) Calculate(next NextVersion) (SemanticVersion, error) {
	c.ctx.Log.Debug("using manual deployment to calculate the incremented version")
	meta, err := c.buildMetaData(next.BaseVersion.BaseVersionSource)
	if err != nil {
		return SemanticVersion{}, err
	}
	return next.IncrementedVersion.WithBuildMetaData(meta), nil
}

// ContinuousDeliveryCalculator folds the commit count into the pre-release
// number, so every commit gets a distinct pre-release.
type ContinuousDeliveryCalculator struct {
	versionModeBase
}

func (c *ContinuousDeliveryCalculator) Calculate(next NextVersion) (SemanticVersion, error) {
	c.ctx.Log.Debug("using continuous delivery to calculate the incremented version")
	tag := next.IncrementedVersion.PreReleaseTag
	if !tag.HasTag() || tag.Number == nil {
		return SemanticVersion{}, ErrPreReleaseRequired
	}

	if !c.shouldTakeIncrementedVersion(next) {
		return c.baseVersionWithMetaData(next)
	}

	v, err := c.calculateIncrementedVersion(next)
	if err != nil {
		return SemanticVersion{}, err
	}
	if v.PreReleaseTag.Number == nil || v.BuildMetaData.CommitsSinceTag == nil {
		return SemanticVersion{}, &CalculationError{Message: "continuous delivery produced a version without a pre-release number or commit count"}
	}

	since := *v.BuildMetaData.CommitsSinceTag
	v.PreReleaseTag = v.PreReleaseTag.WithNumber(*v.PreReleaseTag.Number + since - 1)
	v.BuildMetaData.CommitsSinceVersionSource = since
	v.BuildMetaData.CommitsSinceTag = nil
	return v, nil
}

// ContinuousDeploymentCalculator releases every commit: the pre-release tag
// is dropped and the commit count is kept as build metadata.
type ContinuousDeploymentCalculator struct {
	versionModeBase
}

func (c *ContinuousDeploymentCalculator) Calculate(next NextVersion) (SemanticVersion, error) {
	c.ctx.Log.Debug("using continuous deployment to calculate the incremented version")
	if !c.shouldTakeIncrementedVersion(next) {
		return c.baseVersionWithMetaData(next)
	}

	v, err := c.calculateIncrementedVersion(next)
	if err != nil {
		return SemanticVersion{}, err
	}

	var since int64
	if v.BuildMetaData.CommitsSinceTag != nil {
		since = *v.BuildMetaData.CommitsSinceTag
	}
	v.PreReleaseTag = PreReleaseTag{}
	v.BuildMetaData.CommitsSinceVersionSource = since
	v.BuildMetaData.CommitsSinceTag = nil
	return v, nil
}
