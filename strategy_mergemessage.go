package nextver

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// mergeMessageFormats recognise the merge commit messages written by git
// and common hosting services. Each captures the merged branch as
// SourceBranch.
var mergeMessageFormats = []*regexp.Regexp{
	regexp.MustCompile(`^Merge (?:branch|tag) '(?P<SourceBranch>[^']*)'(?: into (?P<TargetBranch>[^\s]*))?`),
	regexp.MustCompile(`^Merge pull request #(?P<PullRequestNumber>\d+) (?:from|in) (?:[^\s/]+/)?(?P<SourceBranch>[^\s]*)(?: into (?P<TargetBranch>[^\s]*))?`),
	regexp.MustCompile(`^Merge remote-tracking branch '(?:[^\s/]+/)?(?P<SourceBranch>[^\s']*)'(?: into (?P<TargetBranch>[^\s]*))?`),
	regexp.MustCompile(`^Merged in (?P<SourceBranch>[^\s]*)(?: \(pull request #(?P<PullRequestNumber>\d+)\))?`),
	regexp.MustCompile(`^Finish (?P<SourceBranch>[^\s]*)(?: into (?P<TargetBranch>[^\s]*))?`),
	regexp.MustCompile(`^Merge (?P<SourceBranch>[^\s]*) into (?P<TargetBranch>[^\s]*)`),
}

// MergeMessage is the parsed form of a merge commit message.
type MergeMessage struct {
	Format       string
	MergedBranch string
	TargetBranch string
}

// ParseMergeMessage extracts the merged branch from a merge commit message.
func ParseMergeMessage(message string) (MergeMessage, bool) {
	line := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	for _, re := range mergeMessageFormats {
		match := re.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		mm := MergeMessage{Format: re.String()}
		for i, name := range re.SubexpNames() {
			switch name {
			case "SourceBranch":
				mm.MergedBranch = strings.TrimPrefix(match[i], "origin/")
			case "TargetBranch":
				mm.TargetBranch = match[i]
			}
		}
		if mm.MergedBranch == "" {
			continue
		}
		return mm, true
	}
	return MergeMessage{}, false
}

// MergeMessageStrategy proposes versions named by release branches that
// were merged into the current history.
type MergeMessageStrategy struct {
	ctx *Context
}

func (s *MergeMessageStrategy) Name() string { return string(StrategyMergeMessage) }

func (s *MergeMessageStrategy) BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error] {
	return func(yield func(BaseVersion, error) bool) {
		repo := s.ctx.Store.Repository()
		for commit, err := range repo.CommitLog(nil, s.ctx.CurrentCommit) {
			if err != nil {
				yield(BaseVersion{}, err)
				return
			}
			if !commit.IsMerge() {
				continue
			}
			mm, ok := ParseMergeMessage(commit.Message)
			if !ok {
				continue
			}

			rule, err := s.ctx.Configuration.BranchRule(mm.MergedBranch)
			if err != nil {
				yield(BaseVersion{}, err)
				return
			}
			if rule.Configuration.IsReleaseBranch == nil || !*rule.Configuration.IsReleaseBranch {
				continue
			}

			version, _, ok := versionInBranchName(mm.MergedBranch, cfg.Value.TagPrefix)
			if !ok {
				continue
			}

			base := BaseVersion{
				Source:            fmt.Sprintf("Merge message '%s'", strings.TrimSpace(strings.SplitN(commit.Message, "\n", 2)[0])),
				ShouldIncrement:   !cfg.Value.PreventIncrementOfMergedBranch,
				SemanticVersion:   version,
				BaseVersionSource: commit,
			}
			if !yield(base, nil) {
				return
			}
		}
	}
}
