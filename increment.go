package nextver

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// IncrementStrategyFinder decides which version field a base version bumps.
type IncrementStrategyFinder struct {
	ctx *Context
}

// NewIncrementStrategyFinder creates a finder over ctx.
func NewIncrementStrategyFinder(ctx *Context) *IncrementStrategyFinder {
	return &IncrementStrategyFinder{ctx: ctx}
}

type bumpMessages struct {
	major, minor, patch, none *regexp.Regexp
}

func compileBumpMessages(cfg EffectiveConfiguration) (bumpMessages, error) {
	var b bumpMessages
	for _, m := range []struct {
		name    string
		pattern string
		out     **regexp.Regexp
	}{
		{"major-version-bump-message", cfg.MajorVersionBumpMessage, &b.major},
		{"minor-version-bump-message", cfg.MinorVersionBumpMessage, &b.minor},
		{"patch-version-bump-message", cfg.PatchVersionBumpMessage, &b.patch},
		{"no-bump-message", cfg.NoBumpMessage, &b.none},
	} {
		re, err := compileOptional(m.pattern)
		if err != nil {
			return b, fmt.Errorf("%s: %w", m.name, err)
		}
		*m.out = re
	}
	return b, nil
}

// match returns the field a commit message asks for. Bigger bumps win when
// a message carries several directives.
func (b bumpMessages) match(message string) (VersionField, bool) {
	switch {
	case b.major != nil && b.major.MatchString(message):
		return VersionFieldMajor, true
	case b.minor != nil && b.minor.MatchString(message):
		return VersionFieldMinor, true
	case b.patch != nil && b.patch.MatchString(message):
		return VersionFieldPatch, true
	case b.none != nil && b.none.MatchString(message):
		return VersionFieldNone, true
	}
	return VersionFieldNone, false
}

// DetermineIncrementedField returns the field to bump for base. A base that
// should not be incremented yields None. Otherwise the newest commit since
// the base version source carrying a bump directive decides, falling back
// to the configured increment.
func (f *IncrementStrategyFinder) DetermineIncrementedField(base BaseVersion, cfg EffectiveConfiguration) (VersionField, error) {
	if !base.ShouldIncrement {
		return VersionFieldNone, nil
	}

	field, found, err := f.FieldFromCommits(base.BaseVersionSource, f.ctx.CurrentCommit, cfg)
	if err != nil {
		return VersionFieldNone, err
	}
	if found {
		return field, nil
	}
	return cfg.Increment.VersionField(), nil
}

// FieldFromCommits scans the commits reachable from to but not from from,
// newest first, for a bump directive. found is false when none is present
// or commit message incrementing is disabled.
func (f *IncrementStrategyFinder) FieldFromCommits(from, to *Commit, cfg EffectiveConfiguration) (field VersionField, found bool, err error) {
	if cfg.CommitMessageIncrementing == CommitMessageIncrementDisabled || to == nil {
		return VersionFieldNone, false, nil
	}

	bumps, err := compileBumpMessages(cfg)
	if err != nil {
		return VersionFieldNone, false, err
	}

	log := cfg.Ignore.FilterCommits(f.ctx.Store.Repository().CommitLog(from, to))
	for commit, err := range log {
		if err != nil {
			return VersionFieldNone, false, err
		}
		if cfg.CommitMessageIncrementing == CommitMessageIncrementMergeMessageOnly && !commit.IsMerge() {
			continue
		}
		if field, ok := bumps.match(commit.Message); ok {
			f.ctx.Log.Debug("bump directive found",
				zap.String("commit", commit.ShortSha()),
				zap.Stringer("field", field))
			return field, true, nil
		}
	}
	return VersionFieldNone, false, nil
}
