package nextver

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

// VersionFilter excludes base versions from selection.
type VersionFilter interface {
	// Exclude reports whether base must not be used, and why.
	Exclude(base BaseVersion) (bool, string)
}

// MinDateVersionFilter excludes base versions sourced from commits older
// than Before.
type MinDateVersionFilter struct {
	Before time.Time
}

func (f MinDateVersionFilter) Exclude(base BaseVersion) (bool, string) {
	if base.BaseVersionSource == nil || !base.BaseVersionSource.When.Before(f.Before) {
		return false, ""
	}
	return true, fmt.Sprintf("Source %s was ignored due to commit date being outside of configured range", base.BaseVersionSource.ShortSha())
}

// ShaVersionFilter excludes base versions sourced from the listed commits.
// Entries may be abbreviated shas.
type ShaVersionFilter struct {
	Shas []string
}

func (f ShaVersionFilter) Exclude(base BaseVersion) (bool, string) {
	if base.BaseVersionSource == nil || !matchesSha(base.BaseVersionSource.Sha, f.Shas) {
		return false, ""
	}
	return true, fmt.Sprintf("Sha %s was ignored due to commit having been excluded by configuration", base.BaseVersionSource.Sha)
}

func matchesSha(sha string, shas []string) bool {
	for _, s := range shas {
		if s != "" && strings.HasPrefix(sha, s) {
			return true
		}
	}
	return false
}

// Filters returns the version filters the configuration describes.
func (c IgnoreConfiguration) Filters() []VersionFilter {
	var filters []VersionFilter
	if c.Before != nil {
		filters = append(filters, MinDateVersionFilter{Before: *c.Before})
	}
	if len(c.Shas) > 0 {
		filters = append(filters, ShaVersionFilter{Shas: c.Shas})
	}
	return filters
}

// ExcludesCommit reports whether commit is ignored.
func (c IgnoreConfiguration) ExcludesCommit(commit *Commit) bool {
	if commit == nil {
		return false
	}
	if c.Before != nil && commit.When.Before(*c.Before) {
		return true
	}
	return matchesSha(commit.Sha, c.Shas)
}

// FilterCommits drops ignored commits from seq.
func (c IgnoreConfiguration) FilterCommits(seq iter.Seq2[*Commit, error]) iter.Seq2[*Commit, error] {
	if c.IsEmpty() {
		return seq
	}
	return func(yield func(*Commit, error) bool) {
		for commit, err := range seq {
			if err == nil && c.ExcludesCommit(commit) {
				continue
			}
			if !yield(commit, err) {
				return
			}
		}
	}
}

// excludeBaseVersion applies every filter, returning the first reason.
func excludeBaseVersion(filters []VersionFilter, base BaseVersion) (bool, string) {
	for _, f := range filters {
		if excluded, reason := f.Exclude(base); excluded {
			return true, reason
		}
	}
	return false, ""
}
