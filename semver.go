// Package nextver calculates semantic versions for Git repositories from
// their tags, merge history and branching configuration.
package nextver

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VersionField identifies the part of a version that an increment touches.
type VersionField int

const (
	VersionFieldNone VersionField = iota
	VersionFieldPatch
	VersionFieldMinor
	VersionFieldMajor
)

func (f VersionField) String() string {
	switch f {
	case VersionFieldPatch:
		return "Patch"
	case VersionFieldMinor:
		return "Minor"
	case VersionFieldMajor:
		return "Major"
	default:
		return "None"
	}
}

// PreReleaseTag is the `-label.N` suffix of a version.
type PreReleaseTag struct {
	Name   string
	Number *int64
}

// HasTag reports whether the tag carries a name or a number.
func (t PreReleaseTag) HasTag() bool {
	return t.Name != "" || t.Number != nil
}

// WithNumber returns a copy of t with the number replaced.
func (t PreReleaseTag) WithNumber(n int64) PreReleaseTag {
	return PreReleaseTag{Name: t.Name, Number: &n}
}

func (t PreReleaseTag) String() string {
	switch {
	case t.Name == "" && t.Number == nil:
		return ""
	case t.Number == nil:
		return t.Name
	case t.Name == "":
		return strconv.FormatInt(*t.Number, 10)
	default:
		return t.Name + "." + strconv.FormatInt(*t.Number, 10)
	}
}

// Compare orders two pre-release tags. A missing tag sorts after any tag.
func (t PreReleaseTag) Compare(other PreReleaseTag) int {
	switch {
	case !t.HasTag() && !other.HasTag():
		return 0
	case !t.HasTag():
		return 1
	case !other.HasTag():
		return -1
	}

	if c := strings.Compare(strings.ToLower(t.Name), strings.ToLower(other.Name)); c != 0 {
		return c
	}

	switch {
	case t.Number == nil && other.Number == nil:
		return 0
	case t.Number == nil:
		return -1
	case other.Number == nil:
		return 1
	case *t.Number < *other.Number:
		return -1
	case *t.Number > *other.Number:
		return 1
	}
	return 0
}

// BuildMetaData is provenance attached to a version. It never takes part in
// comparisons.
type BuildMetaData struct {
	VersionSourceSha          string
	CommitsSinceTag           *int64
	CommitsSinceVersionSource int64
	Branch                    string
	Sha                       string
	ShortSha                  string
	CommitDate                time.Time
	UncommittedChanges        int64
}

// SemanticVersion is an immutable version value. Every transformation returns
// a new value.
type SemanticVersion struct {
	Major         int64
	Minor         int64
	Patch         int64
	PreReleaseTag PreReleaseTag
	BuildMetaData BuildMetaData
}

// EmptyVersion is the 0.0.0 version used when nothing else is known.
var EmptyVersion = SemanticVersion{}

// IsPreRelease reports whether v carries a pre-release tag.
func (v SemanticVersion) IsPreRelease() bool {
	return v.PreReleaseTag.HasTag()
}

// CompareTo orders versions by major, minor and patch and, when
// includePreRelease is set, by pre-release tag where a release sorts after
// any pre-release of the same numbers.
func (v SemanticVersion) CompareTo(other SemanticVersion, includePreRelease bool) int {
	for _, pair := range [][2]int64{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	if !includePreRelease {
		return 0
	}
	return v.PreReleaseTag.Compare(other.PreReleaseTag)
}

// Equal reports whether the versions are identical, ignoring build metadata.
func (v SemanticVersion) Equal(other SemanticVersion) bool {
	return v.CompareTo(other, true) == 0
}

// IsLessThan is a convenience wrapper around CompareTo.
func (v SemanticVersion) IsLessThan(other SemanticVersion, includePreRelease bool) bool {
	return v.CompareTo(other, includePreRelease) < 0
}

// WithPreReleaseTag returns a copy of v with the pre-release tag replaced.
func (v SemanticVersion) WithPreReleaseTag(tag PreReleaseTag) SemanticVersion {
	v.PreReleaseTag = tag
	return v
}

// WithBuildMetaData returns a copy of v with the build metadata replaced.
func (v SemanticVersion) WithBuildMetaData(meta BuildMetaData) SemanticVersion {
	v.BuildMetaData = meta
	return v
}

// Increment bumps the given field and applies label as the pre-release name.
//
// A pre-release version keeps its numbers unless forceIncrement is set; the
// pre-release number is bumped instead when the label is unchanged and reset
// to 1 when the label differs. An empty label always yields a release.
func (v SemanticVersion) Increment(field VersionField, label string, forceIncrement bool) SemanticVersion {
	out := SemanticVersion{
		Major:         v.Major,
		Minor:         v.Minor,
		Patch:         v.Patch,
		BuildMetaData: v.BuildMetaData,
	}

	hasTag := v.PreReleaseTag.HasTag()
	if !hasTag || forceIncrement {
		switch field {
		case VersionFieldMajor:
			out.Major++
			out.Minor = 0
			out.Patch = 0
		case VersionFieldMinor:
			out.Minor++
			out.Patch = 0
		case VersionFieldPatch:
			out.Patch++
		}
	}

	switch {
	case label == "":
		// promoted to a release
	case hasTag && !forceIncrement && strings.EqualFold(v.PreReleaseTag.Name, label):
		out.PreReleaseTag = v.PreReleaseTag.WithNumber(nextPreReleaseNumber(v.PreReleaseTag))
	default:
		out.PreReleaseTag = PreReleaseTag{Name: label}.WithNumber(1)
	}
	return out
}

func nextPreReleaseNumber(tag PreReleaseTag) int64 {
	if tag.Number == nil {
		return 1
	}
	return *tag.Number + 1
}

// IsMatchForBranchSpecificLabel reports whether v may be produced on a branch
// whose label is label. Releases match every label and an unset label
// matches every version. An empty label matches releases only.
func (v SemanticVersion) IsMatchForBranchSpecificLabel(label *string) bool {
	if !v.PreReleaseTag.HasTag() || label == nil {
		return true
	}
	return strings.EqualFold(v.PreReleaseTag.Name, *label)
}

// SemVer renders major.minor.patch plus the pre-release tag.
func (v SemanticVersion) SemVer() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreReleaseTag.HasTag() {
		s += "-" + v.PreReleaseTag.String()
	}
	return s
}

// FullSemVer appends the commit count as build metadata.
func (v SemanticVersion) FullSemVer() string {
	if v.BuildMetaData.CommitsSinceVersionSource == 0 {
		return v.SemVer()
	}
	return fmt.Sprintf("%s+%d", v.SemVer(), v.BuildMetaData.CommitsSinceVersionSource)
}

// InformationalVersion adds branch and commit provenance to the version.
func (v SemanticVersion) InformationalVersion() string {
	parts := []string{strconv.FormatInt(v.BuildMetaData.CommitsSinceVersionSource, 10)}
	if v.BuildMetaData.Branch != "" {
		parts = append(parts, "Branch."+escapeBranchName(v.BuildMetaData.Branch))
	}
	if v.BuildMetaData.Sha != "" {
		parts = append(parts, "Sha."+v.BuildMetaData.Sha)
	}
	return v.SemVer() + "+" + strings.Join(parts, ".")
}

func (v SemanticVersion) String() string {
	return v.SemVer()
}
