package nextver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	blang "github.com/blang/semver"
)

// SemanticVersionFormat selects how strictly version strings are parsed.
type SemanticVersionFormat int

const (
	// FormatStrict accepts only full SemVer 2.0 strings.
	FormatStrict SemanticVersionFormat = iota
	// FormatLoose also accepts partial versions such as "1" or "1.2".
	FormatLoose
)

func (f SemanticVersionFormat) String() string {
	if f == FormatLoose {
		return "Loose"
	}
	return "Strict"
}

var preReleaseRe = regexp.MustCompile(`^(?P<name>.*?)\.?(?P<number>\d+)?$`)

// ParseVersion parses input after stripping a leading match of tagPrefix.
func ParseVersion(input, tagPrefix string, format SemanticVersionFormat) (SemanticVersion, error) {
	stripped, err := stripTagPrefix(input, tagPrefix)
	if err != nil {
		return SemanticVersion{}, err
	}

	switch format {
	case FormatLoose:
		return parseLoose(stripped)
	default:
		return parseStrict(stripped)
	}
}

// TryParseVersion is ParseVersion without the error.
func TryParseVersion(input, tagPrefix string, format SemanticVersionFormat) (SemanticVersion, bool) {
	v, err := ParseVersion(input, tagPrefix, format)
	return v, err == nil
}

func stripTagPrefix(input, tagPrefix string) (string, error) {
	if tagPrefix == "" {
		return input, nil
	}
	re, err := compilePrefix(tagPrefix)
	if err != nil {
		return "", fmt.Errorf("invalid tag prefix %q: %w", tagPrefix, err)
	}
	loc := re.FindStringIndex(input)
	if loc == nil {
		return "", fmt.Errorf("%q does not start with tag prefix %q", input, tagPrefix)
	}
	return input[loc[1]:], nil
}

func compilePrefix(prefix string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + prefix + ")")
}

// compileOptional compiles pattern, returning nil for an empty pattern.
func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

func parseStrict(input string) (SemanticVersion, error) {
	parsed, err := blang.Parse(input)
	if err != nil {
		return SemanticVersion{}, fmt.Errorf("parsing version %q: %w", input, err)
	}

	pre := make([]string, 0, len(parsed.Pre))
	for _, p := range parsed.Pre {
		pre = append(pre, p.String())
	}

	return SemanticVersion{
		Major:         int64(parsed.Major),
		Minor:         int64(parsed.Minor),
		Patch:         int64(parsed.Patch),
		PreReleaseTag: parsePreReleaseTag(strings.Join(pre, ".")),
	}, nil
}

func parseLoose(input string) (SemanticVersion, error) {
	parsed, err := semver.NewVersion(input)
	if err != nil {
		return SemanticVersion{}, fmt.Errorf("parsing version %q: %w", input, err)
	}

	return SemanticVersion{
		Major:         int64(parsed.Major()),
		Minor:         int64(parsed.Minor()),
		Patch:         int64(parsed.Patch()),
		PreReleaseTag: parsePreReleaseTag(parsed.Prerelease()),
	}, nil
}

func parsePreReleaseTag(pre string) PreReleaseTag {
	if pre == "" {
		return PreReleaseTag{}
	}

	matches := preReleaseRe.FindStringSubmatch(pre)
	if matches == nil {
		return PreReleaseTag{Name: pre}
	}

	tag := PreReleaseTag{Name: matches[1]}
	if matches[2] != "" {
		n, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			return PreReleaseTag{Name: pre}
		}
		tag.Number = &n
	}
	return tag
}
