// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package nextver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Calculate determines the next semantic version of the repository state
// described by opts.
func Calculate(opts Options) (*Result, error) {
	ctx, err := NewContext(opts)
	if err != nil {
		return nil, err
	}

	calculator, err := NewNextVersionCalculator(ctx)
	if err != nil {
		return nil, err
	}

	next, err := calculator.FindVersion()
	if err != nil {
		return nil, err
	}

	return &Result{
		Version:             next.IncrementedVersion,
		BaseVersion:         next.BaseVersion,
		BranchConfiguration: next.BranchConfiguration,
	}, nil
}

// Variables renders the result as output variables.
func (r *Result) Variables() Variables {
	return NewVariables(r.Version)
}

// Variables is the rendered form of a version, keyed the way output
// writers consume it.
type Variables struct {
	Major                     string `json:"Major"`
	Minor                     string `json:"Minor"`
	Patch                     string `json:"Patch"`
	PreReleaseTag             string `json:"PreReleaseTag"`
	PreReleaseLabel           string `json:"PreReleaseLabel"`
	PreReleaseNumber          string `json:"PreReleaseNumber"`
	MajorMinorPatch           string `json:"MajorMinorPatch"`
	SemVer                    string `json:"SemVer"`
	FullSemVer                string `json:"FullSemVer"`
	InformationalVersion      string `json:"InformationalVersion"`
	BranchName                string `json:"BranchName"`
	EscapedBranchName         string `json:"EscapedBranchName"`
	Sha                       string `json:"Sha"`
	ShortSha                  string `json:"ShortSha"`
	VersionSourceSha          string `json:"VersionSourceSha"`
	CommitsSinceVersionSource string `json:"CommitsSinceVersionSource"`
	UncommittedChanges        string `json:"UncommittedChanges"`
	CommitDate                string `json:"CommitDate"`
	PythonVersion             string `json:"PythonVersion"`
	GoVersion                 string `json:"GoVersion"`
}

// NewVariables renders v.
func NewVariables(v SemanticVersion) Variables {
	vars := Variables{
		Major:                     strconv.FormatInt(v.Major, 10),
		Minor:                     strconv.FormatInt(v.Minor, 10),
		Patch:                     strconv.FormatInt(v.Patch, 10),
		PreReleaseTag:             v.PreReleaseTag.String(),
		PreReleaseLabel:           v.PreReleaseTag.Name,
		MajorMinorPatch:           fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch),
		SemVer:                    v.SemVer(),
		FullSemVer:                v.FullSemVer(),
		InformationalVersion:      v.InformationalVersion(),
		BranchName:                v.BuildMetaData.Branch,
		EscapedBranchName:         escapeBranchName(v.BuildMetaData.Branch),
		Sha:                       v.BuildMetaData.Sha,
		ShortSha:                  v.BuildMetaData.ShortSha,
		VersionSourceSha:          v.BuildMetaData.VersionSourceSha,
		CommitsSinceVersionSource: strconv.FormatInt(v.BuildMetaData.CommitsSinceVersionSource, 10),
		UncommittedChanges:        strconv.FormatInt(v.BuildMetaData.UncommittedChanges, 10),
		PythonVersion:             pythonVersion(v),
		GoVersion:                 "v" + v.SemVer(),
	}
	if v.PreReleaseTag.Number != nil {
		vars.PreReleaseNumber = strconv.FormatInt(*v.PreReleaseTag.Number, 10)
	}
	if !v.BuildMetaData.CommitDate.IsZero() {
		vars.CommitDate = v.BuildMetaData.CommitDate.UTC().Format("2006-01-02")
	}
	return vars
}

// VariablesFromString parses an existing version string and renders it.
func VariablesFromString(version string) (Variables, error) {
	v, err := ParseVersion(version, "[vV]?", FormatLoose)
	if err != nil {
		return Variables{}, err
	}
	return NewVariables(v), nil
}

// VariableNames lists the variable names in output order.
var VariableNames = []string{
	"Major", "Minor", "Patch",
	"PreReleaseTag", "PreReleaseLabel", "PreReleaseNumber",
	"MajorMinorPatch", "SemVer", "FullSemVer", "InformationalVersion",
	"BranchName", "EscapedBranchName",
	"Sha", "ShortSha", "VersionSourceSha",
	"CommitsSinceVersionSource", "UncommittedChanges", "CommitDate",
	"PythonVersion", "GoVersion",
}

// Map returns the variables keyed by name.
func (v Variables) Map() map[string]string {
	return map[string]string{
		"Major":                     v.Major,
		"Minor":                     v.Minor,
		"Patch":                     v.Patch,
		"PreReleaseTag":             v.PreReleaseTag,
		"PreReleaseLabel":           v.PreReleaseLabel,
		"PreReleaseNumber":          v.PreReleaseNumber,
		"MajorMinorPatch":           v.MajorMinorPatch,
		"SemVer":                    v.SemVer,
		"FullSemVer":                v.FullSemVer,
		"InformationalVersion":      v.InformationalVersion,
		"BranchName":                v.BranchName,
		"EscapedBranchName":         v.EscapedBranchName,
		"Sha":                       v.Sha,
		"ShortSha":                  v.ShortSha,
		"VersionSourceSha":          v.VersionSourceSha,
		"CommitsSinceVersionSource": v.CommitsSinceVersionSource,
		"UncommittedChanges":        v.UncommittedChanges,
		"CommitDate":                v.CommitDate,
		"PythonVersion":             v.PythonVersion,
		"GoVersion":                 v.GoVersion,
	}
}

// Get returns a single variable, matching the name case-insensitively.
func (v Variables) Get(name string) (string, error) {
	for key, value := range v.Map() {
		if strings.EqualFold(key, name) {
			return value, nil
		}
	}
	return "", &WarningError{Message: fmt.Sprintf("%q variable not available, valid variables are: %s", name, strings.Join(VariableNames, ", "))}
}

var invalidBranchNameChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

func escapeBranchName(name string) string {
	return invalidBranchNameChars.ReplaceAllString(name, "-")
}

// pythonVersion renders v as a PEP 440 version. Unknown pre-release labels
// are treated as development releases.
func pythonVersion(v SemanticVersion) string {
	out := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreReleaseTag.HasTag() {
		suffix := "0" // Default for PEP440 compliance
		if v.PreReleaseTag.Number != nil {
			suffix = strconv.FormatInt(*v.PreReleaseTag.Number, 10)
		}
		out += getPythonPrePrefix(v.PreReleaseTag.Name) + suffix
	}
	if v.BuildMetaData.UncommittedChanges > 0 {
		out += "+dirty"
	}
	return out
}

func getPythonPrePrefix(label string) string {
	switch strings.ToLower(label) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	case "rc", "pre", "preview":
		return "rc"
	default:
		return ".dev"
	}
}
