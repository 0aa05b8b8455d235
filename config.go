package nextver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// IncrementStrategy is the configured increment of a branch.
type IncrementStrategy int

const (
	IncrementInherit IncrementStrategy = iota
	IncrementNone
	IncrementPatch
	IncrementMinor
	IncrementMajor
)

var incrementStrategyNames = map[string]IncrementStrategy{
	"inherit": IncrementInherit,
	"none":    IncrementNone,
	"patch":   IncrementPatch,
	"minor":   IncrementMinor,
	"major":   IncrementMajor,
}

func (s IncrementStrategy) String() string {
	switch s {
	case IncrementNone:
		return "None"
	case IncrementPatch:
		return "Patch"
	case IncrementMinor:
		return "Minor"
	case IncrementMajor:
		return "Major"
	default:
		return "Inherit"
	}
}

// VersionField maps a concrete strategy to the field it bumps.
func (s IncrementStrategy) VersionField() VersionField {
	switch s {
	case IncrementPatch:
		return VersionFieldPatch
	case IncrementMinor:
		return VersionFieldMinor
	case IncrementMajor:
		return VersionFieldMajor
	default:
		return VersionFieldNone
	}
}

func (s *IncrementStrategy) UnmarshalYAML(node *yaml.Node) error {
	return decodeEnum(node, "increment", incrementStrategyNames, s)
}

// DeploymentMode governs how pre-release numbering is folded into the final
// version.
type DeploymentMode int

const (
	ManualDeployment DeploymentMode = iota
	ContinuousDelivery
	ContinuousDeployment
)

var deploymentModeNames = map[string]DeploymentMode{
	"manualdeployment":     ManualDeployment,
	"continuousdelivery":   ContinuousDelivery,
	"continuousdeployment": ContinuousDeployment,
}

func (m DeploymentMode) String() string {
	switch m {
	case ContinuousDelivery:
		return "ContinuousDelivery"
	case ContinuousDeployment:
		return "ContinuousDeployment"
	default:
		return "ManualDeployment"
	}
}

func (m *DeploymentMode) UnmarshalYAML(node *yaml.Node) error {
	return decodeEnum(node, "mode", deploymentModeNames, m)
}

// CommitMessageIncrementMode controls whether commit messages may override
// the branch increment.
type CommitMessageIncrementMode int

const (
	CommitMessageIncrementEnabled CommitMessageIncrementMode = iota
	CommitMessageIncrementDisabled
	CommitMessageIncrementMergeMessageOnly
)

var commitMessageIncrementNames = map[string]CommitMessageIncrementMode{
	"enabled":          CommitMessageIncrementEnabled,
	"disabled":         CommitMessageIncrementDisabled,
	"mergemessageonly": CommitMessageIncrementMergeMessageOnly,
}

func (m *CommitMessageIncrementMode) UnmarshalYAML(node *yaml.Node) error {
	return decodeEnum(node, "commit-message-incrementing", commitMessageIncrementNames, m)
}

func (f *SemanticVersionFormat) UnmarshalYAML(node *yaml.Node) error {
	return decodeEnum(node, "semantic-version-format", map[string]SemanticVersionFormat{
		"strict": FormatStrict,
		"loose":  FormatLoose,
	}, f)
}

// StrategyKind names a base version strategy.
type StrategyKind string

const (
	StrategyConfiguredNextVersion StrategyKind = "ConfiguredNextVersion"
	StrategyMergeMessage          StrategyKind = "MergeMessage"
	StrategyTaggedCommit          StrategyKind = "TaggedCommit"
	StrategyVersionInBranchName   StrategyKind = "VersionInBranchName"
	StrategyMainline              StrategyKind = "Mainline"
)

func decodeEnum[T any](node *yaml.Node, field string, names map[string]T, out *T) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, ok := names[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return fmt.Errorf("line %d: invalid %s %q", node.Line, field, raw)
	}
	*out = v
	return nil
}

// IgnoreConfiguration excludes commits from version calculation.
type IgnoreConfiguration struct {
	Before *time.Time `yaml:"commits-before"`
	Shas   []string   `yaml:"sha"`
}

// IsEmpty reports whether nothing is ignored.
func (c IgnoreConfiguration) IsEmpty() bool {
	return c.Before == nil && len(c.Shas) == 0
}

// BranchConfiguration is a branch rule. Unset fields are inherited.
type BranchConfiguration struct {
	Regex                          string             `yaml:"regex"`
	Increment                      *IncrementStrategy `yaml:"increment"`
	DeploymentMode                 *DeploymentMode    `yaml:"mode"`
	Label                          *string            `yaml:"label"`
	TrackMergeTarget               *bool              `yaml:"track-merge-target"`
	IsMainBranch                   *bool              `yaml:"is-main-branch"`
	IsReleaseBranch                *bool              `yaml:"is-release-branch"`
	PreventIncrementOfMergedBranch *bool              `yaml:"prevent-increment-of-merged-branch"`
	SourceBranches                 []string           `yaml:"source-branches"`
	Priority                       *int               `yaml:"priority"`
}

// Inherit returns a copy of b where every unset field, and an Inherit
// increment, is taken from parent.
func (b *BranchConfiguration) Inherit(parent *BranchConfiguration) *BranchConfiguration {
	out := b.overlay(parent)
	if parent != nil && out.Increment != nil && *out.Increment == IncrementInherit {
		out.Increment = parent.Increment
	}
	return out
}

func (b *BranchConfiguration) overlay(base *BranchConfiguration) *BranchConfiguration {
	out := *b
	if base == nil {
		return &out
	}
	if out.Regex == "" {
		out.Regex = base.Regex
	}
	if out.Increment == nil {
		out.Increment = base.Increment
	}
	if out.DeploymentMode == nil {
		out.DeploymentMode = base.DeploymentMode
	}
	if out.Label == nil {
		out.Label = base.Label
	}
	if out.TrackMergeTarget == nil {
		out.TrackMergeTarget = base.TrackMergeTarget
	}
	if out.IsMainBranch == nil {
		out.IsMainBranch = base.IsMainBranch
	}
	if out.IsReleaseBranch == nil {
		out.IsReleaseBranch = base.IsReleaseBranch
	}
	if out.PreventIncrementOfMergedBranch == nil {
		out.PreventIncrementOfMergedBranch = base.PreventIncrementOfMergedBranch
	}
	if out.SourceBranches == nil {
		out.SourceBranches = base.SourceBranches
	}
	if out.Priority == nil {
		out.Priority = base.Priority
	}
	return &out
}

// Configuration is the global versioning configuration.
type Configuration struct {
	TagPrefix                 string                          `yaml:"tag-prefix"`
	SemanticVersionFormat     SemanticVersionFormat           `yaml:"semantic-version-format"`
	NextVersion               string                          `yaml:"next-version"`
	DeploymentMode            DeploymentMode                  `yaml:"mode"`
	Increment                 IncrementStrategy               `yaml:"increment"`
	Label                     *string                         `yaml:"label"`
	CommitMessageIncrementing CommitMessageIncrementMode      `yaml:"commit-message-incrementing"`
	MajorVersionBumpMessage   string                          `yaml:"major-version-bump-message"`
	MinorVersionBumpMessage   string                          `yaml:"minor-version-bump-message"`
	PatchVersionBumpMessage   string                          `yaml:"patch-version-bump-message"`
	NoBumpMessage             string                          `yaml:"no-bump-message"`
	Strategies                []StrategyKind                  `yaml:"strategies"`
	Ignore                    IgnoreConfiguration             `yaml:"ignore"`
	Branches                  map[string]*BranchConfiguration `yaml:"branches"`
}

const (
	MainBranchKey        = "main"
	DevelopBranchKey     = "develop"
	ReleaseBranchKey     = "release"
	FeatureBranchKey     = "feature"
	HotfixBranchKey      = "hotfix"
	PullRequestBranchKey = "pull-request"
	UnknownBranchKey     = "unknown"
)

func ptr[T any](v T) *T { return &v }

// DefaultConfiguration returns a GitFlow style configuration.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		TagPrefix:                 "[vV]?",
		SemanticVersionFormat:     FormatStrict,
		DeploymentMode:            ManualDeployment,
		Increment:                 IncrementPatch,
		CommitMessageIncrementing: CommitMessageIncrementEnabled,
		MajorVersionBumpMessage:   `\+semver:\s?(breaking|major)`,
		MinorVersionBumpMessage:   `\+semver:\s?(feature|minor)`,
		PatchVersionBumpMessage:   `\+semver:\s?(fix|patch)`,
		NoBumpMessage:             `\+semver:\s?(none|skip)`,
		Strategies: []StrategyKind{
			StrategyConfiguredNextVersion,
			StrategyMergeMessage,
			StrategyTaggedCommit,
			StrategyVersionInBranchName,
		},
		Branches: map[string]*BranchConfiguration{
			MainBranchKey: {
				Regex:          `^master$|^main$`,
				Increment:      ptr(IncrementPatch),
				DeploymentMode: ptr(ContinuousDeployment),
				Label:          ptr(""),
				IsMainBranch:   ptr(true),
				SourceBranches: []string{},
				Priority:       ptr(100),

				PreventIncrementOfMergedBranch: ptr(true),
			},
			DevelopBranchKey: {
				Regex:            `^dev(elop)?(ment)?$`,
				Increment:        ptr(IncrementMinor),
				DeploymentMode:   ptr(ContinuousDelivery),
				Label:            ptr("alpha"),
				TrackMergeTarget: ptr(true),
				SourceBranches:   []string{MainBranchKey},
				Priority:         ptr(60),
			},
			ReleaseBranchKey: {
				Regex:           `^releases?[/-](?P<BranchName>.+)`,
				Increment:       ptr(IncrementMinor),
				DeploymentMode:  ptr(ManualDeployment),
				Label:           ptr("beta"),
				IsReleaseBranch: ptr(true),
				SourceBranches:  []string{MainBranchKey, DevelopBranchKey},
				Priority:        ptr(90),
			},
			FeatureBranchKey: {
				Regex:          `^features?[/-](?P<BranchName>.+)`,
				Increment:      ptr(IncrementInherit),
				DeploymentMode: ptr(ManualDeployment),
				Label:          ptr("{BranchName}"),
				SourceBranches: []string{MainBranchKey, DevelopBranchKey, ReleaseBranchKey, HotfixBranchKey},
				Priority:       ptr(50),
			},
			HotfixBranchKey: {
				Regex:           `^hotfix(es)?[/-](?P<BranchName>.+)`,
				Increment:       ptr(IncrementPatch),
				DeploymentMode:  ptr(ManualDeployment),
				Label:           ptr("beta"),
				IsReleaseBranch: ptr(true),
				SourceBranches:  []string{MainBranchKey},
				Priority:        ptr(80),
			},
			PullRequestBranchKey: {
				Regex:          `^(pull-requests|pull|pr)[/-](?P<Number>\d*)`,
				Increment:      ptr(IncrementInherit),
				DeploymentMode: ptr(ContinuousDelivery),
				Label:          ptr("PullRequest{Number}"),
				SourceBranches: []string{MainBranchKey, DevelopBranchKey, ReleaseBranchKey, FeatureBranchKey, HotfixBranchKey},
				Priority:       ptr(40),
			},
			UnknownBranchKey: {
				Regex:          `(?P<BranchName>.+)`,
				Increment:      ptr(IncrementInherit),
				DeploymentMode: ptr(ManualDeployment),
				Label:          ptr("{BranchName}"),
				SourceBranches: []string{MainBranchKey, DevelopBranchKey, ReleaseBranchKey, FeatureBranchKey, HotfixBranchKey, PullRequestBranchKey},
				Priority:       ptr(0),
			},
		},
	}
}

// BranchRule is a named branch configuration matched against a branch name.
type BranchRule struct {
	Name          string
	Configuration *BranchConfiguration
	// Groups holds the named regex groups captured from the branch name.
	Groups map[string]string
}

// Global returns the global defaults as a branch configuration, used as the
// root of every inheritance chain.
func (c *Configuration) Global() *BranchConfiguration {
	return &BranchConfiguration{
		Increment:                      ptr(c.Increment),
		DeploymentMode:                 ptr(c.DeploymentMode),
		Label:                          c.Label,
		TrackMergeTarget:               ptr(false),
		IsMainBranch:                   ptr(false),
		IsReleaseBranch:                ptr(false),
		PreventIncrementOfMergedBranch: ptr(false),
		SourceBranches:                 []string{},
		Priority:                       ptr(0),
	}
}

// BranchRules returns every rule whose regex matches branchName, most
// specific first: highest priority, then rule name. The unknown rule is only
// returned when nothing else matches, and a synthetic rule built from the
// global defaults is returned when not even that matches.
func (c *Configuration) BranchRules(branchName string) ([]BranchRule, error) {
	names := make([]string, 0, len(c.Branches))
	for name := range c.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	var rules []BranchRule
	var unknown *BranchRule
	for _, name := range names {
		bc := c.Branches[name]
		if bc == nil || bc.Regex == "" {
			continue
		}
		re, err := regexp.Compile(bc.Regex)
		if err != nil {
			return nil, fmt.Errorf("branch %q: invalid regex %q: %w", name, bc.Regex, err)
		}
		match := re.FindStringSubmatch(branchName)
		if match == nil {
			continue
		}

		rule := BranchRule{Name: name, Configuration: bc, Groups: map[string]string{}}
		for i, group := range re.SubexpNames() {
			if group != "" && i < len(match) {
				rule.Groups[group] = match[i]
			}
		}
		if name == UnknownBranchKey {
			unknown = &rule
			continue
		}
		rules = append(rules, rule)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return priorityOf(rules[i].Configuration) > priorityOf(rules[j].Configuration)
	})

	if len(rules) == 0 && unknown != nil {
		rules = append(rules, *unknown)
	}
	if len(rules) == 0 {
		rules = append(rules, BranchRule{Name: "fallback", Configuration: c.Global(), Groups: map[string]string{}})
	}
	return rules, nil
}

// BranchRule returns the most specific rule for branchName.
func (c *Configuration) BranchRule(branchName string) (BranchRule, error) {
	rules, err := c.BranchRules(branchName)
	if err != nil {
		return BranchRule{}, err
	}
	return rules[0], nil
}

func priorityOf(bc *BranchConfiguration) int {
	if bc.Priority == nil {
		return 0
	}
	return *bc.Priority
}
