package nextver

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// EffectiveConfiguration is a branch rule with every inheritable field
// resolved.
type EffectiveConfiguration struct {
	Name                           string
	Regex                          string
	Increment                      IncrementStrategy
	DeploymentMode                 DeploymentMode
	Label                          *string
	TrackMergeTarget               bool
	IsMainBranch                   bool
	IsReleaseBranch                bool
	PreventIncrementOfMergedBranch bool
	SourceBranches                 []string

	TagPrefix                 string
	SemanticVersionFormat     SemanticVersionFormat
	NextVersion               string
	CommitMessageIncrementing CommitMessageIncrementMode
	MajorVersionBumpMessage   string
	MinorVersionBumpMessage   string
	PatchVersionBumpMessage   string
	NoBumpMessage             string
	Ignore                    IgnoreConfiguration
}

// EffectiveBranchConfiguration pairs a branch with the rule that governs it.
// Branch is the current branch or the ancestor branch the rule was found on.
type EffectiveBranchConfiguration struct {
	Branch Branch
	Value  EffectiveConfiguration
}

func resolveConfiguration(name string, bc *BranchConfiguration, cfg *Configuration) EffectiveConfiguration {
	resolved := bc.Inherit(cfg.Global())

	increment := *resolved.Increment
	if increment == IncrementInherit {
		increment = IncrementPatch
	}

	return EffectiveConfiguration{
		Name:                           name,
		Regex:                          resolved.Regex,
		Increment:                      increment,
		DeploymentMode:                 *resolved.DeploymentMode,
		Label:                          resolved.Label,
		TrackMergeTarget:               *resolved.TrackMergeTarget,
		IsMainBranch:                   *resolved.IsMainBranch,
		IsReleaseBranch:                *resolved.IsReleaseBranch,
		PreventIncrementOfMergedBranch: *resolved.PreventIncrementOfMergedBranch,
		SourceBranches:                 resolved.SourceBranches,

		TagPrefix:                 cfg.TagPrefix,
		SemanticVersionFormat:     cfg.SemanticVersionFormat,
		NextVersion:               cfg.NextVersion,
		CommitMessageIncrementing: cfg.CommitMessageIncrementing,
		MajorVersionBumpMessage:   cfg.MajorVersionBumpMessage,
		MinorVersionBumpMessage:   cfg.MinorVersionBumpMessage,
		PatchVersionBumpMessage:   cfg.PatchVersionBumpMessage,
		NoBumpMessage:             cfg.NoBumpMessage,
		Ignore:                    cfg.Ignore,
	}
}

var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// BranchSpecificLabel expands the label template for branchName. Named
// groups of the rule regex replace {Group} placeholders; {BranchName} falls
// back to the whole name when the regex has no such group. A non-empty
// branchNameOverride is used in place of branchName. An unset label stays
// nil.
func (c EffectiveConfiguration) BranchSpecificLabel(branchName, branchNameOverride string) *string {
	if c.Label == nil {
		return nil
	}
	label := *c.Label
	if !strings.Contains(label, "{") {
		return &label
	}

	effective := branchName
	if branchNameOverride != "" {
		effective = branchNameOverride
	}
	effective = invalidLabelChars.ReplaceAllString(effective, "-")

	if c.Regex != "" {
		if re, err := regexp.Compile(c.Regex); err == nil {
			if match := re.FindStringSubmatch(effective); match != nil {
				for i, group := range re.SubexpNames() {
					if group != "" {
						label = strings.ReplaceAll(label, "{"+group+"}", match[i])
					}
				}
			}
		}
	}
	label = strings.ReplaceAll(label, "{BranchName}", effective)
	return &label
}

// BranchConfigurationFinder resolves the rules that govern a branch.
type BranchConfigurationFinder struct {
	ctx *Context
}

// NewBranchConfigurationFinder creates a finder over ctx.
func NewBranchConfigurationFinder(ctx *Context) *BranchConfigurationFinder {
	return &BranchConfigurationFinder{ctx: ctx}
}

// Configurations returns the effective configurations for branch, most
// specific rule first. A rule with an Inherit increment is replaced by the
// rules of its nearest source branches; a branch without commits of its own
// additionally yields the differing rules of the branches it points into.
func (f *BranchConfigurationFinder) Configurations(branch Branch) ([]EffectiveBranchConfiguration, error) {
	cfg := f.ctx.Configuration
	rules, err := cfg.BranchRules(branch.Friendly())
	if err != nil {
		return nil, err
	}

	var result []EffectiveBranchConfiguration
	seen := map[string]bool{}
	for _, rule := range rules {
		found, err := f.walk(branch, rule.Name, rule.Configuration, nil, map[string]bool{}, true)
		if err != nil {
			return nil, err
		}
		for _, eff := range found {
			key := eff.Branch.Name + "\x00" + eff.Value.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, eff)
		}
	}

	for _, eff := range result {
		f.ctx.Log.Debug("effective branch configuration",
			zap.String("branch", eff.Branch.Friendly()),
			zap.String("configuration", eff.Value.Name),
			zap.Stringer("increment", eff.Value.Increment),
			zap.Stringer("mode", eff.Value.DeploymentMode))
	}
	return result, nil
}

func (f *BranchConfigurationFinder) walk(
	branch Branch,
	name string,
	branchConfig *BranchConfiguration,
	child *BranchConfiguration,
	traversed map[string]bool,
	top bool,
) ([]EffectiveBranchConfiguration, error) {
	friendly := branch.Friendly()
	if traversed[friendly] {
		return nil, nil
	}
	traversed[friendly] = true

	cfg := f.ctx.Configuration
	current := branchConfig
	if child != nil {
		current = child.Inherit(branchConfig)
	}
	inherit := current.Increment == nil || *current.Increment == IncrementInherit

	var sources []SourceBranch
	if inherit || top {
		var err error
		sources, err = f.ctx.Store.SourceBranches(branch, cfg, traversed)
		if err != nil {
			return nil, err
		}
	}

	if inherit {
		if len(sources) == 0 {
			return []EffectiveBranchConfiguration{{
				Branch: branch,
				Value:  resolveConfiguration(name, current, cfg),
			}}, nil
		}

		var result []EffectiveBranchConfiguration
		for _, source := range sources {
			rule, err := cfg.BranchRule(source.Branch.Friendly())
			if err != nil {
				return nil, err
			}
			found, err := f.walk(source.Branch, rule.Name, rule.Configuration, current, traversed, false)
			if err != nil {
				return nil, err
			}
			result = append(result, found...)
		}
		if len(result) == 0 {
			result = append(result, EffectiveBranchConfiguration{
				Branch: branch,
				Value:  resolveConfiguration(name, current, cfg),
			})
		}
		return result, nil
	}

	result := []EffectiveBranchConfiguration{{
		Branch: branch,
		Value:  resolveConfiguration(name, current, cfg),
	}}

	noOwnCommits := top && len(sources) > 0 && branch.Tip != nil && sources[0].MergeBase.Sha == branch.Tip.Sha
	if !noOwnCommits {
		return result, nil
	}

	f.ctx.Log.Info("branch has no commits of its own, also using its source branches",
		zap.String("branch", friendly))
	distinct := map[string]bool{name: true}
	for _, source := range sources {
		rule, err := cfg.BranchRule(source.Branch.Friendly())
		if err != nil {
			return nil, err
		}
		if distinct[rule.Name] {
			continue
		}
		distinct[rule.Name] = true
		found, err := f.walk(source.Branch, rule.Name, rule.Configuration, nil, traversed, false)
		if err != nil {
			return nil, err
		}
		result = append(result, found...)
	}
	return result, nil
}
