package nextver

import (
	"fmt"
	"iter"
	"strings"
)

// BaseVersion is a candidate version proposed by a strategy, before any
// increment is applied.
type BaseVersion struct {
	Source             string
	ShouldIncrement    bool
	SemanticVersion    SemanticVersion
	BaseVersionSource  *Commit
	BranchNameOverride string
}

func (b BaseVersion) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", b.Source, b.SemanticVersion.SemVer())
	if b.ShouldIncrement {
		sb.WriteString(" (will increment)")
	}
	if b.BaseVersionSource != nil {
		fmt.Fprintf(&sb, " with commit source '%s'", b.BaseVersionSource.ShortSha())
	} else {
		sb.WriteString(" with no commit source")
	}
	if b.BranchNameOverride != "" {
		fmt.Fprintf(&sb, " using branch name '%s'", b.BranchNameOverride)
	}
	return sb.String()
}

// VersionStrategy proposes base versions for a branch configuration. The
// returned sequence is lazy and may be abandoned early.
type VersionStrategy interface {
	Name() string
	BaseVersions(cfg EffectiveBranchConfiguration) iter.Seq2[BaseVersion, error]
}

var strategyFactories = map[StrategyKind]func(*Context) VersionStrategy{
	StrategyConfiguredNextVersion: func(ctx *Context) VersionStrategy { return &ConfiguredNextVersionStrategy{ctx: ctx} },
	StrategyMergeMessage:          func(ctx *Context) VersionStrategy { return &MergeMessageStrategy{ctx: ctx} },
	StrategyTaggedCommit:          func(ctx *Context) VersionStrategy { return &TaggedCommitStrategy{ctx: ctx} },
	StrategyVersionInBranchName:   func(ctx *Context) VersionStrategy { return &VersionInBranchNameStrategy{ctx: ctx} },
	StrategyMainline:              func(ctx *Context) VersionStrategy { return &MainlineStrategy{ctx: ctx} },
}

// NewVersionStrategies builds the strategies named in the configuration, in
// order.
func NewVersionStrategies(ctx *Context) ([]VersionStrategy, error) {
	strategies := make([]VersionStrategy, 0, len(ctx.Configuration.Strategies))
	for _, kind := range ctx.Configuration.Strategies {
		factory, ok := strategyFactories[kind]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", kind)
		}
		strategies = append(strategies, factory(ctx))
	}
	return strategies, nil
}

// versionInBranchName finds the first '/' or '-' separated part of name that
// parses as a version. The remainder is name with that part removed.
func versionInBranchName(name, tagPrefix string) (SemanticVersion, string, bool) {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '-'
	})
	for _, part := range parts {
		v, ok := TryParseVersion(part, tagPrefix, FormatLoose)
		if !ok {
			continue
		}
		remainder := strings.Replace(name, part, "", 1)
		remainder = strings.Trim(strings.ReplaceAll(remainder, "//", "/"), "/-")
		return v, remainder, true
	}
	return SemanticVersion{}, "", false
}

// isAncestorOfCurrent reports whether commit is in the history being
// versioned.
func isAncestorOfCurrent(ctx *Context, commit *Commit) (bool, error) {
	if ctx.CurrentCommit == nil {
		return false, nil
	}
	return ctx.Store.Repository().IsAncestor(commit, ctx.CurrentCommit)
}
