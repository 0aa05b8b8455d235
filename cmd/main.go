package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jaxxstorm/nextver"
	"go.uber.org/zap"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	Commitish    string `arg:"" optional:"" help:"Git commitish to analyze or version string to convert (default: HEAD)"`
	Repo         string `short:"r" help:"Repository path (default: current directory)"`
	Branch       string `short:"b" help:"Branch name to use when HEAD is detached"`
	Config       string `short:"c" help:"Configuration file (default: nextver.yml in the repository root)" type:"path"`
	ShowVariable string `short:"s" name:"show-variable" help:"Print a single variable, e.g. SemVer or FullSemVer"`
	JSON         bool   `short:"j" help:"Output all variables as JSON"`
	Verbose      bool   `short:"v" help:"Log calculation steps to stderr"`
	ShowVersion  bool   `help:"Show version information" name:"version"`

	out io.Writer `kong:"-"`
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("nextver"),
		kong.Description("Calculate the next semantic version from Git history and branching configuration"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	if err := cli.Run(); err != nil {
		if nextver.IsExpectedFailure(err) {
			fmt.Fprintln(os.Stderr, err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (c *CLI) Run() error {
	if c.out == nil {
		c.out = os.Stdout
	}

	if c.ShowVersion {
		return c.showVersion()
	}

	// A version string is rendered as-is instead of being resolved
	if c.Commitish != "" && isVersionString(c.Commitish) {
		return c.convertVersion()
	}

	return c.calculateVersion()
}

func (c *CLI) showVersion() error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "nextver",
	}

	if c.JSON {
		return json.NewEncoder(c.out).Encode(versionInfo)
	}

	fmt.Fprintf(c.out, "nextver version %s\n", Version)
	return nil
}

func (c *CLI) convertVersion() error {
	vars, err := nextver.VariablesFromString(c.Commitish)
	if err != nil {
		return fmt.Errorf("converting version: %w", err)
	}
	return c.print(vars)
}

func (c *CLI) calculateVersion() error {
	logger := zap.NewNop()
	if c.Verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck
	}

	repoPath := c.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	repo, err := nextver.OpenRepository(repoPath)
	if err != nil {
		return fmt.Errorf("opening repository at %s: %w", repoPath, err)
	}

	configPath := c.Config
	if configPath == "" {
		root := repoPath
		if wt, err := repo.Worktree(); err == nil {
			root = wt.Filesystem.Root()
		}
		configPath = nextver.FindConfigurationFile(root)
	}
	cfg, err := nextver.LoadConfiguration(configPath)
	if err != nil {
		return err
	}
	if configPath != "" {
		logger.Debug("loaded configuration", zap.String("path", configPath))
	}

	var gitOpts []nextver.GitOption
	if c.Commitish != "" {
		gitOpts = append(gitOpts, nextver.WithCommitish(plumbing.Revision(c.Commitish)))
	}
	if c.Branch != "" {
		gitOpts = append(gitOpts, nextver.WithBranch(c.Branch))
	}

	result, err := nextver.Calculate(nextver.Options{
		Repository:    nextver.NewGitRepository(repo, gitOpts...),
		Configuration: cfg,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	return c.print(result.Variables())
}

func (c *CLI) print(vars nextver.Variables) error {
	if c.JSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(vars)
	}

	name := c.ShowVariable
	if name == "" {
		name = "SemVer"
	}
	value, err := vars.Get(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, value)
	return nil
}

// isVersionString checks if the input looks like a version string rather than a git reference
func isVersionString(input string) bool {
	// Simple heuristic: if it contains dots and starts with a number or 'v', treat as version
	if strings.Contains(input, ".") {
		trimmed := strings.TrimPrefix(input, "v")
		if len(trimmed) > 0 && (trimmed[0] >= '0' && trimmed[0] <= '9') {
			// Check if it has at least 2 dots (x.y.z format)
			parts := strings.Split(trimmed, ".")
			return len(parts) >= 3
		}
	}
	return false
}
