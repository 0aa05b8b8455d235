package nextver

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	t.Run("Commits after a tag on main", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.2.0", r.commit("initial"))
		r.commits(3)

		result, err := r.calculate(configWith(t, "branches:\n  main:\n    increment: Minor"))
		require.NoError(t, err)
		require.Equal(t, "1.3.0", result.Version.SemVer())
		require.Equal(t, int64(3), result.Version.BuildMetaData.CommitsSinceVersionSource)
		require.Equal(t, "1.3.0+3", result.Version.FullSemVer())
	})

	t.Run("Feature branch with its own label", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v2.0.0", r.commit("initial"))
		r.branch("feature/x")
		r.commits(2)

		cfg := configWith(t, `
branches:
  feature:
    increment: Minor
    label: alpha
`)
		result, err := r.calculate(cfg)
		require.NoError(t, err)
		require.Equal(t, "2.1.0-alpha.1", result.Version.SemVer())
		require.Equal(t, int64(2), result.Version.BuildMetaData.CommitsSinceVersionSource)
		require.Equal(t, FeatureBranchKey, result.BranchConfiguration.Value.Name)
	})

	t.Run("Tagged HEAD", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("initial")
		r.tag("v3.0.0", r.commit("release"))

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "3.0.0", result.Version.SemVer())
		require.Equal(t, int64(0), result.Version.BuildMetaData.CommitsSinceVersionSource)
		require.Equal(t, "3.0.0", result.Version.FullSemVer())
	})

	t.Run("Annotated tags are read", func(t *testing.T) {
		r := newTestRepo(t)
		r.annotatedTag("v1.0.0", r.commit("initial"))
		r.commit("fix")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "1.0.1", result.Version.SemVer())
	})

	t.Run("No tags falls back to the empty version", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("initial")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "0.0.1", result.Version.SemVer())
		require.Equal(t, "Fallback base version", result.BaseVersion.Source)
		require.Equal(t, int64(1), result.Version.BuildMetaData.CommitsSinceVersionSource)

		result, err = r.calculate(configWith(t, "branches:\n  main:\n    increment: Minor"))
		require.NoError(t, err)
		require.Equal(t, "0.1.0", result.Version.SemVer())
	})

	t.Run("Configured next version", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("initial")

		result, err := r.calculate(configWith(t, "next-version: 2.0"))
		require.NoError(t, err)
		require.Equal(t, "2.0.0", result.Version.SemVer())
	})

	t.Run("Commit message directive", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.commit("add search +semver: minor")
		r.commit("tidy")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "1.1.0", result.Version.SemVer())
	})

	t.Run("Merged release branch", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("initial")
		r.branch("release/2.0.0")
		r.commit("stabilize")
		r.checkout("master")
		r.merge("release/2.0.0", "Merge branch 'release/2.0.0'")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "2.0.0", result.Version.SemVer())
		require.Contains(t, result.BaseVersion.Source, "Merge message")
	})

	t.Run("Version in release branch name", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("initial")
		r.branch("release/2.0.0")
		r.commit("stabilize")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "2.0.0-beta.1", result.Version.SemVer())
		require.Equal(t, ReleaseBranchKey, result.BranchConfiguration.Value.Name)
	})

	t.Run("Feature branch off a release branch keeps its own label", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("release/2.0.0")
		r.commit("stabilize")
		r.branch("feature/x")
		r.commit("x")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "2.0.0-x.1", result.Version.SemVer())
		require.Equal(t, "x", result.Version.PreReleaseTag.Name)
	})

	t.Run("Ignored tags do not raise the version", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.commits(2)

		result, err := r.calculate(configWith(t, "ignore:\n  commits-before: 2030-01-01T00:00:00Z"))
		require.NoError(t, err)
		require.Equal(t, "0.0.1", result.Version.SemVer())
		require.Equal(t, "Fallback base version", result.BaseVersion.Source)
	})

	t.Run("Empty label promotes a pre-release tag", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.1.0-beta.1", r.commit("initial"))
		r.commit("fix")

		result, err := r.calculate(configWith(t, "branches:\n  main:\n    mode: ManualDeployment"))
		require.NoError(t, err)
		require.Equal(t, "1.1.0", result.Version.SemVer())
		require.False(t, result.Version.IsPreRelease())
	})

	t.Run("Develop uses continuous delivery", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("develop")
		r.commits(2)

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "1.1.0-alpha.2", result.Version.SemVer())
		require.Equal(t, int64(2), result.Version.BuildMetaData.CommitsSinceVersionSource)
	})

	t.Run("Continuous delivery without a label", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("develop")
		r.commit("work")

		_, err := r.calculate(configWith(t, "branches:\n  develop:\n    label: ''"))
		require.ErrorIs(t, err, ErrPreReleaseRequired)
		require.True(t, IsExpectedFailure(err))
	})

	t.Run("Feature branch label from its name", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("feature/login")
		r.commit("login form")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		require.Equal(t, "1.0.1-login.1", result.Version.SemVer())
		require.Equal(t, "feature/login", result.Version.BuildMetaData.Branch)
	})

	t.Run("Mainline counts merges", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("feature/a")
		r.commit("a")
		r.checkout("master")
		r.merge("feature/a", "Merge branch 'feature/a'")
		r.branch("feature/b")
		r.commit("b")
		r.checkout("master")
		r.merge("feature/b", "Merge branch 'feature/b'")
		r.commit("direct")

		result, err := r.calculate(configWith(t, "strategies: [Mainline]"))
		require.NoError(t, err)
		require.Equal(t, "1.0.3", result.Version.SemVer())
		require.Equal(t, int64(5), result.Version.BuildMetaData.CommitsSinceVersionSource)
	})

	t.Run("Older commitish", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		older := r.commit("two")
		r.tag("v2.0.0", r.commit("three"))

		result, err := r.calculate(nil, WithCommitish(plumbing.Revision(older.String())))
		require.NoError(t, err)
		require.Equal(t, "1.0.1", result.Version.SemVer())
		require.Equal(t, older.String(), result.Version.BuildMetaData.Sha)
	})

	t.Run("Same state gives the same result", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("develop")
		r.commits(3)

		first, err := r.calculate(nil)
		require.NoError(t, err)
		second, err := r.calculate(nil)
		require.NoError(t, err)
		if diff := cmp.Diff(first.Variables(), second.Variables()); diff != "" {
			t.Errorf("results differ (-first +second):\n%s", diff)
		}
	})
}

func TestVariables(t *testing.T) {
	t.Run("Calculated result", func(t *testing.T) {
		r := newTestRepo(t)
		r.tag("v1.0.0", r.commit("initial"))
		r.branch("feature/login_form")
		head := r.commit("login form")

		result, err := r.calculate(nil)
		require.NoError(t, err)
		vars := result.Variables()

		require.Equal(t, "1", vars.Major)
		require.Equal(t, "0", vars.Minor)
		require.Equal(t, "1", vars.Patch)
		require.Equal(t, "login_form", vars.PreReleaseLabel)
		require.Equal(t, "1", vars.PreReleaseNumber)
		require.Equal(t, "1.0.1", vars.MajorMinorPatch)
		require.Equal(t, "feature/login_form", vars.BranchName)
		require.Equal(t, "feature-login-form", vars.EscapedBranchName)
		require.Equal(t, head.String(), vars.Sha)
		require.Equal(t, head.String()[:7], vars.ShortSha)
		require.Equal(t, "1", vars.CommitsSinceVersionSource)
		require.Equal(t, "2024-01-01", vars.CommitDate)
		require.Equal(t, "1.0.1.dev1", vars.PythonVersion)
		require.Equal(t, "v1.0.1-login_form.1", vars.GoVersion)
	})

	t.Run("From a version string", func(t *testing.T) {
		tests := []struct {
			input  string
			semver string
			python string
			goVer  string
		}{
			{"1.2.3", "1.2.3", "1.2.3", "v1.2.3"},
			{"v1.2.3-beta.4", "1.2.3-beta.4", "1.2.3b4", "v1.2.3-beta.4"},
			{"2.0.0-rc.1", "2.0.0-rc.1", "2.0.0rc1", "v2.0.0-rc.1"},
			{"0.1.0-alpha", "0.1.0-alpha", "0.1.0a0", "v0.1.0-alpha"},
			{"1.0.0-dev", "1.0.0-dev", "1.0.0.dev0", "v1.0.0-dev"},
		}
		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				vars, err := VariablesFromString(tt.input)
				require.NoError(t, err)
				require.Equal(t, tt.semver, vars.SemVer)
				require.Equal(t, tt.python, vars.PythonVersion)
				require.Equal(t, tt.goVer, vars.GoVersion)
			})
		}
	})

	t.Run("Invalid version string", func(t *testing.T) {
		_, err := VariablesFromString("not-a-version")
		require.Error(t, err)
	})

	t.Run("Uncommitted changes mark python versions dirty", func(t *testing.T) {
		v := mustParse(t, "1.2.3")
		v.BuildMetaData.UncommittedChanges = 2
		vars := NewVariables(v)
		require.Equal(t, "1.2.3+dirty", vars.PythonVersion)
		require.Equal(t, "2", vars.UncommittedChanges)
	})

	t.Run("Get", func(t *testing.T) {
		vars, err := VariablesFromString("1.2.3-beta.4")
		require.NoError(t, err)

		got, err := vars.Get("semver")
		require.NoError(t, err)
		require.Equal(t, "1.2.3-beta.4", got)

		got, err = vars.Get("PreReleaseNumber")
		require.NoError(t, err)
		require.Equal(t, "4", got)

		_, err = vars.Get("Nope")
		require.Error(t, err)
		require.True(t, IsExpectedFailure(err))
		require.Contains(t, err.Error(), "FullSemVer")
	})

	t.Run("Map covers every name", func(t *testing.T) {
		m := NewVariables(EmptyVersion).Map()
		require.Len(t, m, len(VariableNames))
		for _, name := range VariableNames {
			require.Contains(t, m, name)
		}
	})
}
