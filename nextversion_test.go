package nextver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func candidate(t *testing.T, incremented, base string, source *Commit) NextVersion {
	return NextVersion{
		IncrementedVersion: mustParse(t, incremented),
		BaseVersion: BaseVersion{
			Source:            "test " + base,
			SemanticVersion:   mustParse(t, base),
			BaseVersionSource: source,
		},
	}
}

func mustSelect(t *testing.T, candidates ...NextVersion) NextVersion {
	t.Helper()
	got, err := SelectNextVersion(candidates)
	require.NoError(t, err)
	return got
}

func TestSelectNextVersion(t *testing.T) {
	t.Run("No candidates", func(t *testing.T) {
		_, err := SelectNextVersion(nil)
		require.ErrorIs(t, err, ErrNoBaseVersions)
		_, err = SelectNextVersion([]NextVersion{})
		require.ErrorIs(t, err, ErrNoBaseVersions)
	})


	t1 := &Commit{Sha: "1111111", When: testEpoch}
	t2 := &Commit{Sha: "2222222", When: testEpoch.Add(time.Hour)}
	t3 := &Commit{Sha: "3333333", When: testEpoch.Add(2 * time.Hour)}

	t.Run("Highest incremented version wins", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "1.1.0", "1.0.0", t3),
			candidate(t, "2.0.0", "2.0.0", t1),
			candidate(t, "1.5.0", "1.4.0", t2),
		)
		require.Equal(t, "2.0.0", got.IncrementedVersion.SemVer())
		require.Equal(t, t1, got.BaseVersion.BaseVersionSource)
	})

	t.Run("Equal versions take the oldest source", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "1.3.0", "1.2.0", t2),
			candidate(t, "1.3.0", "1.2.5", t1),
		)
		require.Equal(t, t1, got.BaseVersion.BaseVersionSource)
		require.Equal(t, "1.2.5", got.BaseVersion.SemanticVersion.SemVer())
	})

	t.Run("Order of candidates does not matter", func(t *testing.T) {
		a := candidate(t, "1.3.0", "1.2.0", t2)
		b := candidate(t, "1.3.0", "1.2.5", t1)
		require.Equal(t, mustSelect(t, a, b), mustSelect(t, b, a))
	})

	t.Run("Three way tie with a missing source", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "1.3.0", "1.3.0", nil),
			candidate(t, "1.3.0", "1.2.0", t3),
			candidate(t, "1.3.0", "1.2.1", t2),
		)
		require.Equal(t, t2, got.BaseVersion.BaseVersionSource)
		require.Equal(t, "1.2.1", got.BaseVersion.SemanticVersion.SemVer())
	})

	t.Run("Three way tie with equal timestamps takes the later candidate", func(t *testing.T) {
		same := &Commit{Sha: "4444444", When: t2.When}
		got := mustSelect(t,
			candidate(t, "1.3.0", "1.2.0", t2),
			candidate(t, "1.3.0", "1.2.1", same),
			candidate(t, "1.3.0", "1.2.2", t3),
		)
		require.Equal(t, same, got.BaseVersion.BaseVersionSource)
	})

	t.Run("Maximum without source uses the newest sourced candidate", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "2.0.0", "2.0.0", nil),
			candidate(t, "1.1.0", "1.0.0", t1),
			candidate(t, "1.1.0", "1.0.0", t2),
			candidate(t, "1.1.0-beta.1", "1.1.0-beta.1", t3),
		)
		require.Equal(t, "2.0.0", got.IncrementedVersion.SemVer())
		require.Equal(t, "2.0.0", got.BaseVersion.SemanticVersion.SemVer())
		// Pre-release bases are skipped for a release maximum.
		require.Equal(t, t2, got.BaseVersion.BaseVersionSource)
	})

	t.Run("Pre-release maximum considers pre-release bases", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "2.0.0-alpha.1", "2.0.0", nil),
			candidate(t, "1.1.0-beta.1", "1.1.0-beta.1", t3),
			candidate(t, "1.0.1", "1.0.0", t1),
		)
		require.Equal(t, "2.0.0-alpha.1", got.IncrementedVersion.SemVer())
		require.Equal(t, t3, got.BaseVersion.BaseVersionSource)
	})

	t.Run("Only sourceless candidates", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "0.1.0", "0.0.0", nil),
			candidate(t, "3.0.0", "3.0.0", nil),
		)
		require.Equal(t, "3.0.0", got.IncrementedVersion.SemVer())
		require.Nil(t, got.BaseVersion.BaseVersionSource)
	})

	t.Run("All pre-release bases with release maximum", func(t *testing.T) {
		got := mustSelect(t,
			candidate(t, "2.0.0", "2.0.0-rc.1", nil),
			candidate(t, "1.0.0-rc.2", "1.0.0-rc.1", t1),
		)
		require.Equal(t, "2.0.0", got.IncrementedVersion.SemVer())
		require.Equal(t, t1, got.BaseVersion.BaseVersionSource)
	})
}

func TestNextVersionCalculator(t *testing.T) {
	t.Run("No commits", func(t *testing.T) {
		r := newTestRepo(t)
		_, err := r.calculate(nil)
		require.ErrorIs(t, err, ErrNoCommits)
		require.True(t, IsExpectedFailure(err))
	})

	t.Run("Every configuration contributes a candidate", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("one")
		r.branch("release/1.0.0")
		ctx := r.context(nil)

		calc, err := NewNextVersionCalculator(ctx)
		require.NoError(t, err)
		candidates, err := calc.NextVersions()
		require.NoError(t, err)

		var configs []string
		for _, c := range candidates {
			configs = append(configs, c.BranchConfiguration.Value.Name)
		}
		require.Contains(t, configs, ReleaseBranchKey)
		require.Contains(t, configs, MainBranchKey)
	})

	t.Run("Ignored sources are filtered", func(t *testing.T) {
		r := newTestRepo(t)
		old := r.commit("one")
		r.tag("v5.0.0", old)
		recent := r.commit("two")
		r.tag("v1.0.0", recent)
		r.commit("three")

		cfg := configWith(t, "ignore:\n  sha: ['"+old.String()+"']")
		ctx := r.context(cfg)
		calc, err := NewNextVersionCalculator(ctx)
		require.NoError(t, err)
		next, err := calc.CalculateNextVersion()
		require.NoError(t, err)
		require.Equal(t, "1.0.1", next.IncrementedVersion.SemVer())
	})

	t.Run("Label mismatch drops a candidate", func(t *testing.T) {
		r := newTestRepo(t)
		r.commit("one")
		r.branch("develop")
		r.tag("v1.1.0-beta.3", r.commit("two"))
		ctx := r.context(nil)

		calc, err := NewNextVersionCalculator(ctx)
		require.NoError(t, err)
		candidates, err := calc.NextVersions()
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		require.Equal(t, "Fallback base version", candidates[0].BaseVersion.Source)
		require.Equal(t, "0.1.0-alpha.1", candidates[0].IncrementedVersion.SemVer())
	})

	t.Run("Label controls the pre-release of an incremented base", func(t *testing.T) {
		r := newTestRepo(t)
		source := r.commit("one")
		r.tag("v1.1.0-beta.1", source)
		r.commit("two")
		ctx := r.context(nil)

		calc, err := NewNextVersionCalculator(ctx)
		require.NoError(t, err)
		eff := EffectiveBranchConfiguration{
			Branch: ctx.CurrentBranch,
			Value: EffectiveConfiguration{
				Increment:                 IncrementPatch,
				CommitMessageIncrementing: CommitMessageIncrementDisabled,
			},
		}
		base := BaseVersion{
			Source:            "test",
			ShouldIncrement:   true,
			SemanticVersion:   mustParse(t, "1.1.0-beta.1"),
			BaseVersionSource: r.commitOf(source),
		}

		tests := []struct {
			name  string
			label *string
			want  string
		}{
			{"Unset keeps the pre-release name", nil, "1.1.0-beta.2"},
			{"Empty promotes to a release", ptr(""), "1.1.0"},
			{"Same name bumps the number", ptr("beta"), "1.1.0-beta.2"},
			{"Other name starts over", ptr("rc"), "1.1.0-rc.1"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := calc.incrementedVersion(eff, base, tt.label)
				require.NoError(t, err)
				require.Equal(t, tt.want, got.SemVer())
			})
		}
	})
}
