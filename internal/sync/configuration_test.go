package sync_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/filtersync/internal/rewrite"
	syncpkg "github.com/temirov/filtersync/internal/sync"
)

const (
	testSourceURLConstant      = "https://example.test/source.git"
	testDestinationURLConstant = "https://example.test/destination.git"
)

func validRunConfiguration() syncpkg.RunConfiguration {
	return syncpkg.RunConfiguration{
		SourceURL:             testSourceURLConstant,
		DestinationURL:        testDestinationURLConstant,
		WorkingDirectory:      "./temp",
		TagPolicy:             rewrite.TagPolicyVisited,
		TagHistoryLookupDepth: 50,
		AtomicPush:            true,
		LockingEnabled:        true,
	}
}

func TestRunConfigurationValidate(testInstance *testing.T) {
	testCases := []struct {
		name         string
		mutate       func(configuration *syncpkg.RunConfiguration)
		expectedKind syncpkg.Kind
		expectValid  bool
	}{
		{
			name:        "valid_defaults",
			mutate:      func(configuration *syncpkg.RunConfiguration) {},
			expectValid: true,
		},
		{
			name:         "missing_source",
			mutate:       func(configuration *syncpkg.RunConfiguration) { configuration.SourceURL = "  " },
			expectedKind: syncpkg.KindUsage,
		},
		{
			name:         "missing_destination",
			mutate:       func(configuration *syncpkg.RunConfiguration) { configuration.DestinationURL = "" },
			expectedKind: syncpkg.KindUsage,
		},
		{
			name:         "zero_lookup_depth",
			mutate:       func(configuration *syncpkg.RunConfiguration) { configuration.TagHistoryLookupDepth = 0 },
			expectedKind: syncpkg.KindUsage,
		},
		{
			name: "none_policy_with_tag_whitelist",
			mutate: func(configuration *syncpkg.RunConfiguration) {
				configuration.TagPolicy = rewrite.TagPolicyNone
				configuration.TagWhitelist = []string{"v1"}
			},
			expectedKind: syncpkg.KindConfigConflict,
		},
		{
			name: "none_policy_with_branch_prune",
			mutate: func(configuration *syncpkg.RunConfiguration) {
				configuration.TagPolicy = rewrite.TagPolicyNone
				configuration.PruneBranches = true
			},
			expectedKind: syncpkg.KindConfigConflict,
		},
		{
			name: "none_policy_with_tag_prune",
			mutate: func(configuration *syncpkg.RunConfiguration) {
				configuration.TagPolicy = rewrite.TagPolicyNone
				configuration.PruneTags = true
			},
			expectedKind: syncpkg.KindConfigConflict,
		},
		{
			name: "none_policy_alone_is_valid",
			mutate: func(configuration *syncpkg.RunConfiguration) {
				configuration.TagPolicy = rewrite.TagPolicyNone
			},
			expectValid: true,
		},
		{
			name: "none_policy_with_blank_tag_entries_is_valid",
			mutate: func(configuration *syncpkg.RunConfiguration) {
				configuration.TagPolicy = rewrite.TagPolicyNone
				configuration.TagBlacklist = []string{"  ", ""}
			},
			expectValid: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configuration := validRunConfiguration()
			testCase.mutate(&configuration)

			validationError := configuration.Validate()
			if testCase.expectValid {
				require.NoError(testInstance, validationError)
				return
			}

			require.Error(testInstance, validationError)
			failureKind, kindFound := syncpkg.KindOf(validationError)
			require.True(testInstance, kindFound)
			require.Equal(testInstance, testCase.expectedKind, failureKind)
		})
	}
}

func TestAppendSpaceSeparated(testInstance *testing.T) {
	appendedEntries := syncpkg.AppendSpaceSeparated([]string{"main"}, []string{"dev release/1", " rx:v.* "})
	require.Equal(testInstance, []string{"main", "dev", "release/1", "rx:v.*"}, appendedEntries)
}

func TestDefaultCommandConfiguration(testInstance *testing.T) {
	defaults := syncpkg.DefaultCommandConfiguration()
	require.Equal(testInstance, "./temp", defaults.WorkingDirectory)
	require.Equal(testInstance, "visited", defaults.TagsPlan)
	require.Equal(testInstance, 50, defaults.TagHistoryLookupDepth)
	require.True(testInstance, defaults.AtomicPush)
	require.True(testInstance, defaults.LockingEnabled)
	require.False(testInstance, defaults.PruneBranches)
	require.False(testInstance, defaults.PruneTags)
}
