package filterspec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/filtersync/internal/filterspec"
)

const (
	testAcceptedSpecCaseNameConstant      = "accepted_mixed_spec"
	testPruneEmptyOnlyCaseNameConstant    = "prune_empty_only"
	testEmptySpecCaseNameConstant         = "empty_spec_rejected"
	testWhitespaceSpecCaseNameConstant    = "whitespace_spec_rejected"
	testTagNameFilterCaseNameConstant     = "tag_name_filter_rejected"
	testMissingArgumentCaseNameConstant   = "missing_argument_rejected"
	testUnknownTokenCaseNameConstant      = "unknown_token_rejected"
	testQuotedInlineSpecCaseNameConstant  = "quoted_inline_spec"
	testProfileFileNameConstant           = "profile.yaml"
	testProfileContentConstant            = "setup: \". ./helpers.sh\"\nfilters:\n  - phase: index\n    command: \"git rm --cached -q secrets.txt\"\nprune_empty: true\n"
	testIncompleteProfileContentConstant  = "filters:\n  - phase: tree\n"
	testProfileTagFilterContentConstant   = "filters:\n  - phase: tag-name\n    command: cat\n"
	testInlineSpecWithQuotedCommandConfig = `--index-filter 'git rm --cached -q secrets.txt' --prune-empty`
)

func TestValidate(testInstance *testing.T) {
	testCases := []struct {
		name               string
		specTokens         []string
		expectedError      bool
		expectedDirectives int
	}{
		{
			name:               testAcceptedSpecCaseNameConstant,
			specTokens:         []string{"--setup", ". ./helpers.sh", "--msg-filter", "sed -e s/foo/bar/", "--prune-empty"},
			expectedDirectives: 3,
		},
		{
			name:               testPruneEmptyOnlyCaseNameConstant,
			specTokens:         []string{"--prune-empty"},
			expectedDirectives: 1,
		},
		{
			name:          testEmptySpecCaseNameConstant,
			specTokens:    nil,
			expectedError: true,
		},
		{
			name:          testWhitespaceSpecCaseNameConstant,
			specTokens:    []string{"  ", ""},
			expectedError: true,
		},
		{
			name:          testTagNameFilterCaseNameConstant,
			specTokens:    []string{"--prune-empty", "--tag-name-filter", "cat"},
			expectedError: true,
		},
		{
			name:          testMissingArgumentCaseNameConstant,
			specTokens:    []string{"--tree-filter"},
			expectedError: true,
		},
		{
			name:          testUnknownTokenCaseNameConstant,
			specTokens:    []string{"--force"},
			expectedError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			validatedSpec, validationError := filterspec.Validate(testCase.specTokens)
			if testCase.expectedError {
				require.Error(testInstance, validationError)
				require.IsType(testInstance, filterspec.ValidationError{}, validationError)
				return
			}
			require.NoError(testInstance, validationError)
			require.Len(testInstance, validatedSpec.Directives, testCase.expectedDirectives)
		})
	}
}

func TestParseInlineHonorsShellQuoting(testInstance *testing.T) {
	testInstance.Run(testQuotedInlineSpecCaseNameConstant, func(testInstance *testing.T) {
		parsedSpec, parseError := filterspec.ParseInline(testInlineSpecWithQuotedCommandConfig)
		require.NoError(testInstance, parseError)
		require.Len(testInstance, parsedSpec.Directives, 2)
		require.Equal(testInstance, "--index-filter", parsedSpec.Directives[0].Token)
		require.Equal(testInstance, "git rm --cached -q secrets.txt", parsedSpec.Directives[0].Argument)
		require.Equal(testInstance, []string{"--index-filter", "git rm --cached -q secrets.txt", "--prune-empty"}, parsedSpec.EngineArguments())
	})
}

func TestParseProfile(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	profilePath := filepath.Join(temporaryDirectory, testProfileFileNameConstant)
	require.NoError(testInstance, os.WriteFile(profilePath, []byte(testProfileContentConstant), 0o600))

	parsedSpec, parseError := filterspec.Parse("@" + profilePath)
	require.NoError(testInstance, parseError)
	require.Len(testInstance, parsedSpec.Directives, 3)
	require.Equal(testInstance, "--setup", parsedSpec.Directives[0].Token)
	require.Equal(testInstance, "--index-filter", parsedSpec.Directives[1].Token)
	require.Equal(testInstance, "--prune-empty", parsedSpec.Directives[2].Token)
}

func TestParseProfileRejectsIncompleteEntries(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	profilePath := filepath.Join(temporaryDirectory, testProfileFileNameConstant)
	require.NoError(testInstance, os.WriteFile(profilePath, []byte(testIncompleteProfileContentConstant), 0o600))

	_, parseError := filterspec.Parse("@" + profilePath)
	require.Error(testInstance, parseError)
}

func TestParseProfileCannotSmuggleTagNameFilter(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	profilePath := filepath.Join(temporaryDirectory, testProfileFileNameConstant)
	require.NoError(testInstance, os.WriteFile(profilePath, []byte(testProfileTagFilterContentConstant), 0o600))

	_, parseError := filterspec.Parse("@" + profilePath)
	require.Error(testInstance, parseError)
}

func TestParseProfileMissingFile(testInstance *testing.T) {
	_, parseError := filterspec.Parse("@/nonexistent/profile.yaml")
	require.Error(testInstance, parseError)
}
