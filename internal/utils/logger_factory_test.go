package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/filtersync/internal/utils"
)

const (
	testSupportedCombinationCaseNameConstant = "supported_combination"
	testUnknownLevelCaseNameConstant         = "unknown_level"
	testUnknownFormatCaseNameConstant        = "unknown_format"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logLevel      utils.LogLevel
		logFormat     utils.LogFormat
		expectedError bool
	}{
		{
			name:      testSupportedCombinationCaseNameConstant,
			logLevel:  utils.LogLevelDebug,
			logFormat: utils.LogFormatStructured,
		},
		{
			name:      "console_format",
			logLevel:  utils.LogLevelWarn,
			logFormat: utils.LogFormatConsole,
		},
		{
			name:          testUnknownLevelCaseNameConstant,
			logLevel:      utils.LogLevel("verbose"),
			logFormat:     utils.LogFormatStructured,
			expectedError: true,
		},
		{
			name:          testUnknownFormatCaseNameConstant,
			logLevel:      utils.LogLevelInfo,
			logFormat:     utils.LogFormat("plain"),
			expectedError: true,
		},
	}

	loggerFactory := utils.NewLoggerFactory()

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			logger, creationError := loggerFactory.CreateLogger(testCase.logLevel, testCase.logFormat)
			if testCase.expectedError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, logger)
		})
	}
}
