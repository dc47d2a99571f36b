package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/filtersync/internal/utils"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: debug\nsync:\n  workdir: /var/filtersync\n"
	testEmbeddedContentConstant       = "common:\n  log_level: warn\n  log_format: structured\n"
	testEnvironmentPrefixConstant     = "FILTERSYNCTEST"
)

type testConfiguration struct {
	Common struct {
		LogLevel  string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"common"`
	Sync struct {
		WorkingDirectory string `mapstructure:"workdir"`
	} `mapstructure:"sync"`
}

func newTestLoader() *utils.ConfigurationLoader {
	return utils.NewConfigurationLoader(utils.LoaderOptions{
		ConfigurationName: "config",
		ConfigurationType: "yaml",
		EnvironmentPrefix: testEnvironmentPrefixConstant,
		SearchPaths:       []string{},
	})
}

func TestLoadConfigurationAppliesDefaultsWithoutFile(testInstance *testing.T) {
	loader := newTestLoader()

	var loadedValues testConfiguration
	loadedMetadata, loadError := loader.LoadConfiguration("", map[string]any{"common.log_level": "info"}, &loadedValues)
	require.NoError(testInstance, loadError)
	require.Empty(testInstance, loadedMetadata.ConfigFileUsed)
	require.Equal(testInstance, "info", loadedValues.Common.LogLevel)
}

func TestLoadConfigurationReadsExplicitFile(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))

	loader := newTestLoader()

	var loadedValues testConfiguration
	loadedMetadata, loadError := loader.LoadConfiguration(configurationPath, nil, &loadedValues)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, configurationPath, loadedMetadata.ConfigFileUsed)
	require.Equal(testInstance, "debug", loadedValues.Common.LogLevel)
	require.Equal(testInstance, "/var/filtersync", loadedValues.Sync.WorkingDirectory)
}

func TestLoadConfigurationMergesEmbeddedBeneathFile(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))

	loader := newTestLoader()
	loader.SetEmbeddedConfiguration([]byte(testEmbeddedContentConstant))

	var loadedValues testConfiguration
	_, loadError := loader.LoadConfiguration(configurationPath, nil, &loadedValues)
	require.NoError(testInstance, loadError)
	// The file overrides the embedded level; the embedded format survives.
	require.Equal(testInstance, "debug", loadedValues.Common.LogLevel)
	require.Equal(testInstance, "structured", loadedValues.Common.LogFormat)
}

func TestLoadConfigurationRejectsMalformedFile(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte("common: ["), 0o600))

	loader := newTestLoader()

	var loadedValues testConfiguration
	_, loadError := loader.LoadConfiguration(configurationPath, nil, &loadedValues)
	require.Error(testInstance, loadError)
}
