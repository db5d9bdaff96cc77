package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ErddapURLs:    []string{"http://one.example/erddap"},
		Formats:       []string{"ncCF", "das"},
		TableDatasets: true,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	noURLs := validConfig()
	noURLs.ErddapURLs = nil
	assert.Error(t, noURLs.Validate())

	noKinds := validConfig()
	noKinds.TableDatasets = false
	assert.Error(t, noKinds.Validate())

	idsWithOneURL := validConfig()
	idsWithOneURL.DatasetIDs = []string{"A", "B"}
	assert.NoError(t, idsWithOneURL.Validate())

	idsWithTwoURLs := idsWithOneURL
	idsWithTwoURLs.ErddapURLs = []string{"http://one.example", "http://two.example"}
	assert.Error(t, idsWithTwoURLs.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"ncCF", "das"}, SplitList("ncCF,das"))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a , ,b "))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"ncCF", "das"}, cfg.Formats)
	assert.Equal(t, "downloads", cfg.DownloadsFolder)
	assert.False(t, cfg.SkipExisting)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ERDDAP_URLS", "http://one.example,http://two.example")
	t.Setenv("SKIP_EXISTING", "true")
	t.Setenv("FORMATS", "nc")
	t.Setenv("TABLE_DATASETS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://one.example", "http://two.example"}, cfg.ErddapURLs)
	assert.True(t, cfg.SkipExisting)
	assert.Equal(t, []string{"nc"}, cfg.Formats)
	assert.True(t, cfg.TableDatasets)
}
