package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOptions_Defaults(t *testing.T) {
	o := ApplyOptions()
	assert.Equal(t, "", o.Model)
	assert.Equal(t, 0, o.MaxTokens)
	assert.Nil(t, o.Temperature)
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(
		WithModel("claude-sonnet-4-5"),
		WithMaxTokens(1024),
		WithTemperature(0.7),
	)

	assert.Equal(t, "claude-sonnet-4-5", o.Model)
	assert.Equal(t, 1024, o.MaxTokens)
	require.NotNil(t, o.Temperature)
	assert.Equal(t, 0.7, *o.Temperature)
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 7})
	assert.Equal(t, Usage{InputTokens: 13, OutputTokens: 12}, u)
}
