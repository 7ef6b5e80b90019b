package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	assert.Contains(t, String(), "mtcmidi version dev")

	orig := Commit
	t.Cleanup(func() { Commit = orig })
	Commit = "0123456789abcdef"
	assert.Contains(t, String(), "commit: 01234567")
	assert.Equal(t, "dev (01234567)", Short())
}

func TestJSON(t *testing.T) {
	var info Info
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.Platform)
}
