package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	defer func(v, h string) { Version, GitHash = v, h }(Version, GitHash)

	Version, GitHash = "v1.2.0", ""
	assert.Equal(t, "v1.2.0", GetVersion())

	GitHash = "0123456789abcdef"
	assert.Equal(t, "v1.2.0-0123456", GetVersion())

	Version, GitHash = "", ""
	assert.NotEmpty(t, GetVersion())
}
