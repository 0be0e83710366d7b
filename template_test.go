package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderControl(t *testing.T) {
	t.Parallel()

	out, err := RenderControl(PackageFields{Version: "2022.Q3.1", Arch: "i386", Maintainer: defaultMaintainer})
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Package: amdvlk\n")
	assert.Contains(t, text, "Version: 2022.Q3.1\n")
	assert.Contains(t, text, "Architecture: i386\n")
	assert.Contains(t, text, "Maintainer: "+defaultMaintainer+"\n")
	assert.Contains(t, text, "Multi-Arch: same\n")
	assert.NotContains(t, text, "{{")
	assert.True(t, strings.Index(text, "Package:") < strings.Index(text, "Version:"))
}

func TestRenderControlInvalidVersion(t *testing.T) {
	t.Parallel()

	_, err := RenderControl(PackageFields{Version: "Q3-latest", Arch: "amd64", Maintainer: defaultMaintainer})
	assert.Equal(t, invalidOption, errorCodeOf(err))
}

func TestRenderRpmSpec(t *testing.T) {
	t.Parallel()

	out, err := RenderRpmSpec(PackageFields{Version: "2023.Q1.2", Arch: "x86_64", Maintainer: "Release Bot <bot@example.com>"})
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Version: 2023.Q1.2\n")
	assert.Contains(t, text, "Buildarch: x86_64\n")
	assert.Contains(t, text, "Packager: Release Bot <bot@example.com>\n")
	assert.Contains(t, text, "/usr/lib64/amdvlk64.so\n")
	assert.NotContains(t, text, "{{")
}

func TestRenderChangelog(t *testing.T) {
	t.Parallel()

	out, err := RenderChangelog(ChangelogFields{
		Version:     "2022.Q3.1",
		Tag:         "v-2022.Q3.1",
		TargetRepo:  defaultTargetRepo,
		Description: "Update Khronos Vulkan Headers to 1.3.217\n\n",
		Revisions: ComponentRevisions{
			{Name: "xgl", Path: "xgl", Revision: "abc123"},
			{Name: "pal", Path: "pal", Revision: "def456"},
		},
	})
	require.NoError(t, err)

	expected := `amdvlk (2022.Q3.1) unstable; urgency=low

  * Checkout from https://github.com/GPUOpen-Drivers/AMDVLK at v-2022.Q3.1:
    https://github.com/GPUOpen-Drivers/xgl: abc123
    https://github.com/GPUOpen-Drivers/pal: def456

Update Khronos Vulkan Headers to 1.3.217

For more detailed information, please check https://github.com/GPUOpen-Drivers/AMDVLK/releases/tag/v-2022.Q3.1
`
	assert.Equal(t, expected, string(out))
}
