package main

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTagList = "v-2022.Q2.3\nv-2022.Q3.1\nv-2023.Q1.1\n"

// newGitRunner answers the git and repo commands of a sync against a fake remote. Clones create the checkout
// directory; cloning AMDVLK also writes the given manifests into it.
func newGitRunner(t *testing.T, manifests map[string]string) *fakeRunner {
	return &fakeRunner{handler: func(cmd Command) (CommandResult, error) {
		args := cmd.Args
		switch {
		case cmd.Name == "git" && args[0] == "clone":
			checkout := filepath.Join(cmd.Dir, path.Base(args[1]))
			require.NoError(t, os.MkdirAll(checkout, 0755))
			if path.Base(args[1]) == rootRepoName {
				for name, content := range manifests {
					writeManifest(t, checkout, name, content)
				}
			}
		case cmd.Name == "git" && args[0] == "tag":
			return CommandResult{Output: sampleTagList}, nil
		case cmd.Name == "git" && args[0] == "log":
			return CommandResult{Output: "Update Khronos Vulkan Headers to 1.3.217\n\n"}, nil
		case cmd.Name == "git" && args[0] == "for-each-ref":
			return CommandResult{Output: "New feature and improvement\n  * Ray tracing\n"}, nil
		case cmd.Name == "repo" && args[0] == "sync":
			for name, content := range manifests {
				writeManifest(t, filepath.Join(cmd.Dir, "drivers", rootRepoName), name, content)
			}
		case cmd.Name == "repo" && args[0] == "list":
			return CommandResult{Output: "drivers/AMDVLK\n"}, nil
		}
		return CommandResult{}, nil
	}}
}

func countIn(runner *fakeRunner, dir string, line string) int {
	count := 0
	for _, cmd := range runner.commands {
		if cmd.Dir == dir && cmd.String() == line {
			count++
		}
	}
	return count
}

func TestFlatSync(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, map[string]string{"default.xml": sampleFlatManifest})
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyFlat}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	ctx := context.Background()
	state := &RunState{}

	strategy := newSyncStrategy(w)
	tags, err := strategy.SyncRoot(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"v-2022.Q2.3", "v-2022.Q3.1", "v-2023.Q1.1"}, tags)
	assert.Equal(t, filepath.Join(w.srcDir(), "AMDVLK"), state.RootDir)
	assert.Equal(t, w.srcDir(), state.DriverRoot)
	assert.Equal(t, 1, countIn(runner, w.srcDir(), "git clone https://github.com/GPUOpen-Drivers/AMDVLK"))

	state.Tag = "v-2023.Q1.1"
	require.NoError(t, strategy.CheckoutTag(ctx, state))
	assert.Equal(t, 1, countIn(runner, state.RootDir, "git checkout v-2023.Q1.1"))
	assert.Equal(t, "Update Khronos Vulkan Headers to 1.3.217", state.Description)

	// pal is cloned already and only gets fetched
	require.NoError(t, os.MkdirAll(filepath.Join(w.srcDir(), "pal"), 0755))
	require.NoError(t, strategy.SyncComponents(ctx, state))

	assert.Equal(t, 1, countIn(runner, filepath.Join(w.srcDir(), "pal"), "git fetch --tags origin"))
	assert.Equal(t, 0, runner.Count("git clone https://github.com/GPUOpen-Drivers/pal"))
	assert.Equal(t, 1, runner.Count("git clone https://github.com/GPUOpen-Drivers/llvm-project"))

	require.Len(t, state.Revisions, len(defaultComponents))
	for i, name := range defaultComponents {
		rev := state.Revisions[i]
		assert.Equal(t, name, rev.Name)
		dir := filepath.Join(w.srcDir(), name)
		assert.Equal(t, 1, countIn(runner, dir, "git clean -xdff"), name)
		assert.Equal(t, 1, countIn(runner, dir, "git checkout "+rev.Revision), name)
	}
}

func TestFlatSyncComponentMissingFromManifest(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, map[string]string{"default.xml": `<manifest>
  <project name="xgl" revision="1111111111111111111111111111111111111111" />
</manifest>
`})
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyFlat}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	ctx := context.Background()
	state := &RunState{}

	strategy := newSyncStrategy(w)
	_, err := strategy.SyncRoot(ctx, state)
	require.NoError(t, err)

	err = strategy.SyncComponents(ctx, state)
	assert.Equal(t, componentMissingFromManifest, errorCodeOf(err))
	assert.Contains(t, err.Error(), "pal")
	assert.Equal(t, 0, runner.Count("git clean"))
	assert.Equal(t, 1, runner.Count("git clone"))
}

func TestFlatSyncManifestMissing(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, nil)
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyFlat}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	state := &RunState{}

	strategy := newSyncStrategy(w)
	_, err := strategy.SyncRoot(context.Background(), state)
	require.NoError(t, err)

	err = strategy.SyncComponents(context.Background(), state)
	assert.Equal(t, manifestNotFound, errorCodeOf(err))
	assert.Contains(t, err.Error(), "Manifest file: ")
}

func TestRepoSyncPastCutover(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, map[string]string{repoInitManifest: sampleFlatManifest})
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyRepo, Jobs: 4}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	ctx := context.Background()
	state := &RunState{}

	strategy := newSyncStrategy(w)
	tags, err := strategy.SyncRoot(ctx, state)
	require.NoError(t, err)
	assert.Len(t, tags, 3)
	assert.Equal(t, []string{
		"repo init -u https://github.com/GPUOpen-Drivers/AMDVLK -b master -m build_with_tools.xml",
		"repo sync -j4",
		"repo list --path-only AMDVLK",
		"git tag",
	}, runner.Lines())
	assert.Equal(t, filepath.Join(w.srcDir(), "drivers", "AMDVLK"), state.RootDir)
	assert.Equal(t, filepath.Join(w.srcDir(), "drivers"), state.DriverRoot)

	state.Tag = "v-2023.Q1.1"
	require.NoError(t, strategy.CheckoutTag(ctx, state))
	assert.Equal(t, "New feature and improvement\n  * Ray tracing", state.Description)
	assert.Equal(t, 1, runner.Count("git for-each-ref --format=%(contents) refs/tags/v-2023.Q1.1"))

	require.NoError(t, strategy.SyncComponents(ctx, state))
	require.Len(t, state.Revisions, 7)
	xgl, found := state.Revisions.Get("xgl")
	require.True(t, found)
	assert.Equal(t, "drivers/xgl", xgl.Path)
	assert.Equal(t, 1, countIn(runner, filepath.Join(w.srcDir(), "drivers", "xgl"), "git checkout "+xgl.Revision))
	assert.Equal(t, 0, runner.Count("git clone"))
}

func TestRepoSyncLegacyTagUsesDefaultManifest(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, map[string]string{repoInitManifest: `<manifest></manifest>`, "default.xml": sampleFlatManifest})
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyRepo, Jobs: 8}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	ctx := context.Background()
	state := &RunState{}

	strategy := newSyncStrategy(w)
	_, err := strategy.SyncRoot(ctx, state)
	require.NoError(t, err)

	state.Tag = "v-2022.Q2.3"
	require.NoError(t, strategy.CheckoutTag(ctx, state))
	assert.Equal(t, "Update Khronos Vulkan Headers to 1.3.217", state.Description)
	assert.Equal(t, 0, runner.Count("git for-each-ref"))

	require.NoError(t, strategy.SyncComponents(ctx, state))
	assert.Len(t, state.Revisions, 7)
}

func TestRepoSyncCutoverTagUsesToolsManifest(t *testing.T) {
	t.Parallel()

	runner := newGitRunner(t, map[string]string{repoInitManifest: sampleFlatManifest})
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyRepo, Jobs: 8}, runner)
	require.NoError(t, os.MkdirAll(w.srcDir(), 0755))
	ctx := context.Background()
	state := &RunState{}

	strategy := newSyncStrategy(w)
	_, err := strategy.SyncRoot(ctx, state)
	require.NoError(t, err)

	state.Tag = defaultCutoverTag
	require.NoError(t, strategy.CheckoutTag(ctx, state))
	assert.Equal(t, 1, runner.Count("git for-each-ref --format=%(contents) refs/tags/v-2022.Q3.1"))
	assert.Equal(t, 0, runner.Count("git log"))

	require.NoError(t, strategy.SyncComponents(ctx, state))
	require.Len(t, state.Revisions, len(defaultComponents))
	for _, name := range defaultComponents {
		_, found := state.Revisions.Get(name)
		assert.True(t, found, name)
	}
	assert.Equal(t, len(defaultComponents), runner.Count("git clean -xdff"))
}

func TestUsesToolsManifest(t *testing.T) {
	t.Parallel()

	w := newTestWorkflow(t, ReleaseOptions{}, &fakeRunner{})

	testCases := []struct {
		tag      string
		expected bool
	}{
		{"v-2022.Q2.3", false},
		{"v-2022.Q3.1", true},
		{"v-2022.Q3.2", true},
		{"v-2023.Q1.1", true},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, w.usesToolsManifest(tc.tag), tc.tag)
	}
}

func TestRepoSyncUnknownRoot(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	w := newTestWorkflow(t, ReleaseOptions{ManifestStrategy: StrategyRepo, Jobs: 8}, runner)

	_, err := newSyncStrategy(w).SyncRoot(context.Background(), &RunState{})
	assert.Equal(t, manifestMalformed, errorCodeOf(err))
}
