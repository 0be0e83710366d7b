package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLatestTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tags        []string
		expectedTag string
	}{
		{[]string{"v-2022.Q3.1"}, "v-2022.Q3.1"},
		{[]string{"v-2022.Q2.3", "v-2022.Q3.1", "v-2021.Q4.2"}, "v-2022.Q3.1"},
		{[]string{"v-2022.Q3.1", "v-2022.Q3.10", "v-2022.Q3.9"}, "v-2022.Q3.10"},
		{[]string{"v-2023.Q1.1", "v-2022.Q4.3", "release-2024", "2025.Q1.1"}, "v-2023.Q1.1"},
		{[]string{"v-1.0", "v-2020.Q1.1"}, "v-2020.Q1.1"},
		{[]string{"v-2022.Q3.1", "v-preview"}, "v-2022.Q3.1"},
		{[]string{"v-preview", "v-beta"}, "v-preview"},
		{[]string{" v-2022.Q3.1 ", "v-2022.Q2.1"}, "v-2022.Q3.1"},
	}

	for _, tc := range cases {
		tag, err := resolveTag("", tc.tags, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.expectedTag, tag, "tags %v", tc.tags)
	}
}

func TestResolveRequestedTag(t *testing.T) {
	t.Parallel()

	tags := []string{"v-2022.Q2.3", "v-2022.Q3.1", "list"}

	tag, err := resolveTag("v-2022.Q2.3", tags, nil)
	require.NoError(t, err)
	assert.Equal(t, "v-2022.Q2.3", tag)

	_, err = resolveTag("list", tags, nil)
	require.Error(t, err)
	assert.Equal(t, tagNotFound, errorCodeOf(err))
	assert.Contains(t, err.Error(), "Not a valid tag: list")

	_, err = resolveTag("v-2030.Q1.1", tags, nil)
	assert.Equal(t, tagNotFound, errorCodeOf(err))
}

func TestResolveTagWithoutCandidates(t *testing.T) {
	t.Parallel()

	for _, tags := range [][]string{nil, {}, {"1.0", "dev", "vv-1"}} {
		_, err := resolveTag("", tags, nil)
		require.Error(t, err)
		assert.Equal(t, noTagsFound, errorCodeOf(err))
		assert.Contains(t, err.Error(), "No tags found")
	}
}

func TestResolveAlreadyReleasedTag(t *testing.T) {
	t.Parallel()

	tags := []string{"v-2022.Q2.3", "v-2022.Q3.1"}
	released := []string{"v-2022.Q3.1"}

	tag, err := resolveTag("", tags, released)
	assert.Equal(t, "v-2022.Q3.1", tag)
	assert.True(t, errors.Is(err, errNothingToRelease))

	_, err = resolveTag("v-2022.Q3.1", tags, released)
	assert.True(t, errors.Is(err, errNothingToRelease))

	tag, err = resolveTag("v-2022.Q2.3", tags, released)
	require.NoError(t, err)
	assert.Equal(t, "v-2022.Q2.3", tag)
}

func TestIsTagNewer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a        string
		b        string
		expected bool
	}{
		{"v-2022.Q4.1", "v-2022.Q3.1", true},
		{"v-2022.Q3.1", "v-2022.Q3.1", false},
		{"v-2022.Q3.2", "v-2022.Q3.1", true},
		{"v-2022.Q3.10", "v-2022.Q3.9", true},
		{"v-2023.Q1.1", "v-2022.Q4.3", true},
		{"v-2022.Q2.3", "v-2022.Q3.1", false},
		{"v-preview", "v-2022.Q3.1", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, isTagNewer(tc.a, tc.b), "%s newer than %s", tc.a, tc.b)
	}
}

func TestTagVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2022.Q3.1", tagVersion("v-2022.Q3.1"))

	v, err := parseTagVersion("v-2022.q3.1")
	require.NoError(t, err)
	assert.Equal(t, "2022.3.1", v.String())

	_, err = parseTagVersion("v-2022.Q3.rc1")
	assert.Error(t, err)
}
