package main

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gruntwork-io/go-commons/collections"
	"github.com/hashicorp/go-version"
)

// Release tags look like v-2022.Q3.1
const releaseTagPrefix = "v-"

// Tags up to and including this one carry the legacy manifest layout
const defaultCutoverTag = "v-2022.Q3.1"

var quarterSegment = regexp.MustCompile(`^[Qq]([0-9]+)$`)
var numericSegment = regexp.MustCompile(`^[0-9]+$`)

// tagVersion strips the release prefix: v-2022.Q3.1 becomes 2022.Q3.1
func tagVersion(tag string) string {
	return strings.TrimPrefix(tag, releaseTagPrefix)
}

// parseTagVersion turns the dotted version of a release tag into a comparable version. Quarter segments (Q3) count
// as their number.
func parseTagVersion(tag string) (*version.Version, error) {
	segments := strings.Split(tagVersion(tag), ".")
	normalized := make([]string, 0, len(segments))

	for _, segment := range segments {
		if match := quarterSegment.FindStringSubmatch(segment); match != nil {
			normalized = append(normalized, match[1])
			continue
		}
		if !numericSegment.MatchString(segment) {
			return nil, fmt.Errorf("tag %s has a non-numeric version segment %q", tag, segment)
		}
		normalized = append(normalized, segment)
	}

	return version.NewVersion(strings.Join(normalized, "."))
}

// compareTags orders release tags by parsed version. Unparseable tags sort before every parseable one, and equal
// versions fall back to the raw names.
func compareTags(a, b string) int {
	va, errA := parseTagVersion(a)
	vb, errB := parseTagVersion(b)

	switch {
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB != nil:
		return 1
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
	}

	return strings.Compare(a, b)
}

// isTagNewer reports whether tag a is strictly newer than tag b
func isTagNewer(a, b string) bool {
	return compareTags(a, b) > 0
}

// filterReleaseTags keeps only the names carrying the release prefix, in the order given
func filterReleaseTags(tags []string) []string {
	var candidates []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, releaseTagPrefix) {
			candidates = append(candidates, tag)
		}
	}
	return candidates
}

func sortTags(tags []string) []string {
	sorted := append([]string(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareTags(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// resolveTag picks the tag to act on: the requested one when given, otherwise the newest release tag. A tag that
// already has a published release yields errNothingToRelease.
func resolveTag(requested string, tags []string, released []string) (string, error) {
	candidates := filterReleaseTags(tags)
	if len(candidates) == 0 {
		return "", newError(noTagsFound, "No tags found")
	}

	var tag string
	if requested != "" {
		if !collections.ListContainsElement(candidates, requested) {
			return "", newErrorf(tagNotFound, "Not a valid tag: %s", requested)
		}
		tag = requested
	} else {
		sorted := sortTags(candidates)
		tag = sorted[len(sorted)-1]
	}

	if collections.ListContainsElement(released, tag) {
		return tag, fmt.Errorf("%s is released already: %w", tag, errNothingToRelease)
	}

	return tag, nil
}
