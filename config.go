package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const defaultMaintainer = "Advanced Micro Devices (AMD) <gpudriverdevsupport@amd.com>"
const defaultToolchainPrefix = "source scl_source enable devtoolset-7"

// Label suffixes shown next to the asset name on the release page, keyed by asset kind
const (
	assetKindDeb   = "deb"
	assetKindRpm   = "rpm"
	assetKindTools = "tools"
)

var defaultAssetLabels = map[string]string{
	assetKindDeb: "Ubuntu 18.04 20.04",
	assetKindRpm: "RedHat 7 8",
}

// Settings is the optional settings file. Values here sit underneath the command line flags.
type Settings struct {
	TargetRepo      string            `toml:"target_repo" yaml:"target_repo"`
	Components      []string          `toml:"components" yaml:"components"`
	CutoverTag      string            `toml:"cutover_tag" yaml:"cutover_tag"`
	AssetLabels     map[string]string `toml:"asset_labels" yaml:"asset_labels"`
	Maintainer      string            `toml:"maintainer" yaml:"maintainer"`
	ToolchainPrefix string            `toml:"toolchain_prefix" yaml:"toolchain_prefix"`
	Jobs            int               `toml:"jobs" yaml:"jobs"`
}

// LoadSettings reads a TOML or YAML settings file, chosen by extension
func LoadSettings(path string) (Settings, error) {
	var settings Settings

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, newErrorf(invalidSettingsFile, "Unable to read settings file %s: %s", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&settings)
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&settings)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return settings, newErrorf(invalidSettingsFile, "Settings file %s must end in .toml, .yaml or .yml", path)
	}
	if err != nil {
		return settings, newErrorf(invalidSettingsFile, "Settings file %s is invalid: %s", path, err)
	}

	return settings, nil
}

// applyTo fills options from the settings. flagIsSet reports whether a flag was given on the command line, in which
// case the flag keeps its value.
func (s Settings) applyTo(options *ReleaseOptions, flagIsSet func(name string) bool) {
	if s.TargetRepo != "" && !flagIsSet(optionTargetRepo) {
		options.TargetRepo = s.TargetRepo
	}
	if s.Jobs > 0 && !flagIsSet(optionJobs) {
		options.Jobs = s.Jobs
	}
	if len(s.Components) > 0 {
		options.Components = s.Components
	}
	if s.CutoverTag != "" {
		options.CutoverTag = s.CutoverTag
	}
	if s.Maintainer != "" {
		options.Maintainer = s.Maintainer
	}
	if s.ToolchainPrefix != "" {
		options.ToolchainPrefix = s.ToolchainPrefix
	}
	for kind, label := range s.AssetLabels {
		if options.AssetLabels == nil {
			options.AssetLabels = map[string]string{}
		}
		options.AssetLabels[kind] = label
	}
}
