package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gpuopen-tools/vkrelease/source"
	_ "github.com/gpuopen-tools/vkrelease/source/github" // Register GitHub source
	_ "github.com/gpuopen-tools/vkrelease/source/gitlab" // Register GitLab source
	"github.com/gruntwork-io/go-commons/logging"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// This variable is set at build time using -ldflags parameters. For more info, see:
// http://stackoverflow.com/a/11355611/483528
var VERSION string

type RunType string

const (
	RunBuild   RunType = "build"
	RunRelease RunType = "release"
	RunAll     RunType = "all"
)

type ManifestStrategy string

const (
	StrategyFlat ManifestStrategy = "flat"
	StrategyRepo ManifestStrategy = "repo"
)

type ReleaseOptions struct {
	WorkDir          string
	AccessToken      string
	TargetRepo       string
	BuildTag         string
	Type             RunType
	ManifestStrategy ManifestStrategy
	SourceType       string // "github", "gitlab", or "auto"
	GithubApiVersion string
	Jobs             int
	NativePackages   bool
	RpmAsset         bool
	ToolsAssets      bool
	VerboseCommands  bool
	SettingsPath     string
	Distro           string

	// Settings file values, defaulted when no file is given
	Components      []string
	CutoverTag      string
	Maintainer      string
	ToolchainPrefix string
	AssetLabels     map[string]string

	// Project logger
	Logger *logrus.Entry
}

const optionWorkDir = "work-dir"
const optionAccessToken = "access-token"
const optionTargetRepo = "target-repo"
const optionBuildTag = "build-tag"
const optionType = "type"
const optionManifestStrategy = "manifest-strategy"
const optionSource = "source"
const optionGithubAPIVersion = "github-api-version"
const optionJobs = "jobs"
const optionNativePackages = "native-packages"
const optionRpmAsset = "rpm-asset"
const optionToolsAssets = "tools-assets"
const optionVerboseCommands = "verbose-commands"
const optionConfig = "config"
const optionLogLevel = "log-level"
const optionDistro = "distro"

const envVarGithubToken = "GITHUB_OAUTH_TOKEN"

const defaultTargetRepo = "https://github.com/GPUOpen-Drivers/"

// Create the vkrelease CLI App
func CreateReleaseCli(version string, writer io.Writer, errwriter io.Writer) *cli.App {
	app := &cli.App{
		Name:      "vkrelease",
		Usage:     "vkrelease builds the AMD open source Vulkan driver for a release tag, packages it and publishes the packages as release assets.",
		UsageText: "vkrelease [global options]",
		Version:   version,
		Writer:    writer,
		ErrWriter: errwriter,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    optionWorkDir,
				Aliases: []string{"w"},
				Usage:   "The directory holding the sources, staging trees and produced packages. Defaults to the current directory.",
			},
			&cli.StringFlag{
				Name:    optionAccessToken,
				Aliases: []string{"a"},
				Usage:   "Required. The access token of the release hosting service. Populate by setting env var",
				EnvVars: []string{envVarGithubToken},
			},
			&cli.StringFlag{
				Name:    optionTargetRepo,
				Aliases: []string{"t"},
				Value:   defaultTargetRepo,
				Usage:   "The base URL the AMDVLK and component repositories are cloned from.",
			},
			&cli.StringFlag{
				Name:    optionBuildTag,
				Aliases: []string{"b"},
				Usage:   "The release tag to act on. If left blank, the latest v- tag is used.",
			},
			&cli.StringFlag{
				Name:  optionType,
				Value: string(RunBuild),
				Usage: "What to do with the tag: \"build\", \"release\" or \"all\".",
			},
			&cli.StringFlag{
				Name:  optionManifestStrategy,
				Value: string(StrategyRepo),
				Usage: "How components are synchronized: \"flat\" (clone each component and read revisions from default.xml)\n\tor \"repo\" (repo init/sync against the manifest repository).",
			},
			&cli.StringFlag{
				Name:    optionSource,
				Aliases: []string{"s"},
				Value:   "auto",
				Usage:   "The release hosting type: \"github\", \"gitlab\", or \"auto\" (auto-detect from the target repo).",
			},
			&cli.StringFlag{
				Name:  optionGithubAPIVersion,
				Value: "v3",
				Usage: "The api version of the GitHub instance. Only used if the target repo is not on github.com.",
			},
			&cli.IntFlag{
				Name:    optionJobs,
				Aliases: []string{"j"},
				Value:   8,
				Usage:   "The number of parallel jobs handed to repo sync.",
			},
			&cli.BoolFlag{
				Name:  optionNativePackages,
				Usage: "Build the makePackage target and take the packages it produces instead of assembling them.",
			},
			&cli.BoolFlag{
				Name:  optionRpmAsset,
				Usage: "Also expect and upload the RPM package when releasing.",
			},
			&cli.BoolFlag{
				Name:  optionToolsAssets,
				Usage: "Also expect and upload the amdllpc tool archives when releasing.",
			},
			&cli.BoolFlag{
				Name:  optionVerboseCommands,
				Usage: "Stream the output of external commands to the log.",
			},
			&cli.StringFlag{
				Name:  optionConfig,
				Usage: "A TOML or YAML settings file (components, cutover tag, asset labels, maintainer, toolchain prefix).",
			},
			&cli.StringFlag{
				Name:  optionLogLevel,
				Value: logrus.InfoLevel.String(),
				Usage: "The logging level of the command. Acceptable values\n\tare \"trace\", \"debug\", \"info\", \"warn\", \"error\", \"fatal\" and \"panic\".",
			},
			&cli.StringFlag{
				Name:  optionDistro,
				Usage: "Skip distribution detection and package for \"deb\" or \"rpm\".",
			},
		},
		Before: initLogger,
		Action: runReleaseWrapper,
	}

	return app
}

func main() {
	app := CreateReleaseCli(VERSION, os.Stdout, os.Stderr)

	// Run the definition of App.Action
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

// initLogger initializes the Logger before any command is actually executed. This function will handle all the setup
// code, such as setting up the logger with the appropriate log level.
func initLogger(cliContext *cli.Context) error {
	// Set logging level
	logLevel := cliContext.String(optionLogLevel)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("Error: %s", err)
	}
	logging.SetGlobalLogLevel(level)
	return nil
}

// We just want to call runRelease(), but app.Action won't permit us to return an error, so call a wrapper function instead.
func runReleaseWrapper(c *cli.Context) error {
	// initialize the logger
	logger := GetProjectLogger()
	err := runRelease(c.Context, c, logger, NewExecRunner(logger, c.Bool(optionVerboseCommands)), nil)
	if errors.Is(err, errNothingToRelease) {
		logger.Infof("%s", err)
		return nil
	}
	if err != nil {
		logger.Errorf("%s\n", err)
		if message := getErrorMessage(errorCodeOf(err), err.Error()); message != "" {
			fmt.Fprint(c.App.ErrWriter, message)
		}
		os.Exit(-1)
	}
	return nil
}

// Run the release program. A nil src means the hosting source is created from the options.
func runRelease(ctx context.Context, c *cli.Context, logger *logrus.Entry, runner CommandRunner, src source.Source) error {
	options, err := parseOptions(c, logger)
	if err != nil {
		return err
	}
	if err := validateOptions(options); err != nil {
		return err
	}

	workflow, err := NewWorkflow(options, runner, src)
	if err != nil {
		return err
	}
	return workflow.Run(ctx)
}

func parseOptions(c *cli.Context, logger *logrus.Entry) (ReleaseOptions, error) {
	workDir := c.String(optionWorkDir)
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ReleaseOptions{}, wrapError(invalidOption, err)
		}
		workDir = cwd
	}

	labels := make(map[string]string, len(defaultAssetLabels))
	for kind, label := range defaultAssetLabels {
		labels[kind] = label
	}

	options := ReleaseOptions{
		WorkDir:          workDir,
		AccessToken:      c.String(optionAccessToken),
		TargetRepo:       c.String(optionTargetRepo),
		BuildTag:         c.String(optionBuildTag),
		Type:             RunType(c.String(optionType)),
		ManifestStrategy: ManifestStrategy(c.String(optionManifestStrategy)),
		SourceType:       c.String(optionSource),
		GithubApiVersion: c.String(optionGithubAPIVersion),
		Jobs:             c.Int(optionJobs),
		NativePackages:   c.Bool(optionNativePackages),
		RpmAsset:         c.Bool(optionRpmAsset),
		ToolsAssets:      c.Bool(optionToolsAssets),
		VerboseCommands:  c.Bool(optionVerboseCommands),
		SettingsPath:     c.String(optionConfig),
		Distro:           c.String(optionDistro),
		Components:       defaultComponents,
		CutoverTag:       defaultCutoverTag,
		Maintainer:       defaultMaintainer,
		ToolchainPrefix:  defaultToolchainPrefix,
		AssetLabels:      labels,
		Logger:           logger,
	}

	if options.SettingsPath != "" {
		settings, err := LoadSettings(options.SettingsPath)
		if err != nil {
			return options, err
		}
		settings.applyTo(&options, c.IsSet)
	}

	if options.TargetRepo != "" && !strings.HasSuffix(options.TargetRepo, "/") {
		options.TargetRepo += "/"
	}

	return options, nil
}

func validateOptions(options ReleaseOptions) error {
	if options.AccessToken == "" {
		return newErrorf(missingAccessToken, "The --%s flag is required. Set it or the %s env var. Run \"vkrelease --help\" for full usage info.", optionAccessToken, envVarGithubToken)
	}

	if options.TargetRepo == "" {
		return newErrorf(invalidOption, "The --%s flag must not be empty.", optionTargetRepo)
	}

	switch options.Type {
	case RunBuild, RunRelease, RunAll:
	default:
		return newErrorf(invalidOption, "Invalid --%s value: %s. Valid values are: build, release, all", optionType, options.Type)
	}

	switch options.ManifestStrategy {
	case StrategyFlat, StrategyRepo:
	default:
		return newErrorf(invalidOption, "Invalid --%s value: %s. Valid values are: flat, repo", optionManifestStrategy, options.ManifestStrategy)
	}

	// Validate source type
	validSourceTypes := map[string]bool{"auto": true, "github": true, "gitlab": true}
	if !validSourceTypes[options.SourceType] {
		return newErrorf(invalidOption, "Invalid --%s value: %s. Valid values are: auto, github, gitlab", optionSource, options.SourceType)
	}

	if options.Jobs < 1 {
		return newErrorf(invalidOption, "The --%s value must be at least 1, got %d.", optionJobs, options.Jobs)
	}

	if options.Distro != "" {
		if _, err := ParseDistribution(options.Distro); err != nil {
			return newErrorf(invalidOption, "Invalid --%s value: %s. Valid values are: deb, rpm", optionDistro, options.Distro)
		}
	}

	if len(options.Components) == 0 {
		return newError(invalidOption, "The tracked component list must not be empty.")
	}

	if _, err := parseTagVersion(options.CutoverTag); err != nil {
		return newErrorf(invalidOption, "The cutover tag %s is not a release tag: %s", options.CutoverTag, err)
	}

	return nil
}

func getErrorMessage(errorCode int, errorDetails string) string {
	switch errorCode {
	case missingAccessToken:
		return fmt.Sprintf(`
An access token is needed to list the releases that already exist and to publish new ones.

Pass it with --%s or export %s.

Underlying error message:
%s
`, optionAccessToken, envVarGithubToken, errorDetails)
	case componentMissingFromManifest:
		return fmt.Sprintf(`
The manifest of the tag does not pin every tracked component, so the checkout would mix revisions.

Either the component list in your settings file is out of date, or the manifest for this tag is incomplete.

Underlying error message:
%s
`, errorDetails)
	case artifactMissing:
		return fmt.Sprintf(`
An expected package or tool archive is not in the work directory. Nothing was published.

Run with --%s=%s (or %s) for this tag first, then release again.

Underlying error message:
%s
`, optionType, RunBuild, RunAll, errorDetails)
	case hostingApiFailed:
		return fmt.Sprintf(`
The release hosting service rejected a request.

This usually means the access token is invalid or lacks write access to the repository.
If the release was already created, delete it before running again.

Underlying error message:
%s
`, errorDetails)
	}

	return ""
}
