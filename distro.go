package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gruntwork-io/go-commons/collections"
	"github.com/sirupsen/logrus"
)

type PackageFormat string

const (
	FormatDeb PackageFormat = "deb"
	FormatRpm PackageFormat = "rpm"
)

// Arch is a build architecture, named by its pointer width
type Arch string

const (
	Arch64 Arch = "64"
	Arch32 Arch = "32"
)

// DebArch returns the Debian architecture name
func (a Arch) DebArch() string {
	if a == Arch32 {
		return "i386"
	}
	return "amd64"
}

// DebLibDir returns the multiarch library directory relative to the package root
func (a Arch) DebLibDir() string {
	if a == Arch32 {
		return "usr/lib/i386-linux-gnu"
	}
	return "usr/lib/x86_64-linux-gnu"
}

// BuildDir returns the cmake build directory relative to the driver root
func (a Arch) BuildDir() string {
	return "xgl/Release" + string(a)
}

// Distribution is the host packaging flavour. Every packaging decision branches on it.
type Distribution struct {
	Name    string
	Format  PackageFormat
	IcdJson string // directory under the AMDVLK checkout holding the ICD descriptors
	Archs   []Arch
}

var DistroDebian = Distribution{
	Name:    "Ubuntu",
	Format:  FormatDeb,
	IcdJson: "json/Ubuntu",
	Archs:   []Arch{Arch64, Arch32},
}

var DistroRpm = Distribution{
	Name:    "RHEL",
	Format:  FormatRpm,
	IcdJson: "json/Redhat",
	Archs:   []Arch{Arch64},
}

const osReleasePath = "/etc/os-release"

var lsbDebianIds = []string{"Ubuntu", "Debian"}
var lsbRpmIds = []string{"RedHatEnterprise", "RedHatEnterpriseWorkstation", "RedHatEnterpriseServer", "CentOS", "Fedora", "Rocky", "AlmaLinux"}

var osReleaseDebianIds = []string{"ubuntu", "debian"}
var osReleaseRpmIds = []string{"rhel", "centos", "fedora", "rocky", "almalinux"}

// ParseDistribution maps the --distro override onto a Distribution
func ParseDistribution(name string) (Distribution, error) {
	switch strings.ToLower(name) {
	case "deb", "ubuntu", "debian":
		return DistroDebian, nil
	case "rpm", "rhel", "redhat":
		return DistroRpm, nil
	}
	return Distribution{}, newErrorf(unknownDistribution, "Unknown Linux distribution: %s", name)
}

// DetectDistribution asks lsb_release for the distributor id and falls back to the ID field of os-release when
// lsb_release is not installed
func DetectDistribution(ctx context.Context, runner CommandRunner, osRelease string, logger *logrus.Entry) (Distribution, error) {
	result, err := runner.Run(ctx, Command{Name: "lsb_release", Args: []string{"-is"}})
	if err == nil && result.ExitCode == 0 {
		id := strings.TrimSpace(result.Output)
		logger.Debugf("lsb_release reports %s", id)
		return distributionFromLsbId(id)
	}

	logger.Debugf("lsb_release unavailable, reading %s", osRelease)
	ids, readErr := readOsReleaseIds(osRelease)
	if readErr != nil {
		return Distribution{}, newErrorf(unknownDistribution, "Unknown Linux distribution: lsb_release failed and %s is unreadable: %s", osRelease, readErr)
	}
	for _, id := range ids {
		if collections.ListContainsElement(osReleaseDebianIds, id) {
			return DistroDebian, nil
		}
		if collections.ListContainsElement(osReleaseRpmIds, id) {
			return DistroRpm, nil
		}
	}
	return Distribution{}, newErrorf(unknownDistribution, "Unknown Linux distribution: %s", strings.Join(ids, " "))
}

func distributionFromLsbId(id string) (Distribution, error) {
	if collections.ListContainsElement(lsbDebianIds, id) {
		return DistroDebian, nil
	}
	if collections.ListContainsElement(lsbRpmIds, id) {
		return DistroRpm, nil
	}
	return Distribution{}, newErrorf(unknownDistribution, "Unknown Linux distribution: %s", id)
}

// readOsReleaseIds returns ID followed by the entries of ID_LIKE, lower-cased
func readOsReleaseIds(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var id string
	var like []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		value = strings.ToLower(strings.Trim(value, `"'`))
		switch key {
		case "ID":
			id = value
		case "ID_LIKE":
			like = strings.Fields(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if id == "" && len(like) == 0 {
		return nil, fmt.Errorf("no ID in %s", path)
	}

	return append([]string{id}, like...), nil
}
