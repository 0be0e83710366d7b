package main

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
)

func computeChecksum(filePath string, algorithm string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher, err := getHasher(algorithm)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(hasher, file)
	if err != nil {
		return "", err
	}

	return hasherToString(hasher), nil
}

// Return a hasher instance, the common interface used by all Golang hashing functions
func getHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "md5":
		return md5.New(), nil
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("The checksum algorithm \"%s\" is not supported", algorithm)
	}
}

// Convert a hasher instance to the string value of that hasher
func hasherToString(hasher hash.Hash) string {
	return hex.EncodeToString(hasher.Sum(nil))
}

// md5sumsFor returns the DEBIAN/md5sums content for a staging tree: one "<digest>  <path>" line per regular file
// outside DEBIAN, sorted by path
func md5sumsFor(stagingDir string) ([]byte, error) {
	var paths []string
	err := filepath.WalkDir(stagingDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if rel == "DEBIAN" {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	sort.Strings(paths)

	var sums strings.Builder
	for _, rel := range paths {
		digest, err := computeChecksum(filepath.Join(stagingDir, filepath.FromSlash(rel)), "md5")
		if err != nil {
			return nil, errors.WithStackTrace(err)
		}
		fmt.Fprintf(&sums, "%s  %s\n", digest, rel)
	}
	return []byte(sums.String()), nil
}

func writeMd5sums(stagingDir string) error {
	sums, err := md5sumsFor(stagingDir)
	if err != nil {
		return err
	}
	return errors.WithStackTrace(os.WriteFile(filepath.Join(stagingDir, "DEBIAN", "md5sums"), sums, 0644))
}
