// Package assets enumerates the files of a site directory as bucket objects.
//
// Every regular file below the root becomes exactly one Object keyed by its
// slash-separated relative path. Paths matching the optional .siteignore
// file (gitignore syntax) are skipped, as is the ignore file itself.
package assets

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/sha256-simd"
	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile is the name of the per-directory ignore file.
const IgnoreFile = ".siteignore"

// Object is one file destined for the bucket.
type Object struct {
	// Key is the object key, the path relative to the root with '/' separators.
	Key string `json:"key"`
	// Path is the file on disk.
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	// ETag is the hex MD5 of the content, matching the S3 ETag of a
	// single-part upload.
	ETag string `json:"etag"`
	// SHA256 is the base64 SHA-256 of the content, sent as the upload checksum.
	SHA256 string `json:"sha256"`
}

// Options control a scan.
type Options struct {
	// Exclude holds extra gitignore-style patterns applied after the
	// ignore file.
	Exclude []string
	// NoIgnoreFile disables reading IgnoreFile.
	NoIgnoreFile bool
}

// Scan walks root and returns its objects sorted by key.
func Scan(root string, opts Options) ([]Object, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("asset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset directory %s is not a directory", root)
	}

	matcher, err := loadMatcher(root, opts)
	if err != nil {
		return nil, err
	}

	var objects []Object
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		key := filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher != nil && matcher.MatchesPath(key+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if key == IgnoreFile {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(key) {
			return nil
		}

		obj, err := Describe(path, key)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// loadMatcher combines the ignore file and extra patterns. It returns nil
// when nothing is excluded.
func loadMatcher(root string, opts Options) (*ignore.GitIgnore, error) {
	var lines []string
	if !opts.NoIgnoreFile {
		data, err := os.ReadFile(filepath.Join(root, IgnoreFile))
		switch {
		case err == nil:
			lines = append(lines, strings.Split(string(data), "\n")...)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", IgnoreFile, err)
		}
	}
	lines = append(lines, opts.Exclude...)
	if len(lines) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(lines...), nil
}

// Describe reads one file and fingerprints it.
func Describe(path, key string) (Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	md5sum := md5.New()
	shasum := sha256.New()
	n, err := io.Copy(io.MultiWriter(md5sum, shasum), f)
	if err != nil {
		return Object{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return Object{
		Key:         key,
		Path:        path,
		Size:        n,
		ContentType: ContentType(key),
		ETag:        hex.EncodeToString(md5sum.Sum(nil)),
		SHA256:      base64.StdEncoding.EncodeToString(shasum.Sum(nil)),
	}, nil
}

// TotalSize sums the sizes of objs.
func TotalSize(objs []Object) int64 {
	var total int64
	for _, o := range objs {
		total += o.Size
	}
	return total
}
