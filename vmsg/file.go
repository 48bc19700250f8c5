package vmsg

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is the file name suffix of vMessage files.
const DefaultExtension = ".vmg"

var (
	ErrRootNotExist     = errors.New("source directory does not exist")
	ErrRootNotDirectory = errors.New("source path is not a directory")
)

// ParseFile parses the vMessage stored at path and fills in the file level
// fields of the record (ID, Path, Size, Hash). The file is always closed
// before ParseFile returns.
func ParseFile(path string, opts ...Option) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open vmg: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	res, err := Parse(io.TeeReader(file, hasher), opts...)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	// Parse drains its input, this only picks up bytes it did not read.
	size, err := io.Copy(hasher, file)
	if err != nil {
		return Result{}, fmt.Errorf("%s: hash: %w", path, err)
	}
	if info, statErr := file.Stat(); statErr == nil {
		size = info.Size()
	}

	res.Message.ID = filepath.Base(path)
	res.Message.Path = path
	res.Message.Size = size
	res.Message.Hash = base64.StdEncoding.EncodeToString(hasher.Sum(nil))
	return res, nil
}

// Discover returns the absolute paths of all files below root whose name
// ends in ext (case-insensitive), in lexical order.
func Discover(root, ext string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("source directory is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRootNotExist, root)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	ext = normalizeExtension(ext)

	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return paths, nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
