package path

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var SkipDirs = []string{".git", ".github", ".vscode", "node_modules", "dist", "build", "target", "vendor", ".venv", "logs"}

// FirstExisting returns the first candidate file under dir that exists.
func FirstExisting(fs afero.Fs, dir string, candidates []string) (string, bool) {
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if FileExists(fs, p) {
			return p, true
		}
	}

	return "", false
}

// GetAllFilesRecursive lists the files under root whose names end with one of the suffixes, sorted by path.
func GetAllFilesRecursive(afs afero.Fs, root string, suffixes []string) ([]string, error) {
	var paths []string
	err := afero.Walk(afs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && slices.Contains(SkipDirs, info.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		for _, s := range suffixes {
			if strings.HasSuffix(path, s) {
				paths = append(paths, path)
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error walking directory %s", root)
	}

	sort.Strings(paths)
	return paths, nil
}
