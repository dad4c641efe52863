package fetcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Collect expands a mixed list of file and directory arguments into the
// flat list of files to archive. Directories are walked recursively;
// hidden files and hidden directories are skipped. Order follows the
// argument order, with directory contents in lexical walk order.
func Collect(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: stat %s", arg)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if hidden(d.Name()) && path != arg {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: walk %s", arg)
		}
	}
	return files, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
