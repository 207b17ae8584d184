package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// discoverDirectories enumerates the immediate subdirectories of the source
// root, skipping hidden entries (this also excludes the .freight project
// directory). Failure to enumerate is fatal to the whole migration run.
func discoverDirectories(sourceRoot string) ([]string, error) {
	entries, err := os.ReadDir(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("enumerate source root %s: %w", sourceRoot, err)
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(sourceRoot, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}
