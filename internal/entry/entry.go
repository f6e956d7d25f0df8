// Package entry discovers the entry scripts of a project.
package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"

	"github.com/remixure/remixure/internal/config"
	rerrors "github.com/remixure/remixure/internal/errors"
)

// RuntimeName is reserved for the shared runtime chunk.
const RuntimeName = "runtime"

var scriptPattern = regexp.MustCompile(`\.js(x*)$`)

// Map maps a bundle name to the absolute path of its entry script.
type Map map[string]string

// Names returns the bundle names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discover returns the entry map for a project. An explicit entry.entries
// mapping is returned as is. Otherwise sourceFolder is listed (not
// recursively) and every regular *.js / *.jsx file not excluded becomes an
// entry named after the file without its extension.
func Discover(sourceFolder string, opts *config.Options) (Map, error) {
	var entries Map

	if opts != nil && opts.Entry != nil && opts.Entry.Entries != nil {
		entries = Map(opts.Entry.Entries)
	} else {
		var exclude []string
		if opts != nil && opts.Entry != nil {
			exclude = opts.Entry.Exclude
		}
		scanned, err := scan(sourceFolder, exclude)
		if err != nil {
			return nil, err
		}
		entries = scanned
	}

	if len(entries) == 0 {
		return nil, rerrors.NewValidationError(rerrors.ErrCodeNoEntries,
			fmt.Sprintf("You do not have entry files under folder %s.", sourceFolder))
	}
	if _, ok := entries[RuntimeName]; ok {
		return nil, rerrors.NewValidationError(rerrors.ErrCodeReservedEntry,
			fmt.Sprintf("the entry name %q is reserved for the shared runtime chunk", RuntimeName))
	}
	return entries, nil
}

func scan(sourceFolder string, exclude []string) (Map, error) {
	dirents, err := os.ReadDir(sourceFolder)
	if err != nil {
		return nil, rerrors.NewIOError(rerrors.ErrCodeFileNotFound, "cannot list the source folder", err).
			WithLocation(sourceFolder, 0, 0)
	}

	entries := Map{}
	for _, d := range dirents {
		name := d.Name()
		if !scriptPattern.MatchString(name) || slices.Contains(exclude, name) {
			continue
		}
		path := filepath.Join(sourceFolder, name)
		// Stat follows symlinks.
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		entries[scriptPattern.ReplaceAllString(name, "")] = path
	}
	return entries, nil
}

// IsNoEntries reports whether err is the empty-entry-set error.
func IsNoEntries(err error) bool {
	return rerrors.HasCode(err, rerrors.ErrCodeNoEntries)
}
