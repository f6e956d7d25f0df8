package engine

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/remixure/remixure/internal/tree"
)

// LessCompiler turns .less sources into CSS by running lessc.
type LessCompiler struct {
	command string
	dir     string
}

// NewLessCompiler prefers the project's own lessc under node_modules/.bin
// and falls back to the one on PATH.
func NewLessCompiler(baseFolder string) *LessCompiler {
	command := "lessc"
	local := filepath.Join(baseFolder, "node_modules", ".bin", "lessc")
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		command = local
	}
	return &LessCompiler{command: command, dir: baseFolder}
}

// Compile compiles the file at path with the loader options of a less rule.
func (lc *LessCompiler) Compile(ctx context.Context, path string, options tree.Mapping) ([]byte, error) {
	args := lessArgs(path, options)

	cmd := exec.CommandContext(ctx, lc.command, args...)
	cmd.Dir = lc.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lessc cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("lessc failed on %s: %w\n%s", path, err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// lessArgs maps loader options onto lessc flags. Theme variables are passed
// in sorted order so identical options always produce identical commands.
func lessArgs(path string, options tree.Mapping) []string {
	var args []string
	if options.Bool("javascriptEnabled") {
		args = append(args, "--js")
	}
	if options.Bool("strictMath") {
		args = append(args, "--strict-math=on")
	}
	if paths := options.Strings("paths"); len(paths) > 0 {
		args = append(args, "--include-path="+strings.Join(paths, string(os.PathListSeparator)))
	}

	vars := options.Map("modifyVars")
	names := make(map[string]string, len(vars))
	for k := range vars {
		names[strings.TrimPrefix(k, "@")] = k
	}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		if s, ok := vars[names[name]].(tree.Scalar); ok {
			args = append(args, fmt.Sprintf("--modify-var=%s=%v", name, s.Value()))
		}
	}

	return append(args, path)
}
