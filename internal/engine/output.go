package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/tree"
)

// metafile is the part of esbuild's metafile used to attribute outputs to
// entries.
type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
		CSSBundle  string `json:"cssBundle"`
	} `json:"outputs"`
}

// outFile is one file of a compilation. name is slash-separated and relative
// to the target's output path; chunk is -1 for files outside any chunk.
type outFile struct {
	name      string
	contents  []byte
	chunk     int
	chunkName string
}

type chunkRef struct {
	id   int
	name string
}

// collect turns an esbuild result into the complete list of files of the
// target: bundles with relocated stylesheets, emitted url assets, copied
// files and generated pages.
func (s *state) collect(result api.BuildResult) ([]outFile, error) {
	var meta metafile
	if result.Metafile != "" {
		if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
			return nil, fmt.Errorf("reading metafile: %w", err)
		}
	}

	workDir := s.cfg.Context
	outDir := s.cfg.Output.Path
	owners := chunkOwners(meta, s.entryInputs())

	files := make([]outFile, 0, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(outDir, f.Path)
		if err != nil {
			return nil, err
		}
		file := outFile{name: filepath.ToSlash(rel), contents: f.Contents, chunk: -1}
		if key, err := filepath.Rel(workDir, f.Path); err == nil {
			if ref, ok := owners[strings.TrimSuffix(filepath.ToSlash(key), ".map")]; ok {
				file.chunk, file.chunkName = ref.id, ref.name
			}
		}
		files = append(files, file)
	}

	if extract := s.cfg.PluginsNamed(bundle.PluginExtractCSS); len(extract) > 0 {
		files = relocateCSS(files, extract[0].Options)
	}

	for _, f := range s.emitted() {
		files = append(files, outFile{name: filepath.ToSlash(f.name), contents: f.contents, chunk: -1})
	}

	for _, p := range s.cfg.PluginsNamed("copy") {
		copied, err := copyFiles(workDir, p.Options)
		if err != nil {
			return nil, err
		}
		files = append(files, copied...)
	}

	generated, err := s.renderPages(files)
	if err != nil {
		return nil, err
	}
	files = append(files, generated...)

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// entryInputs maps the metafile form of every entry path to its name.
func (s *state) entryInputs() map[string]string {
	inputs := make(map[string]string, len(s.cfg.Entry))
	for name, p := range s.cfg.Entry {
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.cfg.Context, p)
		}
		if rel, err := filepath.Rel(s.cfg.Context, p); err == nil {
			inputs[filepath.ToSlash(rel)] = name
		}
	}
	return inputs
}

// chunkOwners numbers chunks the way the asset table shows them: entries in
// name order first, then shared chunks in path order. A stylesheet bundle
// belongs to the chunk of the script that produced it.
func chunkOwners(meta metafile, inputs map[string]string) map[string]chunkRef {
	names := make([]string, 0, len(inputs))
	for _, name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = i
	}

	owners := map[string]chunkRef{}
	var shared []string
	for key, out := range meta.Outputs {
		if !strings.HasSuffix(key, ".js") {
			continue
		}
		name, ok := inputs[out.EntryPoint]
		if !ok {
			shared = append(shared, key)
			continue
		}
		ref := chunkRef{id: ids[name], name: name}
		owners[key] = ref
		if out.CSSBundle != "" {
			owners[out.CSSBundle] = ref
		}
	}

	sort.Strings(shared)
	for i, key := range shared {
		ref := chunkRef{id: len(names) + i}
		owners[key] = ref
		if css := meta.Outputs[key].CSSBundle; css != "" {
			owners[css] = ref
		}
	}
	return owners
}

// relocateCSS moves stylesheets to the extract-css file names and keeps
// their source maps and sourceMappingURL comments in step.
func relocateCSS(files []outFile, options tree.Mapping) []outFile {
	filename := options.String("filename")
	chunkFilename := options.String("chunkFilename")
	if filename == "" {
		return files
	}
	if chunkFilename == "" {
		chunkFilename = filename
	}

	renamed := map[string]string{}
	for i, f := range files {
		if !strings.HasSuffix(f.name, ".css") {
			continue
		}
		template := filename
		if f.chunkName == "" {
			template = chunkFilename
		}
		name := f.chunkName
		if name == "" {
			name = strings.TrimSuffix(path.Base(f.name), ".css")
		}
		target := expandName(template, name, "css", strconv.Itoa(f.chunk), f.contents)
		renamed[f.name] = target

		oldRef := "sourceMappingURL=" + path.Base(f.name) + ".map"
		newRef := "sourceMappingURL=" + path.Base(target) + ".map"
		files[i].contents = bytes.ReplaceAll(f.contents, []byte(oldRef), []byte(newRef))
		files[i].name = target
	}

	for i, f := range files {
		if base, ok := strings.CutSuffix(f.name, ".map"); ok {
			if target, ok := renamed[base]; ok {
				files[i].name = target + ".map"
			}
		}
	}
	return files
}

// copyFiles implements the copy plugin: every file under "from" (relative to
// the project) is emitted below "to" in the output.
func copyFiles(workDir string, options tree.Mapping) ([]outFile, error) {
	from := options.String("from")
	if from == "" {
		return nil, nil
	}
	if !filepath.IsAbs(from) {
		from = filepath.Join(workDir, from)
	}
	to := filepath.ToSlash(options.String("to"))

	var files []outFile
	err := filepath.WalkDir(from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = filepath.Base(p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, outFile{name: path.Join(to, filepath.ToSlash(rel)), contents: data, chunk: -1})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("copy plugin: %w", err)
	}
	return files, nil
}

// renderPages generates the html plugin pages from the collected bundles.
func (s *state) renderPages(files []outFile) ([]outFile, error) {
	scripts := map[string]string{}
	styles := map[string]string{}
	for _, f := range files {
		if f.chunkName == "" {
			continue
		}
		switch {
		case strings.HasSuffix(f.name, ".js"):
			scripts[f.chunkName] = f.name
		case strings.HasSuffix(f.name, ".css"):
			styles[f.chunkName] = f.name
		}
	}

	vars := interpolations(s.cfg)
	var out []outFile
	for _, p := range pages(s.cfg) {
		src, err := os.ReadFile(p.template)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}

		var links, tags []string
		if p.inject {
			for _, chunk := range p.chunks {
				if name, ok := styles[chunk]; ok {
					links = append(links, publicURL(s.cfg.Output.PublicPath, name))
				}
				if name, ok := scripts[chunk]; ok {
					tags = append(tags, publicURL(s.cfg.Output.PublicPath, name))
				}
			}
		}

		data, err := renderPage(Interpolate(src, vars), links, tags, s.cfg.Splitting)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", p.filename, err)
		}
		if len(p.minify) > 0 {
			if data, err = minifyHTML(data, p.minify); err != nil {
				return nil, fmt.Errorf("minifying %s: %w", p.filename, err)
			}
		}
		out = append(out, outFile{name: p.filename, contents: data, chunk: -1})
	}
	return out, nil
}

// writeFiles writes files below outDir, skipping files whose bytes did not
// change, and returns the asset rows and the compilation hash.
func writeFiles(outDir string, files []outFile) ([]bundle.Asset, string, error) {
	h := crc32.New(castagnoli)
	assets := make([]bundle.Asset, 0, len(files))

	for _, f := range files {
		abs := filepath.Join(outDir, filepath.FromSlash(f.name))
		old, err := os.ReadFile(abs)
		emitted := err != nil || !bytes.Equal(old, f.contents)
		if emitted {
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return nil, "", err
			}
			if err := os.WriteFile(abs, f.contents, 0o644); err != nil {
				return nil, "", err
			}
		}

		h.Write([]byte(f.name))
		h.Write(f.contents)

		size := int64(len(f.contents))
		asset := bundle.Asset{
			Name:     f.name,
			Size:     size,
			Emitted:  emitted,
			Oversize: size > bundle.OversizeLimit,
		}
		if f.chunk >= 0 {
			asset.Chunks = []int{f.chunk}
			if f.chunkName != "" {
				asset.ChunkNames = []string{f.chunkName}
			}
		}
		assets = append(assets, asset)
	}

	return assets, fmt.Sprintf("%08x", h.Sum32()), nil
}
