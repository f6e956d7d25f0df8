package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/tree"
)

const (
	urlNamespace    = "remixure-url"
	ignoreNamespace = "remixure-ignore"
)

// Markers passed as PluginData on nested resolves so a callback does not
// recurse into itself.
type (
	aliasPass struct{}
	urlPass   struct{}
)

// emittedFile is a file the rules plugin decided to emit next to the bundles.
type emittedFile struct {
	name     string
	contents []byte
}

// state is shared by the callbacks of one build session. esbuild runs
// callbacks concurrently, so every field behind mu is guarded.
type state struct {
	ctx    context.Context
	cfg    *bundle.Config
	lang   string
	logger logging.Logger
	less   *LessCompiler

	mu    sync.Mutex
	files map[string]emittedFile
}

func (s *state) reset() {
	s.mu.Lock()
	s.files = make(map[string]emittedFile)
	s.mu.Unlock()
}

func (s *state) emit(source string, f emittedFile) {
	s.mu.Lock()
	s.files[source] = f
	s.mu.Unlock()
}

// emitted returns the recorded files sorted by output name.
func (s *state) emitted() []emittedFile {
	s.mu.Lock()
	out := make([]emittedFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// rulesPlugin realizes the assembled rules and resolution settings on top of
// esbuild: aliases, ignored locale requests, url assets, stylesheet chains
// and language files.
func (s *state) rulesPlugin() api.Plugin {
	return api.Plugin{
		Name: "remixure-rules",
		Setup: func(pb api.PluginBuild) {
			pb.OnStart(func() (api.OnStartResult, error) {
				s.reset()
				return api.OnStartResult{}, nil
			})
			s.setupAlias(pb)
			s.setupIgnoreLocales(pb)
			s.setupURL(pb)
			s.setupStyles(pb)
			s.setupLang(pb)
		},
	}
}

func (s *state) setupAlias(pb api.PluginBuild) {
	alias := s.cfg.Resolve.Alias
	if len(alias) == 0 {
		return
	}
	keys := make([]string, 0, len(alias))
	for k := range alias {
		keys = append(keys, regexp.QuoteMeta(strings.TrimSuffix(k, "$")))
	}
	sort.Strings(keys)
	filter := `^(?:` + strings.Join(keys, "|") + `)(?:/.*)?$`

	pb.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		if _, nested := args.PluginData.(aliasPass); nested {
			return api.OnResolveResult{}, nil
		}
		target, ok := applyAlias(alias, args.Path)
		if !ok {
			return api.OnResolveResult{}, nil
		}
		resolveDir := args.ResolveDir
		if strings.HasPrefix(target, ".") {
			resolveDir = s.cfg.Context
		}
		res := pb.Resolve(target, api.ResolveOptions{
			Importer:   args.Importer,
			ResolveDir: resolveDir,
			Kind:       args.Kind,
			PluginData: aliasPass{},
		})
		return api.OnResolveResult{
			Errors:     res.Errors,
			Warnings:   res.Warnings,
			Path:       res.Path,
			External:   res.External,
			Namespace:  res.Namespace,
			Suffix:     res.Suffix,
			PluginData: res.PluginData,
		}, nil
	})
}

// applyAlias rewrites an import path. A key ending in "$" only matches the
// exact path; other keys also match "key/rest".
func applyAlias(alias map[string]string, path string) (string, bool) {
	best := ""
	for k := range alias {
		exact := strings.HasSuffix(k, "$")
		key := strings.TrimSuffix(k, "$")
		switch {
		case path == key:
		case !exact && strings.HasPrefix(path, key+"/"):
		default:
			continue
		}
		if len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return "", false
	}
	key := strings.TrimSuffix(best, "$")
	return alias[best] + strings.TrimPrefix(path, key), true
}

func (s *state) setupIgnoreLocales(pb api.PluginBuild) {
	for _, p := range s.cfg.PluginsNamed(bundle.PluginIgnoreLocales) {
		resource := patternOption(p.Options, "resourceRegExp")
		if resource == "" {
			continue
		}
		var contextRe *regexp.Regexp
		if expr := patternOption(p.Options, "contextRegExp"); expr != "" {
			re, err := regexp.Compile(expr)
			if err != nil {
				s.logger.Warn(s.ctx, err, "Ignoring invalid context pattern", "plugin", p.Name)
				continue
			}
			contextRe = re
		}

		pb.OnResolve(api.OnResolveOptions{Filter: resource}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			if contextRe != nil && !contextRe.MatchString(filepath.ToSlash(args.ResolveDir)) {
				return api.OnResolveResult{}, nil
			}
			return api.OnResolveResult{Path: args.Path, Namespace: ignoreNamespace}, nil
		})
	}

	pb.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: ignoreNamespace}, func(api.OnLoadArgs) (api.OnLoadResult, error) {
		empty := ""
		return api.OnLoadResult{Contents: &empty, Loader: api.LoaderJS}, nil
	})
}

func patternOption(m tree.Mapping, key string) string {
	if p, ok := m[key].(*tree.Pattern); ok {
		return p.String()
	}
	return m.String(key)
}

// setupURL handles files whose rule uses the url loader. Files below the
// rule's limit are inlined by esbuild's dataurl loader; larger ones are
// emitted under the rule's name template and replaced by their public URL.
func (s *state) setupURL(pb api.PluginBuild) {
	filter := joinTests(s.cfg.Rules, bundle.LoaderURL)
	if filter == "" {
		return
	}

	pb.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		if _, nested := args.PluginData.(urlPass); nested {
			return api.OnResolveResult{}, nil
		}
		if args.Namespace != "file" && args.Namespace != "" {
			return api.OnResolveResult{}, nil
		}
		res := pb.Resolve(args.Path, api.ResolveOptions{
			Importer:   args.Importer,
			ResolveDir: args.ResolveDir,
			Kind:       args.Kind,
			PluginData: urlPass{},
		})
		if len(res.Errors) > 0 || res.External || res.Path == "" {
			return api.OnResolveResult{}, nil
		}

		href, ok, err := s.urlAsset(res.Path)
		if err != nil || !ok {
			return api.OnResolveResult{Path: res.Path}, err
		}
		if args.Kind == api.ResolveCSSURLToken {
			return api.OnResolveResult{Path: href, External: true}, nil
		}
		return api.OnResolveResult{Path: res.Path, Namespace: urlNamespace, PluginData: href}, nil
	})

	pb.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: urlNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		quoted, err := json.Marshal(args.PluginData)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		contents := "export default " + string(quoted) + ";"
		return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
	})
}

// urlAsset records path for emission when it is not inlined and returns its
// public URL.
func (s *state) urlAsset(path string) (string, bool, error) {
	rule, ok := s.cfg.FindRule(path)
	if !ok {
		return "", false, nil
	}
	loader, ok := rule.Loader(bundle.LoaderURL)
	if !ok {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if int64(len(data)) < loader.Options.Int("limit", 0) {
		return "", false, nil
	}

	base := filepath.Base(path)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	name := expandName(loader.Options.String("name"), strings.TrimSuffix(base, filepath.Ext(base)), ext, "", data)
	s.emit(path, emittedFile{name: name, contents: data})
	return publicURL(s.cfg.Output.PublicPath, name), true, nil
}

func (s *state) setupStyles(pb api.PluginBuild) {
	pb.OnLoad(api.OnLoadOptions{Filter: `\.(css|less)$`}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		rule, ok := s.cfg.FindRule(args.Path)
		if !ok {
			return api.OnLoadResult{}, nil
		}
		css, ok := rule.Loader(bundle.LoaderCSS)
		if !ok {
			return api.OnLoadResult{}, nil
		}

		var (
			data []byte
			err  error
		)
		less, isLess := rule.Loader(bundle.LoaderLess)
		if isLess && strings.HasSuffix(args.Path, ".less") {
			data, err = s.less.Compile(s.ctx, args.Path, less.Options)
		} else {
			data, err = os.ReadFile(args.Path)
		}
		if err != nil {
			return api.OnLoadResult{}, err
		}

		loader := api.LoaderCSS
		if css.Options.Bool("modules") {
			loader = api.LoaderLocalCSS
		}
		contents := string(data)
		return api.OnLoadResult{
			Contents:   &contents,
			Loader:     loader,
			ResolveDir: filepath.Dir(args.Path),
		}, nil
	})
}

func (s *state) setupLang(pb api.PluginBuild) {
	filter := joinTests(s.cfg.Rules, bundle.LoaderLang)
	if filter == "" {
		return
	}
	pb.OnLoad(api.OnLoadOptions{Filter: filter}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		rule, ok := s.cfg.FindRule(args.Path)
		if !ok {
			return api.OnLoadResult{}, nil
		}
		loader, ok := rule.Loader(bundle.LoaderLang)
		if !ok {
			return api.OnLoadResult{}, nil
		}
		data, err := os.ReadFile(args.Path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		selected, err := SelectLanguage(data, loader.Options.String("language"))
		if err != nil {
			return api.OnLoadResult{}, err
		}
		contents := string(selected)
		return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJSON}, nil
	})
}

// SelectLanguage reduces a language file to one language. Every top-level
// value that is an object carrying the language as a key is replaced by that
// entry; other values are kept as they are.
func SelectLanguage(data []byte, lang string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(doc))
	for k, raw := range doc {
		out[k] = raw
		var byLang map[string]json.RawMessage
		if json.Unmarshal(raw, &byLang) != nil {
			continue
		}
		if v, ok := byLang[lang]; ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// joinTests combines the test patterns of every rule that uses loader into
// one esbuild filter.
func joinTests(rules []bundle.Rule, loader string) string {
	var parts []string
	for _, r := range rules {
		if _, ok := r.Loader(loader); ok && r.Test != nil {
			parts = append(parts, "(?:"+r.Test.String()+")")
		}
	}
	return strings.Join(parts, "|")
}

func publicURL(publicPath, name string) string {
	if publicPath == "" {
		publicPath = "/"
	}
	if !strings.HasSuffix(publicPath, "/") {
		publicPath += "/"
	}
	return publicPath + filepath.ToSlash(name)
}
