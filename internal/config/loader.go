package config

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/logging"
)

// ConfigDir is the configuration directory relative to the base folder.
const ConfigDir = "config"

// configExtensions are tried in order for every configuration file.
var configExtensions = []string{".yaml", ".yml", ".json"}

var argPattern = regexp.MustCompile(`^--(.+)=(.*)$`)

// layer is one parsed configuration file keyed by top-level option name.
type layer map[string]any

// Loader assembles Options from the configuration layers of a project.
type Loader struct {
	logger logging.Logger
	// Setenv is used to publish BABEL_ENV; tests replace it.
	Setenv    func(key, value string) error
	LookupEnv func(key string) (string, bool)
}

// NewLoader returns a Loader that reports progress on logger.
func NewLoader(logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Loader{
		logger:    logger.WithComponent("config"),
		Setenv:    os.Setenv,
		LookupEnv: os.LookupEnv,
	}
}

// Load is a shorthand for NewLoader(nil).Load.
func Load(baseFolder string, args []string) (*Options, BuildContext, error) {
	return NewLoader(nil).Load(baseFolder, args)
}

// Load reads and merges the configuration layers of the project in
// baseFolder. args are raw command-line arguments; only --env=<name> is
// interpreted.
func (l *Loader) Load(baseFolder string, args []string) (*Options, BuildContext, error) {
	ctx := context.Background()

	abs, err := filepath.Abs(baseFolder)
	if err != nil {
		return nil, BuildContext{}, rerrors.NewIOError(rerrors.ErrCodeFileNotFound, "cannot resolve base folder", err)
	}
	configPath := filepath.Join(abs, ConfigDir)

	// .env never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(abs, ".env")); err == nil {
		l.logger.Debug(ctx, "Loaded .env file")
	}

	merged := defaults()

	base, path, err := loadRequired(filepath.Join(configPath, "config.default"))
	if err != nil {
		return nil, BuildContext{}, err
	}
	l.logger.Debug(ctx, "Read base configuration", "file", path)
	merge(merged, base)

	env := EnvFromArgs(args)
	if env == "" {
		env = readEnvFile(filepath.Join(configPath, "env"))
	}

	if env != "" {
		if envLayer, ok := tryLoad(filepath.Join(configPath, "config."+env)); ok {
			merge(merged, envLayer)
			l.logger.Debug(ctx, "Merged environment configuration", "env", env)
		}
	}
	l.logger.Info(ctx, fmt.Sprintf("The current environment is %s.", displayEnv(env)))

	opts, err := decode(merged)
	if err != nil {
		return nil, BuildContext{}, rerrors.WrapConfig(err, rerrors.ErrCodeConfigInvalid, "cannot decode merged configuration")
	}
	normalize(opts)

	if err := Validate(opts); err != nil {
		return nil, BuildContext{}, err
	}

	bc := BuildContext{Env: env, BaseFolder: abs}
	if _, set := l.LookupEnv("BABEL_ENV"); !set {
		_ = l.Setenv("BABEL_ENV", bc.ModeName())
	}

	return opts, bc, nil
}

// EnvFromArgs returns the value of the last --env=<name> argument.
func EnvFromArgs(args []string) string {
	env := ""
	for _, arg := range args {
		m := argPattern.FindStringSubmatch(arg)
		if m == nil || m[1] != "env" {
			continue
		}
		env = m[2]
	}
	return env
}

func displayEnv(env string) string {
	if env == "" {
		return "undefined"
	}
	return env
}

func readEnvFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// loadRequired loads the first existing stem+extension file. A missing or
// unparsable file is a fatal configuration error.
func loadRequired(stem string) (layer, string, error) {
	for _, ext := range configExtensions {
		path := stem + ext
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, path, rerrors.NewConfigError(rerrors.ErrCodeConfigMissing, "cannot read the config file", err).
				WithLocation(path, 0, 0)
		}
		parsed, err := parseLayer(data)
		if err != nil {
			return nil, path, rerrors.NewConfigError(rerrors.ErrCodeConfigInvalid, "cannot parse the config file", err).
				WithLocation(path, 0, 0)
		}
		return parsed, path, nil
	}
	return nil, stem, rerrors.NewConfigError(rerrors.ErrCodeConfigMissing,
		fmt.Sprintf("The config file is not found! Expected %s.{yaml,yml,json}", stem), nil)
}

// tryLoad loads an optional layer. Any I/O or parse failure yields ok=false.
func tryLoad(stem string) (layer, bool) {
	for _, ext := range configExtensions {
		data, err := os.ReadFile(stem + ext)
		if err != nil {
			continue
		}
		parsed, err := parseLayer(data)
		if err != nil {
			return nil, false
		}
		return parsed, true
	}
	return nil, false
}

// parseLayer parses YAML or JSON (a YAML subset) into a top-level mapping.
func parseLayer(data []byte) (layer, error) {
	out := layer{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// merge copies every top-level key of src over dst.
func merge(dst, src layer) {
	maps.Copy(dst, src)
}

func decode(merged layer) (*Options, error) {
	data, err := yaml.Marshal(map[string]any(merged))
	if err != nil {
		return nil, err
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

func normalize(opts *Options) {
	if len(opts.IgnoreCSSModule) == 0 {
		opts.IgnoreCSSModule = nil
	}
}

// Marshal renders options back to YAML.
func Marshal(opts *Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(opts); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
