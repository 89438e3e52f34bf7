package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	apperrors "brain2-canvas/internal/errors"
)

// Loader layers configuration files from a directory.
//
// Sources, lowest priority first:
//  1. defaults in code
//  2. base.{yaml,json,toml}
//  3. <environment>.{yaml,json,toml}
//  4. local.{yaml,json,toml}, development only
//  5. environment variables
type Loader struct {
	basePath    string
	environment Environment
	fileLoaders []FileLoader
}

// FileLoader decodes one file format onto a partially filled target.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading from basePath. An empty path means
// "config".
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	if env == "" {
		env = Development
	}
	l := &Loader{basePath: basePath, environment: env}
	l.RegisterLoader(&YAMLLoader{})
	l.RegisterLoader(&JSONLoader{})
	l.RegisterLoader(&TOMLLoader{})
	return l
}

// RegisterLoader adds a file format. Formats are tried in registration order.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders = append(l.fileLoaders, loader)
}

// Dir is the directory the loader reads.
func (l *Loader) Dir() string {
	return l.basePath
}

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default(l.environment)
	cfg.LoadedFrom = []string{"defaults"}

	if err := l.loadFile("base", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := l.loadFile(strings.ToLower(string(l.environment)), cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile applies the first existing <name>.<ext>.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, name+"."+loader.Extension())
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return apperrors.Internal(apperrors.CodeConfigInvalid, "open config file").
				WithResource(path).WithCause(err).Build()
		}
		err = loader.Load(file, cfg)
		file.Close()
		if err != nil {
			return apperrors.Validation(apperrors.CodeConfigInvalid, "parse config file").
				WithResource(path).WithDetails(err.Error()).WithCause(err).Build()
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
		return nil
	}
	return fs.ErrNotExist
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct{}

func (t *TOMLLoader) Load(reader io.Reader, target interface{}) error {
	md, err := toml.NewDecoder(reader).Decode(target)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

func (t *TOMLLoader) Extension() string {
	return "toml"
}

// LoadFromDir loads configuration from CONFIG_DIR (default "config") for
// the environment named by ENVIRONMENT.
func LoadFromDir() (*Config, error) {
	return NewLoader(getEnv("CONFIG_DIR", "config"), getEnvironment()).Load()
}
