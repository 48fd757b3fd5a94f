// Package config loads a project description from a TOML file, applying
// {{ env.NAME }} substitution over the raw text before handing it to the
// decoder.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

const DefaultPath = "pylon.toml"

// Config is the root document: a single [project] table.
type Config struct {
	Project Project `toml:"project"`
}

// Project describes everything needed to provision and run a fleet:
// infra shape, state storage, and the services to place on it.
type Project struct {
	Name     string `toml:"name"`
	Domain   string `toml:"domain"`

	NumberOfInstances int    `toml:"number_of_instances"`
	InstanceType      string `toml:"instance_type"`
	ImageID           string `toml:"image_id"`

	StateBackend     StateBackend `toml:"state_backend"`
	UserStateBackend StateBackend `toml:"user_state_backend"`

	Services map[string]Service `toml:"services"`
}

// StateBackend is a tagged union over the two supported backends. TOML has
// no native sum type, so at most one of Local/S3 is populated; Resolve
// reports which.
type StateBackend struct {
	Local *LocalStateBackend `toml:"local"`
	S3    *S3StateBackend    `toml:"s3"`
}

type LocalStateBackend struct {
	Path string `toml:"path"`
}

type S3StateBackend struct {
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	Key    string `toml:"key"`
}

// Resolve returns exactly one of ("local", path) or ("s3", region/bucket/key),
// or an error if the document specifies both or neither.
func (b StateBackend) Resolve() (kind string, local LocalStateBackend, s3 S3StateBackend, err error) {
	switch {
	case b.Local != nil && b.S3 != nil:
		return "", LocalStateBackend{}, S3StateBackend{}, fmt.Errorf("config: state_backend specifies both local and s3")
	case b.Local != nil:
		return "local", *b.Local, S3StateBackend{}, nil
	case b.S3 != nil:
		return "s3", LocalStateBackend{}, *b.S3, nil
	default:
		return "", LocalStateBackend{}, S3StateBackend{}, fmt.Errorf("config: state_backend specifies neither local nor s3")
	}
}

// Service is one entry of [project.services.<name>]. Env values are raw
// templates, rendered later against the current PlacementState.
type Service struct {
	Image          string            `toml:"image"`
	DockerfilePath string            `toml:"dockerfile_path"`
	Command        string            `toml:"command"`
	InternalPort   *int              `toml:"internal_port"`
	ExternalPort   *int              `toml:"external_port"`
	Cpus           int               `toml:"cpus"`
	Memory         int64             `toml:"memory"`
	DependsOn      []string          `toml:"depends_on"`
	Envs           map[string]string `toml:"envs"`
}

var envTemplatePattern = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// substituteEnv replaces every `{{ env.NAME }}` occurrence in raw with the
// orchestrator host's environment variable of the same name. A reference
// to an unset variable is left untouched, exactly like the unresolved-peer
// fallback in the service env template renderer.
func substituteEnv(raw string) string {
	return envTemplatePattern.ReplaceAllStringFunc(raw, func(match string) string {
		sub := envTemplatePattern.FindStringSubmatch(match)
		name := sub[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Load reads and decodes the project file at path, applying env
// substitution first. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := substituteEnv(string(raw))

	var cfg Config
	if _, err := toml.Decode(substituted, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &cfg, nil
}
