// Package execprofile loads executor-profile definitions: the shell
// command template run for each actor when a workspace is auto-started.
package execprofile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a single executor profile entry: the argv template run to
// start an actor against a workspace. "{{workspace_dir}}" in Args is
// substituted with the workspace's working directory, which is joined
// onto the executor's RootDir and is absolute only if RootDir is.
type Profile struct {
	Name string   `yaml:"name"`
	Cmd  string   `yaml:"cmd"`
	Args []string `yaml:"args"`
}

// Config is the top-level executors.yaml shape.
type Config struct {
	Profiles []Profile `yaml:"profiles"`
}

// Load reads and parses an executors.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Find looks up a profile by name.
func (c *Config) Find(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Default returns the built-in fallback profile set used when no
// executors.yaml is supplied, one entry per starbus.ActorToExecutorProfile
// target.
func Default() *Config {
	return &Config{Profiles: []Profile{
		{Name: "claude", Cmd: "claude", Args: []string{"--workspace", "{{workspace_dir}}"}},
		{Name: "codex", Cmd: "codex", Args: []string{"--cwd", "{{workspace_dir}}"}},
		{Name: "cursor", Cmd: "cursor-agent", Args: []string{"--dir", "{{workspace_dir}}"}},
		{Name: "opencode", Cmd: "opencode", Args: []string{"--cwd", "{{workspace_dir}}"}},
	}}
}
