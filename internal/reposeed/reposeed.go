// Package reposeed loads the static project/repository catalog from YAML
// and seeds it into the catalog store at startup.
package reposeed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starbus/coordinator/internal/catalog"
)

// ProjectRepos is one project's repo list in repos.yaml.
type ProjectRepos struct {
	ProjectID string       `yaml:"project_id"`
	Repos     []RepoConfig `yaml:"repos"`
}

// RepoConfig is a single repo entry.
type RepoConfig struct {
	Name                string `yaml:"name"`
	DefaultTargetBranch string `yaml:"default_target_branch"`
	DefaultWorkingDir   string `yaml:"default_working_dir"`
}

// Config is the top-level repos.yaml shape.
type Config struct {
	Projects []ProjectRepos `yaml:"projects"`
}

// Load reads and parses a repos.yaml file.
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

// Seed upserts every repo in cfg into cat.
func Seed(cfg *Config, cat *catalog.Catalog) error {
	for _, proj := range cfg.Projects {
		for _, r := range proj.Repos {
			repo := catalog.Repo{
				Name:                r.Name,
				ProjectID:           proj.ProjectID,
				DefaultTargetBranch: r.DefaultTargetBranch,
				DefaultWorkingDir:   r.DefaultWorkingDir,
			}
			if repo.DefaultTargetBranch == "" {
				repo.DefaultTargetBranch = "main"
			}
			if err := cat.PutRepo(repo); err != nil {
				return fmt.Errorf("seeding repo %s/%s: %w", proj.ProjectID, r.Name, err)
			}
		}
	}
	return nil
}
