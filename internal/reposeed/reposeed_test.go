package reposeed

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
)

func TestLoadAndSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.yaml")
	yaml := `
projects:
  - project_id: proj-1
    repos:
      - name: app
        default_target_branch: main
        default_working_dir: services/app
      - name: infra
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Projects) != 1 || len(cfg.Projects[0].Repos) != 2 {
		t.Fatalf("unexpected parse result: %+v", cfg)
	}

	dbFile, err := os.CreateTemp("", "reposeed-*.db")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(dbFile.Name())
	dbFile.Close()

	db, err := sql.Open("sqlite", dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		t.Fatal(err)
	}

	if err := Seed(cfg, cat); err != nil {
		t.Fatal(err)
	}

	repos, err := cat.ListRepos("proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 seeded repos, got %d", len(repos))
	}

	var infra *catalog.Repo
	for i := range repos {
		if repos[i].Name == "infra" {
			infra = &repos[i]
		}
	}
	if infra == nil || infra.DefaultTargetBranch != "main" {
		t.Errorf("expected infra repo to default to main branch, got %+v", infra)
	}
}
