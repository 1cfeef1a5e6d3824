package voice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noveltoon/backend/internal/types"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voices.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalogFile(t *testing.T) {
	path := writeCatalog(t, `
- id: custom_female_a
  name: Custom A
  gender: female
  age_stage: adult
- id: custom_male_b
  gender: male
  age_stage: elder
`)
	entries, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(entries))
	}
	if entries[0].ID != "custom_female_a" || entries[0].Gender != types.GenderFemale {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].AgeStage != types.AgeElder {
		t.Fatalf("second entry = %+v", entries[1])
	}
}

func TestLoadCatalogFileRejectsEmpty(t *testing.T) {
	if _, err := LoadCatalogFile(writeCatalog(t, "[]\n")); err == nil {
		t.Fatalf("empty catalog accepted")
	}
}

func TestLoadCatalogFileRejectsMissingID(t *testing.T) {
	path := writeCatalog(t, `
- gender: female
  age_stage: adult
`)
	if _, err := LoadCatalogFile(path); err == nil {
		t.Fatalf("entry without id accepted")
	}
}

func TestLoadCatalogFileMissingFile(t *testing.T) {
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
