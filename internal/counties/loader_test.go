package counties_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/countyscan/internal/counties"
	"github.com/jonesrussell/countyscan/internal/domain"
)

const validRegistry = `counties:
  - name: Kern
    url: https://www.kerncounty.com/
  - name: San Diego
    url: https://www.sandiegocounty.gov/

keywords:
  department:
    - Public Health
    - health department
  section:
    - maternal health
    - MCH
  program:
    - WIC
    - healthy start
  fallback:
    department:
      - Salud Publica
`

// writeRegistry writes YAML content to a temp file and returns its path.
func writeRegistry(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "counties.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	return path
}

func TestLoad(t *testing.T) {
	registry, err := counties.NewLoader(writeRegistry(t, validRegistry)).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if len(registry.Counties) != 2 {
		t.Fatalf("expected 2 counties, got %d", len(registry.Counties))
	}

	if registry.Counties[0].Name != "Kern" {
		t.Errorf("expected first county Kern, got %q", registry.Counties[0].Name)
	}

	// Keywords are lowercased at load time.
	if registry.Keywords.Department[0] != "public health" {
		t.Errorf("expected lowercased keyword, got %q", registry.Keywords.Department[0])
	}

	if registry.Keywords.Section[1] != "mch" {
		t.Errorf("expected lowercased keyword, got %q", registry.Keywords.Section[1])
	}

	fallback := registry.Keywords.Fallback[domain.TierDepartment]
	if len(fallback) != 1 || fallback[0] != "salud publica" {
		t.Errorf("expected lowercased fallback keywords, got %v", fallback)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := counties.NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_NoCounties(t *testing.T) {
	content := `counties: []
keywords:
  department: [health]
  section: [maternal]
  program: [wic]
`

	_, err := counties.NewLoader(writeRegistry(t, content)).Load()
	if !errors.Is(err, counties.ErrNoCounties) {
		t.Errorf("Load() error = %v, want ErrNoCounties", err)
	}
}

func TestLoad_EmptyKeywordTier(t *testing.T) {
	content := `counties:
  - name: Kern
    url: https://www.kerncounty.com/
keywords:
  department: [health]
  section: []
  program: [wic]
`

	_, err := counties.NewLoader(writeRegistry(t, content)).Load()
	if !errors.Is(err, counties.ErrNoKeywords) {
		t.Errorf("Load() error = %v, want ErrNoKeywords", err)
	}
}

func TestLoad_InvalidCounty(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"missing name", `  - url: https://www.kerncounty.com/`},
		{"missing url", `  - name: Kern`},
		{"relative url", `  - name: Kern
    url: /health`},
		{"wrong scheme", `  - name: Kern
    url: ftp://kerncounty.com/`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "counties:\n" + tt.entry + `
keywords:
  department: [health]
  section: [maternal]
  program: [wic]
`

			_, err := counties.NewLoader(writeRegistry(t, content)).Load()
			if !errors.Is(err, counties.ErrInvalidCounty) {
				t.Errorf("Load() error = %v, want ErrInvalidCounty", err)
			}
		})
	}
}

func TestSubset(t *testing.T) {
	registry, err := counties.NewLoader(writeRegistry(t, validRegistry)).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"empty selects all", nil, []string{"Kern", "San Diego"}},
		{"single match", []string{"Kern"}, []string{"Kern"}},
		{"case insensitive", []string{"san diego"}, []string{"San Diego"}},
		{"registry order preserved", []string{"San Diego", "Kern"}, []string{"Kern", "San Diego"}},
		{"unknown name ignored", []string{"Atlantis"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subset := registry.Subset(tt.names)

			got := make([]string, 0, len(subset))
			for _, c := range subset {
				got = append(got, c.Name)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("Subset(%v) = %v, want %v", tt.names, got, tt.want)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Subset(%v) = %v, want %v", tt.names, got, tt.want)
				}
			}
		})
	}
}
