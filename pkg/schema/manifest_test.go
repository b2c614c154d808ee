package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

const sportsManifest = `
part "scoring" {
  name        = "Scoring"
  category    = "Competition"
  type        = "widget"
  core        = true
  description = "Live score summary"

  prop "period" {
    kind    = "select"
    label   = "Period"
    default = "week"
    option "week" { label = "This week" }
    option "season" {}
  }

  prop "limit" {
    kind    = "number"
    default = 5
    min     = 1
    max     = 20
  }
}

part "schedule" {
  name     = "Schedule"
  category = "Planning"
  type     = "FULLSTACK"
}
`

func writeManifest(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifests_DecodesPartsAndProps(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "sports.hcl", sportsManifest)

	bundle, err := LoadManifests(context.Background(), dir)
	require.NoError(t, err)

	parts := bundle.Descriptors()
	require.Len(t, parts, 2)
	assert.Equal(t, models.PartDescriptor{
		Code:           "scoring",
		Name:           "Scoring",
		Category:       "Competition",
		FunctionalType: models.FunctionalTypeWidget,
		IsCore:         true,
		Description:    "Live score summary",
	}, parts[0])
	assert.Equal(t, models.FunctionalTypeFullstack, parts[1].FunctionalType)

	schemas := bundle.Schemas()
	require.Len(t, schemas, 1, "parts without props fall back to the default schema")
	s := schemas[0]
	assert.Equal(t, "scoring", s.Code)
	require.Len(t, s.Fields, 2)

	period := s.Fields[0]
	assert.Equal(t, models.FieldKindSelect, period.Kind)
	assert.Equal(t, "week", period.Default)
	assert.Equal(t, []models.FieldOption{
		{Label: "This week", Value: "week"},
		{Label: "season", Value: "season"},
	}, period.Options)

	limit := s.Fields[1]
	assert.Equal(t, "limit", limit.Label)
	assert.Equal(t, 5.0, limit.Default)
	require.NotNil(t, limit.Min)
	require.NotNil(t, limit.Max)
	assert.Equal(t, 1.0, *limit.Min)
	assert.Equal(t, 20.0, *limit.Max)
}

func TestLoadManifests_WalksDirectoriesAndRegisters(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a/sports.hcl", sportsManifest)
	writeManifest(t, dir, "b/finance.hcl", `
part "payments" {
  name     = "Payments"
  category = "Finance"
  type     = "FORM_INPUT"
  prop "currency" {
    kind    = "text"
    default = "EUR"
  }
}
`)
	writeManifest(t, dir, "b/notes.txt", "ignored")

	bundle, err := LoadManifests(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, bundle.Files(), 2)

	parts, err := bundle.ListParts(context.Background())
	require.NoError(t, err)
	assert.Len(t, parts, 3)

	r := NewRegistry()
	require.NoError(t, bundle.RegisterSchemas(r))
	assert.Equal(t, []string{"payments", "scoring"}, r.Codes())
}

func TestLoadManifests_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name: "incompatible default",
			body: `part "x" {
  name = "X"
  category = "c"
  type = "WIDGET"
  prop "accent" {
    kind = "color"
    default = "blue"
  }
}`,
			wantMsg: "Invalid default value",
		},
		{
			name: "missing default",
			body: `part "x" {
  name = "X"
  category = "c"
  type = "WIDGET"
  prop "title" { kind = "text" }
}`,
			wantMsg: "Missing 'default' attribute",
		},
		{
			name:    "unknown functional type",
			body: `part "x" {
  name = "X"
  category = "c"
  type = "PAGE"
}`,
			wantMsg: "Invalid functional type",
		},
		{
			name: "duplicate part",
			body: `part "x" {
  name = "X"
  category = "c"
  type = "WIDGET"
}
part "x" {
  name = "X2"
  category = "c"
  type = "WIDGET"
}`,
			wantMsg: "Duplicate part definition",
		},
		{
			name:    "syntax error",
			body:    `part "x" {`,
			wantMsg: "failed to parse manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeManifest(t, dir, "bad.hcl", tt.body)

			_, err := LoadManifests(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "bad.hcl", "errors carry the source position")
		})
	}
}

func TestLoadManifests_MissingPath(t *testing.T) {
	_, err := LoadManifests(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
