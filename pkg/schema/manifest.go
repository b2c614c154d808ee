package schema

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// A manifest file declares parts and their configurable props:
//
//	part "scoring" {
//	  name        = "Scoring"
//	  category    = "Competition"
//	  type        = "WIDGET"
//	  core        = true
//	  description = "Live score summary"
//
//	  prop "period" {
//	    kind    = "select"
//	    label   = "Period"
//	    default = "week"
//	    option "week" { label = "This week" }
//	    option "season" { label = "Season" }
//	  }
//	}

var manifestSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "part", LabelNames: []string{"code"}},
	},
}

var partBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name", Required: true},
		{Name: "category", Required: true},
		{Name: "type", Required: true},
		{Name: "core"},
		{Name: "description"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "prop", LabelNames: []string{"name"}},
	},
}

var propBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		// `default` is checked manually so the error names the field.
		{Name: "kind", Required: true},
		{Name: "label"},
		{Name: "description"},
		{Name: "default"},
		{Name: "min"},
		{Name: "max"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "option", LabelNames: []string{"value"}},
	},
}

var optionBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "label"},
	},
}

// Bundle is the result of loading a set of manifest files.
type Bundle struct {
	parts   []models.PartDescriptor
	schemas []models.PropsSchema
	files   []string
}

// Descriptors returns the declared parts in load order.
func (b *Bundle) Descriptors() []models.PartDescriptor {
	out := make([]models.PartDescriptor, len(b.parts))
	copy(out, b.parts)
	return out
}

// ListParts makes a Bundle usable as a catalog source.
func (b *Bundle) ListParts(ctx context.Context) ([]models.PartDescriptor, error) {
	return b.Descriptors(), nil
}

// Schemas returns the props schemas of parts that declare at least one prop.
func (b *Bundle) Schemas() []models.PropsSchema {
	out := make([]models.PropsSchema, len(b.schemas))
	copy(out, b.schemas)
	return out
}

// Files returns the manifest files that were read.
func (b *Bundle) Files() []string {
	return append([]string(nil), b.files...)
}

// RegisterSchemas adds every schema of the bundle to r.
func (b *Bundle) RegisterSchemas(r *Registry) error {
	for _, s := range b.schemas {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// LoadManifests reads every *.hcl file found under paths (files or
// directories, walked recursively). Duplicate part codes, unknown
// functional types and prop defaults incompatible with their kind are load
// errors carrying the source position.
func LoadManifests(ctx context.Context, paths ...string) (*Bundle, error) {
	files, err := findManifestFiles(paths)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{files: files}
	parser := hclparse.NewParser()
	seen := make(map[string]hcl.Range)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
		}

		content, diags := file.Body.Content(manifestSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", path, diags)
		}

		for _, block := range content.Blocks.OfType("part") {
			code := block.Labels[0]
			if prev, dup := seen[code]; dup {
				return nil, fmt.Errorf("%w", hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Duplicate part definition",
					Detail:   fmt.Sprintf("Part %q was already defined at %s.", code, prev),
					Subject:  block.DefRange.Ptr(),
				}})
			}
			seen[code] = block.DefRange

			part, props, diags := decodePart(block)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid part %q: %w", code, diags)
			}
			bundle.parts = append(bundle.parts, part)
			if len(props.Fields) > 0 {
				bundle.schemas = append(bundle.schemas, props)
			}
		}
	}

	return bundle, nil
}

func decodePart(block *hcl.Block) (models.PartDescriptor, models.PropsSchema, hcl.Diagnostics) {
	code := block.Labels[0]
	part := models.PartDescriptor{Code: code}
	props := models.PropsSchema{Code: code}

	content, diags := block.Body.Content(partBodySchema)
	if diags.HasErrors() {
		return part, props, diags
	}

	diags = append(diags, decodeString(content.Attributes["name"], &part.Name)...)
	diags = append(diags, decodeString(content.Attributes["category"], &part.Category)...)
	diags = append(diags, decodeString(content.Attributes["description"], &part.Description)...)
	if attr, ok := content.Attributes["core"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &part.IsCore)...)
	}

	var typ string
	typeAttr := content.Attributes["type"]
	diags = append(diags, decodeString(typeAttr, &typ)...)
	part.FunctionalType = models.FunctionalType(strings.ToUpper(typ))
	if typ != "" && !models.IsValidFunctionalType(part.FunctionalType) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid functional type",
			Detail:   fmt.Sprintf("Type %q must be one of FULLSTACK, WIDGET or FORM_INPUT.", typ),
			Subject:  typeAttr.Expr.Range().Ptr(),
		})
	}

	for _, propBlock := range content.Blocks.OfType("prop") {
		field, fieldDiags := decodeProp(propBlock)
		diags = append(diags, fieldDiags...)
		if fieldDiags.HasErrors() {
			continue
		}
		if _, dup := props.Field(field.Name); dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate prop definition",
				Detail:   fmt.Sprintf("A prop named %q has already been defined.", field.Name),
				Subject:  propBlock.DefRange.Ptr(),
			})
			continue
		}
		props.Fields = append(props.Fields, field)
	}

	return part, props, diags
}

func decodeProp(block *hcl.Block) (models.FieldSpec, hcl.Diagnostics) {
	field := models.FieldSpec{Name: block.Labels[0]}

	content, diags := block.Body.Content(propBodySchema)
	if diags.HasErrors() {
		return field, diags
	}

	var kind string
	diags = append(diags, decodeString(content.Attributes["kind"], &kind)...)
	field.Kind = models.FieldKind(kind)
	diags = append(diags, decodeString(content.Attributes["label"], &field.Label)...)
	diags = append(diags, decodeString(content.Attributes["description"], &field.Description)...)
	if field.Label == "" {
		field.Label = field.Name
	}

	field.Min, diags = decodeBound(content.Attributes["min"], diags)
	field.Max, diags = decodeBound(content.Attributes["max"], diags)

	for _, opt := range content.Blocks.OfType("option") {
		optContent, optDiags := opt.Body.Content(optionBodySchema)
		diags = append(diags, optDiags...)
		if optDiags.HasErrors() {
			continue
		}
		option := models.FieldOption{Value: opt.Labels[0]}
		diags = append(diags, decodeString(optContent.Attributes["label"], &option.Label)...)
		if option.Label == "" {
			option.Label = option.Value
		}
		field.Options = append(field.Options, option)
	}

	defaultAttr, exists := content.Attributes["default"]
	if !exists {
		missing := block.Body.MissingItemRange()
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing 'default' attribute",
			Detail:   fmt.Sprintf("Prop %q needs a default value.", field.Name),
			Subject:  &missing,
		})
		return field, diags
	}
	if diags.HasErrors() {
		return field, diags
	}

	// Defaults must be literal values, so no eval context.
	val, valDiags := defaultAttr.Expr.Value(nil)
	diags = append(diags, valDiags...)
	if valDiags.HasErrors() {
		return field, diags
	}
	native, err := ctyToNative(val)
	if err == nil {
		field.Default = native
		err = field.Validate()
	}
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid default value",
			Detail:   err.Error(),
			Subject:  defaultAttr.Expr.Range().Ptr(),
		})
	}
	return field, diags
}

func decodeString(attr *hcl.Attribute, target *string) hcl.Diagnostics {
	if attr == nil {
		return nil
	}
	return gohcl.DecodeExpression(attr.Expr, nil, target)
}

func decodeBound(attr *hcl.Attribute, diags hcl.Diagnostics) (*float64, hcl.Diagnostics) {
	if attr == nil {
		return nil, diags
	}
	var f float64
	diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &f)...)
	return &f, diags
}

// ctyToNative converts a literal default to the Go value the editor works with.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("default must be a known, non-null value")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number default: %w", err)
		}
		return f, nil
	case cty.Bool:
		return v.True(), nil
	default:
		return nil, fmt.Errorf("unsupported default type %s", v.Type().FriendlyName())
	}
}

func findManifestFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat manifest path %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".hcl" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to find manifest files in %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
