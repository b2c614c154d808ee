package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/assembly-factory/pkg/schema"
)

func renderComposite(ctx context.Context, in Input) (Block, error) {
	return Block{
		Kind:  BlockKindComposite,
		Body:  fmt.Sprintf("%s section\n%s", in.Part.Name, summarizeProps(in.Props)),
		Props: in.Props,
	}, nil
}

func renderMetricTile(ctx context.Context, in Input) (Block, error) {
	return Block{
		Kind:  BlockKindMetricTile,
		Body:  fmt.Sprintf("%s: --", in.Part.Name),
		Props: in.Props,
	}, nil
}

func renderInputControl(ctx context.Context, in Input) (Block, error) {
	return Block{
		Kind:  BlockKindInputControl,
		Body:  fmt.Sprintf("[ %s ]", in.Part.Name),
		Props: in.Props,
	}, nil
}

// summarizeProps lists the part-specific settings as "name=value" pairs.
func summarizeProps(props map[string]any) string {
	names := make([]string, 0, len(props))
	for name := range props {
		switch name {
		case schema.FieldVisible, schema.FieldStyleClass, schema.FieldTitle:
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = fmt.Sprintf("%s=%v", name, props[name])
	}
	return strings.Join(pairs, " ")
}
