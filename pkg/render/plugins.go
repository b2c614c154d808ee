package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	extism "github.com/extism/go-sdk"
	"go.uber.org/zap"
)

// pluginExport is the function every renderer plugin must export.
const pluginExport = "render"

// pluginRequest is the JSON document passed to a plugin.
type pluginRequest struct {
	PartCode       string         `json:"part_code"`
	PartName       string         `json:"part_name"`
	FunctionalType string         `json:"functional_type"`
	InstanceID     string         `json:"instance_id"`
	Props          map[string]any `json:"props"`
}

// pluginResponse is the JSON document a plugin returns.
type pluginResponse struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Props map[string]any `json:"props"`
}

// Plugin is a bespoke renderer compiled to WebAssembly. Calls are
// serialized because an extism plugin instance is not safe for concurrent use.
type Plugin struct {
	code   string
	path   string
	mu     sync.Mutex
	plugin *extism.Plugin
}

// Code returns the part code the plugin renders.
func (p *Plugin) Code() string {
	return p.code
}

// Render implements RenderFunc.
func (p *Plugin) Render(ctx context.Context, in Input) (Block, error) {
	req, err := json.Marshal(pluginRequest{
		PartCode:       in.Part.Code,
		PartName:       in.Part.Name,
		FunctionalType: string(in.Part.FunctionalType),
		InstanceID:     in.Instance.InstanceID.String(),
		Props:          in.Props,
	})
	if err != nil {
		return Block{}, fmt.Errorf("failed to encode plugin input: %w", err)
	}

	p.mu.Lock()
	exit, out, err := p.plugin.CallWithContext(ctx, pluginExport, req)
	p.mu.Unlock()
	if err != nil {
		return Block{}, fmt.Errorf("plugin %s failed (exit %d): %w", p.path, exit, err)
	}

	var resp pluginResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return Block{}, fmt.Errorf("plugin %s returned invalid output: %w", p.path, err)
	}

	props := resp.Props
	if props == nil {
		props = in.Props
	}
	return Block{Kind: BlockKindCustom, Title: resp.Title, Body: resp.Body, Props: props}, nil
}

// Close releases the plugin runtime.
func (p *Plugin) Close(ctx context.Context) error {
	return p.plugin.CloseWithContext(ctx)
}

// LoadPlugins compiles every <code>.wasm file in dir and registers it as the
// bespoke renderer for <code>. A missing directory loads nothing. The
// returned plugins must be closed on shutdown.
func (r *Resolver) LoadPlugins(ctx context.Context, dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		r.logger.Info("No renderer plugin directory", zap.String("path", dir))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".wasm" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var loaded []*Plugin
	for _, name := range names {
		path := filepath.Join(dir, name)
		code := strings.TrimSuffix(name, ".wasm")

		plugin, err := loadPlugin(ctx, path)
		if err != nil {
			for _, p := range loaded {
				_ = p.Close(ctx)
			}
			return nil, err
		}

		p := &Plugin{code: code, path: path, plugin: plugin}
		r.Register(code, p.Render)
		loaded = append(loaded, p)
		r.logger.Info("Registered renderer plugin", zap.String("part_code", code), zap.String("path", path))
	}
	return loaded, nil
}

func loadPlugin(ctx context.Context, path string) (*extism.Plugin, error) {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: path},
		},
	}
	plugin, err := extism.NewPlugin(ctx, manifest, extism.PluginConfig{EnableWasi: true}, []extism.HostFunction{})
	if err != nil {
		return nil, fmt.Errorf("failed to load renderer plugin %s: %w", path, err)
	}
	if !plugin.FunctionExists(pluginExport) {
		_ = plugin.CloseWithContext(ctx)
		return nil, fmt.Errorf("renderer plugin %s does not export %q", path, pluginExport)
	}
	return plugin, nil
}
