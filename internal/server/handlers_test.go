package server

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args map[string]any, out any) {
	t.Helper()
	resp := s.handleRequest(toolRequest(t, name, args))
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("%s failed: %s: %v", name, resp.Error.Message, resp.Error.Data)
	}
	content := resp.Result.(map[string]any)["content"].([]map[string]any)
	text := content[0]["text"].(string)
	if out == nil {
		return
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("%s returned invalid JSON: %v\n%s", name, err, text)
	}
}

// callToolError runs a tools/call request that must fail and returns the
// error detail.
func callToolError(t *testing.T, s *Server, name string, args map[string]any) string {
	t.Helper()
	resp := s.handleRequest(toolRequest(t, name, args))
	if resp.Error == nil {
		t.Fatalf("expected %s to fail", name)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("expected code -32000, got %d", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	return data
}

func toolRequest(t *testing.T, name string, args map[string]any) *MCPRequest {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params}
}

type toolEntry struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Enabled bool   `json:"enabled"`
	Cached  bool   `json:"cached"`
	Index   int    `json:"index"`
}

type runOutput struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  []struct {
		Kind  string `json:"kind"`
		Stage string `json:"stage"`
	} `json:"errors"`
	Features  map[string]float64 `json:"features"`
	Area      int                `json:"area"`
	Decisions []struct {
		ToolID   string `json:"tool_id"`
		Decision string `json:"decision"`
	} `json:"decisions"`
	Images map[string]struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
	} `json:"images"`
}

func (r runOutput) decisions() map[string]string {
	d := make(map[string]string, len(r.Decisions))
	for _, e := range r.Decisions {
		d[e.ToolID] = e.Decision
	}
	return d
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	if data := callToolError(t, s, "image_ocr_full", nil); !strings.Contains(data, "unknown tool") {
		t.Errorf("unexpected error: %s", data)
	}
}

func TestEveryDefinedToolIsDispatched(t *testing.T) {
	s := newTestServer(t)
	for _, def := range GetToolDefinitions() {
		_, err := s.executeTool(def.Name, json.RawMessage(`{}`))
		if err != nil && err.Error() == "unknown tool: "+def.Name {
			t.Errorf("tool %s is defined but not dispatched", def.Name)
		}
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)
	var out struct {
		Settings map[string]any `json:"settings"`
		Tools    []toolEntry    `json:"tools"`
		Kinds    []struct {
			Kind string `json:"kind"`
		} `json:"kinds"`
	}
	callTool(t, s, "pipeline_list_tools", nil, &out)

	if len(out.Tools) != 3 || out.Tools[0].ID != "green" || out.Tools[1].Stage != "mask_cleanup" {
		t.Errorf("unexpected tools: %+v", out.Tools)
	}
	if out.Settings["merge"] != "and" || out.Settings["boundary_position"] != "bottom_center" {
		t.Errorf("unexpected settings: %v", out.Settings)
	}
	if len(out.Kinds) == 0 || out.Kinds[0].Kind != "exposure" {
		t.Errorf("unexpected kinds: %+v", out.Kinds)
	}
}

func TestPipelineEditing(t *testing.T) {
	s := newTestServer(t)

	var added toolEntry
	callTool(t, s, "pipeline_add_tool", map[string]any{
		"kind": "morphology", "params": map[string]any{"op": "close"},
	}, &added)
	if !strings.HasPrefix(added.ID, "morphology-") || added.Stage != "mask_cleanup" || !added.Enabled {
		t.Errorf("unexpected added tool: %+v", added)
	}

	var toggled toolEntry
	callTool(t, s, "pipeline_toggle_tool", map[string]any{"id": added.ID}, &toggled)
	if toggled.Enabled {
		t.Error("toggle should disable the tool")
	}
	callTool(t, s, "pipeline_toggle_tool", map[string]any{"id": added.ID, "enabled": true}, &toggled)
	if !toggled.Enabled {
		t.Error("enabled: true should enable the tool")
	}

	var tools []toolEntry
	callTool(t, s, "pipeline_move_tool", map[string]any{"id": added.ID, "index": 0}, &tools)
	if tools[1].ID != added.ID || tools[2].ID != "clean" {
		t.Errorf("expected %s before clean, got %+v", added.ID, tools)
	}

	var updated toolEntry
	callTool(t, s, "pipeline_update_tool", map[string]any{"id": added.ID, "params": map[string]any{"op": "open", "size": 5}}, &updated)
	if updated.Kind != "morphology" {
		t.Errorf("unexpected updated tool: %+v", updated)
	}

	callTool(t, s, "pipeline_delete_tool", map[string]any{"id": added.ID}, &tools)
	if len(tools) != 3 {
		t.Errorf("expected 3 tools after delete, got %d", len(tools))
	}
}

func TestPipelineEditingErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"pipeline_add_tool", map[string]any{"kind": "ocr"}, "unknown tool kind"},
		{"pipeline_add_tool", map[string]any{"kind": "blur", "id": "green"}, "green"},
		{"pipeline_add_tool", map[string]any{"kind": "blur", "params": map[string]any{"radius_px": 2}}, "invalid parameters"},
		{"pipeline_update_tool", map[string]any{"id": "missing"}, "unknown tool"},
		{"pipeline_toggle_tool", map[string]any{}, "id is required"},
		{"pipeline_move_tool", map[string]any{"id": "green"}, "index is required"},
		{"pipeline_move_tool", map[string]any{"id": "green", "index": -1}, "invalid position"},
		{"pipeline_delete_tool", map[string]any{"id": "missing"}, "unknown tool"},
		{"pipeline_settings", map[string]any{"boundary_position": "somewhere"}, "invalid pipeline settings"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if data := callToolError(t, s, tt.tool, tt.args); !strings.Contains(data, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, data)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)
	var out map[string]any
	callTool(t, s, "pipeline_settings", map[string]any{"merge": "or", "cache": false}, &out)

	if out["merge"] != "or" || out["cache"] != false {
		t.Errorf("unexpected settings: %v", out)
	}
	got := s.Pipeline().Settings()
	if got.CacheEnabled || got.BoundaryPosition.String() != "bottom_center" {
		t.Errorf("settings not applied: %+v", got)
	}
}

func TestPipelineRun(t *testing.T) {
	s := newTestServer(t)
	path := createPlantImage(t)

	var first runOutput
	callTool(t, s, "pipeline_run", map[string]any{"path": path, "include_images": true, "scale": 0.5}, &first)
	if !first.Success {
		t.Fatalf("run failed: %s", first.Message)
	}
	if first.Features["area"] != 400 || first.Area != 400 {
		t.Errorf("expected an area of 400, got %v / %d", first.Features["area"], first.Area)
	}
	for id, d := range first.decisions() {
		if d != "fresh" {
			t.Errorf("first run: tool %s was %s", id, d)
		}
	}
	mask, ok := first.Images["mask"]
	if !ok || mask.Width != 32 || mask.ImageBase64 == "" {
		t.Errorf("expected a scaled mask image, got %+v", first.Images)
	}

	var second runOutput
	callTool(t, s, "pipeline_run", map[string]any{"path": path}, &second)
	for id, d := range second.decisions() {
		if d != "reused" {
			t.Errorf("second run: tool %s was %s", id, d)
		}
	}
	if second.Images != nil {
		t.Error("images must be omitted unless requested")
	}

	callTool(t, s, "pipeline_update_tool", map[string]any{"id": "clean", "params": map[string]any{"tolerance_distance": 20}}, nil)
	var third runOutput
	callTool(t, s, "pipeline_run", map[string]any{"path": path}, &third)
	d := third.decisions()
	if d["green"] != "reused" || d["clean"] == "reused" || d["shape"] == "reused" {
		t.Errorf("an update must only invalidate downstream tools: %v", d)
	}
	if third.Features["area"] != 400 {
		t.Errorf("expected an area of 400, got %v", third.Features["area"])
	}
}

func TestPipelineRun_Failures(t *testing.T) {
	s := newTestServer(t)

	corrupt := filepath.Join(t.TempDir(), "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out runOutput
	callTool(t, s, "pipeline_run", map[string]any{"path": corrupt}, &out)
	if out.Success || len(out.Errors) != 1 || out.Errors[0].Kind != "source_issue" {
		t.Errorf("expected a source issue, got %+v", out)
	}

	soil := writePNG(t, "soil.png", image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	callTool(t, s, "pipeline_run", map[string]any{"path": soil}, &out)
	if out.Success {
		t.Error("a too small image must fail")
	}

	if data := callToolError(t, s, "pipeline_run", map[string]any{}); !strings.Contains(data, "path is required") {
		t.Errorf("unexpected error: %s", data)
	}
}

// createMaskImage writes a 64x64 mask holding a 20x20 object near the
// bottom and a 3x3 speck in the top left corner.
func createMaskImage(t *testing.T) string {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, 64, 64))
	fill := func(x0, y0, x1, y1 int) {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				m.Pix[m.PixOffset(x, y)] = 255
			}
		}
	}
	fill(22, 40, 42, 60)
	fill(2, 2, 5, 5)
	return writePNG(t, "mask.png", m)
}

func TestMaskClean(t *testing.T) {
	s := newTestServer(t)
	path := createMaskImage(t)

	var out struct {
		Found     bool `json:"found"`
		Reference *struct {
			Area float64 `json:"area"`
		} `json:"reference"`
		Hulls []struct {
			Area           float64 `json:"area"`
			Classification string  `json:"classification"`
			Kept           bool    `json:"kept"`
		} `json:"hulls"`
		Kept int `json:"kept"`
		Area int `json:"area"`
		Mask struct {
			Width int `json:"width"`
		} `json:"mask"`
	}
	callTool(t, s, "mask_clean", map[string]any{"path": path}, &out)

	if !out.Found || out.Reference == nil || out.Reference.Area != 400 {
		t.Fatalf("expected the 20x20 object as reference, got %+v", out.Reference)
	}
	if len(out.Hulls) != 2 || out.Kept != 1 || out.Area != 400 {
		t.Errorf("expected the speck to be dropped, got %+v", out)
	}
	for _, h := range out.Hulls {
		if h.Area == 9 && h.Kept {
			t.Errorf("speck kept as %s", h.Classification)
		}
	}
	if out.Mask.Width != 64 {
		t.Errorf("expected a 64 pixel wide mask, got %d", out.Mask.Width)
	}

	callTool(t, s, "mask_clean", map[string]any{"path": path, "tolerance_area": 5, "tolerance_distance": -1}, &out)
	if out.Kept != 2 || out.Area != 409 {
		t.Errorf("relaxed tolerances should keep both fragments, got kept=%d area=%d", out.Kept, out.Area)
	}

	if data := callToolError(t, s, "mask_clean", map[string]any{"path": path, "kernel_shape": "hexagon"}); data == "" {
		t.Error("expected an error detail")
	}
}

func TestImageInfo(t *testing.T) {
	s := newTestServer(t)
	var out struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	callTool(t, s, "image_info", map[string]any{"path": createPlantImage(t)}, &out)
	if out.Width != 64 || out.Height != 64 || out.Format != "png" {
		t.Errorf("unexpected info: %+v", out)
	}
}

func TestGetToolDefinitions(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range GetToolDefinitions() {
		if seen[def.Name] {
			t.Errorf("duplicate tool %s", def.Name)
		}
		seen[def.Name] = true
		if def.Description == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
		if def.InputSchema["type"] != "object" {
			t.Errorf("tool %s schema is not an object", def.Name)
		}
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 tools, got %d", len(seen))
	}
}
