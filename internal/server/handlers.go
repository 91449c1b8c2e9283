package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"

	"github.com/ironsheep/leafmask/internal/config"
	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/morph"
	"github.com/ironsheep/leafmask/internal/pipeline"
	"github.com/ironsheep/leafmask/internal/region"
	"github.com/ironsheep/leafmask/internal/report"
	"github.com/ironsheep/leafmask/internal/tools"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pipeline_run").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Info("tool call failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (any, error) {
	switch name {
	case "pipeline_list_tools":
		return s.handleListTools()
	case "pipeline_add_tool":
		return s.handleAddTool(args)
	case "pipeline_update_tool":
		return s.handleUpdateTool(args)
	case "pipeline_toggle_tool":
		return s.handleToggleTool(args)
	case "pipeline_move_tool":
		return s.handleMoveTool(args)
	case "pipeline_delete_tool":
		return s.handleDeleteTool(args)
	case "pipeline_settings":
		return s.handleSettings(args)

	case "pipeline_run":
		return s.handleRun(args)
	case "mask_clean":
		return s.handleMaskClean(args)
	case "image_info":
		return s.handleImageInfo(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals args into dst. Empty arguments leave dst as is.
func decodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Pipeline editing ===

type listToolsResult struct {
	Settings config.SettingsDoc  `json:"settings"`
	Tools    []pipeline.ToolInfo `json:"tools"`
	Kinds    []tools.Info        `json:"kinds"`
}

func (s *Server) handleListTools() (any, error) {
	return &listToolsResult{
		Settings: config.SettingsFrom(s.pipeline.Settings()),
		Tools:    s.pipeline.Tools(),
		Kinds:    tools.Kinds(),
	}, nil
}

type toolArgs struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Params  map[string]any `json:"params"`
	Enabled *bool          `json:"enabled"`
	Index   *int           `json:"index"`
}

func (a toolArgs) requireID() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

func (s *Server) handleAddTool(args json.RawMessage) (any, error) {
	var a toolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	tool, stage, err := tools.Build(a.Kind, a.Params)
	if err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = config.GenerateID(tool.Name())
	}
	if err := s.pipeline.Add(pipeline.NewStageTool(a.ID, stage, tool)); err != nil {
		return nil, err
	}
	return s.toolState(a.ID)
}

func (s *Server) handleUpdateTool(args json.RawMessage) (any, error) {
	var a toolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.requireID(); err != nil {
		return nil, err
	}
	st, ok := s.pipeline.Tool(a.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownTool, a.ID)
	}
	tool, _, err := tools.Build(st.Tool.Name(), a.Params)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.Update(a.ID, tool); err != nil {
		return nil, err
	}
	return s.toolState(a.ID)
}

func (s *Server) handleToggleTool(args json.RawMessage) (any, error) {
	var a toolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.requireID(); err != nil {
		return nil, err
	}
	var err error
	if a.Enabled != nil {
		err = s.pipeline.SetEnabled(a.ID, *a.Enabled)
	} else {
		err = s.pipeline.Toggle(a.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.toolState(a.ID)
}

func (s *Server) handleMoveTool(args json.RawMessage) (any, error) {
	var a toolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.requireID(); err != nil {
		return nil, err
	}
	if a.Index == nil {
		return nil, errors.New("index is required")
	}
	if err := s.pipeline.Move(a.ID, *a.Index); err != nil {
		return nil, err
	}
	return s.pipeline.Tools(), nil
}

func (s *Server) handleDeleteTool(args json.RawMessage) (any, error) {
	var a toolArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.requireID(); err != nil {
		return nil, err
	}
	if err := s.pipeline.Delete(a.ID); err != nil {
		return nil, err
	}
	return s.pipeline.Tools(), nil
}

// toolState returns the listing entry of one tool.
func (s *Server) toolState(id string) (any, error) {
	for _, info := range s.pipeline.Tools() {
		if info.ID == id {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownTool, id)
}

type settingsArgs struct {
	Merge             *string `json:"merge"`
	Cache             *bool   `json:"cache"`
	BoundaryPosition  *string `json:"boundary_position"`
	RegionKernelSize  *int    `json:"region_kernel_size"`
	RegionKernelShape *string `json:"region_kernel_shape"`
}

func (s *Server) handleSettings(args json.RawMessage) (any, error) {
	var a settingsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	doc := config.SettingsFrom(s.pipeline.Settings())
	if a.Merge != nil {
		doc.Merge = *a.Merge
	}
	if a.Cache != nil {
		doc.Cache = a.Cache
	}
	if a.BoundaryPosition != nil {
		doc.BoundaryPosition = *a.BoundaryPosition
	}
	if a.RegionKernelSize != nil {
		doc.RegionKernelSize = *a.RegionKernelSize
	}
	if a.RegionKernelShape != nil {
		doc.RegionKernelShape = *a.RegionKernelShape
	}

	settings, err := doc.Resolve()
	if err != nil {
		return nil, err
	}
	s.pipeline.SetSettings(settings)
	return config.SettingsFrom(settings), nil
}

// === Processing ===

type runArgs struct {
	Path          string  `json:"path"`
	IncludeImages bool    `json:"include_images"`
	Scale         float64 `json:"scale"`
}

type decisionEntry struct {
	ToolID   string `json:"tool_id"`
	Stage    string `json:"stage"`
	Decision string `json:"decision"`
}

type runResult struct {
	report.ImageEntry
	Features  map[string]float64               `json:"features,omitempty"`
	Decisions []decisionEntry                  `json:"decisions"`
	Area      int                              `json:"area"`
	Images    map[string]*imaging.EncodedImage `json:"images,omitempty"`
}

func (s *Server) handleRun(args json.RawMessage) (any, error) {
	a := runArgs{Scale: 1.0}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	var rep *pipeline.RunReport
	img, err := imaging.LoadSource(s.cache, a.Path, s.check)
	if err != nil {
		se := pipeline.SourceIssue(err)
		rep = &pipeline.RunReport{Name: a.Path, Message: se.Error(), Errors: []*pipeline.StageError{se}}
	} else {
		rep = s.pipeline.Run(pipeline.NewImageContext(a.Path, img, nil))
	}
	s.logger.Info("pipeline run", "image", a.Path, "success", rep.Success,
		"processed", len(rep.Processed()), "elapsed", rep.Elapsed)

	out := &runResult{
		ImageEntry: report.NewImageEntry(a.Path, rep),
		Features:   rep.Features,
		Decisions:  make([]decisionEntry, 0, len(rep.Decisions)),
	}
	for _, d := range rep.Decisions {
		out.Decisions = append(out.Decisions, decisionEntry{
			ToolID: d.ToolID, Stage: d.Stage.String(), Decision: d.Decision.String(),
		})
	}
	if rep.Mask != nil {
		out.Area = imaging.CountNonZero(rep.Mask)
	}

	if a.IncludeImages {
		out.Images, err = encodeImages(rep, a.Scale)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodeImages encodes the final mask and every generated image.
func encodeImages(rep *pipeline.RunReport, scale float64) (map[string]*imaging.EncodedImage, error) {
	imgs := make(map[string]image.Image, len(rep.Images)+1)
	maps.Copy(imgs, rep.Images)
	if _, ok := imgs["mask"]; !ok && rep.Mask != nil {
		imgs["mask"] = rep.Mask
	}

	out := make(map[string]*imaging.EncodedImage, len(imgs))
	for _, name := range slices.Sorted(maps.Keys(imgs)) {
		enc, err := imaging.EncodePNGBase64(imgs[name], scale)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", name, err)
		}
		out[name] = enc
	}
	return out, nil
}

type rectArg struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r *rectArg) region(name string, tag region.Tag) *region.Region {
	if r == nil {
		return nil
	}
	reg := region.NewRect(name, tag, image.Rect(r.X1, r.Y1, r.X2, r.Y2))
	return &reg
}

type maskCleanArgs struct {
	Path              string   `json:"path"`
	ToleranceArea     int      `json:"tolerance_area"`
	ToleranceDistance int      `json:"tolerance_distance"`
	Dilation          int      `json:"dilation"`
	KernelShape       string   `json:"kernel_shape"`
	AreaOverride      int      `json:"area_override"`
	Position          string   `json:"position"`
	Anchor            *rectArg `json:"anchor"`
	Safe              *rectArg `json:"safe"`
	ProtectBig        bool     `json:"protect_big"`
	ProtectClose      bool     `json:"protect_close"`
	Scale             float64  `json:"scale"`
}

type hullEntry struct {
	Area           float64 `json:"area"`
	CX             float64 `json:"cx"`
	CY             float64 `json:"cy"`
	Classification string  `json:"classification"`
	Kept           bool    `json:"kept"`
}

type maskCleanResult struct {
	Found     bool                      `json:"found"`
	Reference *hullEntry                `json:"reference,omitempty"`
	Hulls     []hullEntry               `json:"hulls"`
	Kept      int                       `json:"kept"`
	Passes    []consolidation.PassStats `json:"passes"`
	Area      int                       `json:"area"`
	Mask      *imaging.EncodedImage     `json:"mask"`
}

func (s *Server) handleMaskClean(args json.RawMessage) (any, error) {
	a := maskCleanArgs{ToleranceArea: 1000, ToleranceDistance: 50, KernelShape: "rect", Scale: 1.0}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	shape, err := morph.ParseKernelShape(a.KernelShape)
	if err != nil {
		return nil, err
	}
	position := s.pipeline.Settings().BoundaryPosition
	if a.Position != "" {
		if position, err = region.ParsePosition(a.Position); err != nil {
			return nil, err
		}
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	raw := imaging.ToMask(img)

	anchor := a.Anchor.region("anchor", region.TagHelper)
	if anchor == nil {
		whole := region.NewRect("image", region.TagHelper, raw.Bounds())
		anchor = &whole
	}
	opts := consolidation.Options{
		ClassifyParams: consolidation.ClassifyParams{
			ToleranceArea:     a.ToleranceArea,
			ToleranceDistance: a.ToleranceDistance,
			Dilation:          a.Dilation,
			SafeRegion:        a.Safe.region("safe", region.TagSafe),
			ProtectBig:        a.ProtectBig,
			ProtectClose:      a.ProtectClose,
			AreaOverride:      a.AreaOverride,
		},
		Anchor:      anchor,
		Position:    position,
		KernelShape: shape,
	}

	mask, res, err := consolidation.BuildCleanedMask(raw, opts)
	if err != nil {
		return nil, err
	}

	out := &maskCleanResult{
		Found:  res.Reference != nil,
		Hulls:  make([]hullEntry, len(res.Original)),
		Kept:   res.Kept,
		Passes: res.Passes,
		Area:   imaging.CountNonZero(mask),
	}
	if r := res.Reference; r != nil {
		out.Reference = &hullEntry{Area: r.Area, CX: r.CX, CY: r.CY, Classification: consolidation.FullyInside.String(), Kept: true}
	}
	for i, h := range res.Original {
		cls := res.OriginalClasses[i]
		out.Hulls[i] = hullEntry{Area: h.Area, CX: h.CX, CY: h.CY, Classification: cls.String(), Kept: cls.Accepted()}
	}
	if out.Mask, err = imaging.EncodePNGBase64(mask, a.Scale); err != nil {
		return nil, err
	}
	return out, nil
}

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (any, error) {
	var a imageInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
