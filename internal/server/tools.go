package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type schema = map[string]any

func prop(typ, description string) schema {
	return schema{"type": typ, "description": description}
}

func object(properties schema, required ...string) schema {
	s := schema{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func rectangle(description string) schema {
	s := object(schema{
		"x1": prop("integer", "Left edge"),
		"y1": prop("integer", "Top edge"),
		"x2": prop("integer", "Right edge (exclusive)"),
		"y2": prop("integer", "Bottom edge (exclusive)"),
	}, "x1", "y1", "x2", "y2")
	s["description"] = description
	return s
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pipeline editing
		{
			Name:        "pipeline_list_tools",
			Description: "List the pipeline settings, its stage tools in execution order with their enabled and cached state, and every tool kind that can be added.",
			InputSchema: object(schema{}),
		},
		{
			Name:        "pipeline_add_tool",
			Description: "Add a stage tool of the given kind at the end of its stage. Tools downstream of it lose their cached results.",
			InputSchema: object(schema{
				"kind":   prop("string", "Tool kind, as listed by pipeline_list_tools"),
				"id":     prop("string", "Tool ID. Generated from the kind when omitted"),
				"params": prop("object", "Kind-specific parameters"),
			}, "kind"),
		},
		{
			Name:        "pipeline_update_tool",
			Description: "Replace the parameters of a stage tool. Parameters not given take their defaults.",
			InputSchema: object(schema{
				"id":     prop("string", "Tool ID"),
				"params": prop("object", "Kind-specific parameters"),
			}, "id"),
		},
		{
			Name:        "pipeline_toggle_tool",
			Description: "Enable or disable a stage tool. Without 'enabled' the current state is flipped.",
			InputSchema: object(schema{
				"id":      prop("string", "Tool ID"),
				"enabled": prop("boolean", "New enabled state"),
			}, "id"),
		},
		{
			Name:        "pipeline_move_tool",
			Description: "Move a stage tool to a position within its own stage (0 = first).",
			InputSchema: object(schema{
				"id":    prop("string", "Tool ID"),
				"index": prop("integer", "Position within the stage"),
			}, "id", "index"),
		},
		{
			Name:        "pipeline_delete_tool",
			Description: "Remove a stage tool from the pipeline.",
			InputSchema: object(schema{
				"id": prop("string", "Tool ID"),
			}, "id"),
		},
		{
			Name:        "pipeline_settings",
			Description: "Change pipeline settings. Omitted fields keep their value. Any change clears every cached result.",
			InputSchema: object(schema{
				"merge":               schema{"type": "string", "enum": []string{"and", "or"}, "description": "How partial threshold masks are combined"},
				"cache":               prop("boolean", "Reuse cached tool results between runs"),
				"boundary_position":   prop("string", "Anchor point used to pick the reference object (e.g. bottom_center)"),
				"region_kernel_size":  prop("integer", "Kernel size of region-bound morphology"),
				"region_kernel_shape": schema{"type": "string", "enum": []string{"rect", "ellipse", "cross"}, "description": "Kernel shape of region-bound morphology"},
			}),
		},

		// Processing
		{
			Name:        "pipeline_run",
			Description: "Run the pipeline on an image. Returns success, errors, extracted features and which tools were processed or reused from cache. Optionally returns the mask and generated images as base64 PNG.",
			InputSchema: object(schema{
				"path":           prop("string", "Absolute path to the image file"),
				"include_images": prop("boolean", "Return the mask and generated images (default: false)"),
				"scale":          prop("number", "Scale factor for returned images (default: 1.0)"),
			}, "path"),
		},
		{
			Name:        "mask_clean",
			Description: "Consolidate a binary mask image: keep the fragments that belong to the object nearest the anchor and erase the rest. Returns the hull classifications and the cleaned mask as base64 PNG.",
			InputSchema: object(schema{
				"path":               prop("string", "Absolute path to the mask image; non-black pixels are foreground"),
				"tolerance_area":     prop("integer", "Minimum area of a fragment outside the object (default: 1000, negative disables)"),
				"tolerance_distance": prop("integer", "Maximum distance of a fragment to the object (default: 50, negative disables)"),
				"dilation":           prop("integer", "Grow (positive) or shrink (negative) the mask before hull extraction"),
				"kernel_shape":       schema{"type": "string", "enum": []string{"rect", "ellipse", "cross"}, "description": "Kernel shape used for dilation (default: rect)"},
				"area_override":      prop("integer", "Keep any fragment larger than this, whatever its distance"),
				"position":           prop("string", "Anchor point within the anchor region (default: bottom_center)"),
				"anchor":             rectangle("Anchor region; defaults to the whole image"),
				"safe":               rectangle("Safe region where protection rules apply"),
				"protect_big":        prop("boolean", "Keep big fragments touching the safe region"),
				"protect_close":      prop("boolean", "Keep close fragments touching the safe region"),
				"scale":              prop("number", "Scale factor for the returned mask (default: 1.0)"),
			}, "path"),
		},
		{
			Name:        "image_info",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: object(schema{
				"path": prop("string", "Absolute path to the image file"),
			}, "path"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"tools": GetToolDefinitions(),
		},
	}
}
