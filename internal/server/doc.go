// Package server exposes an editable leafmask pipeline over the MCP (Model
// Context Protocol).
//
// The server speaks JSON-RPC 2.0 over a line-oriented stream, one request
// per line:
//   - initialize: protocol handshake
//   - tools/list: enumerate the MCP tools below
//   - tools/call: execute one of them
//   - ping: health check
//
// # Tools
//
// Pipeline editing:
//   - pipeline_list_tools: settings, stage tools and the tool kinds available
//   - pipeline_add_tool: add a stage tool of a given kind
//   - pipeline_update_tool: replace the parameters of a stage tool
//   - pipeline_toggle_tool: enable or disable a stage tool
//   - pipeline_move_tool: reorder a stage tool within its stage
//   - pipeline_delete_tool: remove a stage tool
//   - pipeline_settings: change the pipeline settings
//
// Processing:
//   - pipeline_run: run the pipeline on one image
//   - mask_clean: consolidate a binary mask image directly
//   - image_info: load an image and report its metadata
//
// # Caching
//
// The server owns one pipeline for its whole lifetime. Every stage tool
// keeps the memo of its last result, so running the same image again after
// an edit only processes the tools downstream of the change. Loaded images
// are cached by path.
//
// # Errors
//
// Tool execution errors are returned as JSON-RPC errors with code -32000.
// A pipeline run that fails on the image is not an execution error: the
// result then carries success false and the run errors.
package server
