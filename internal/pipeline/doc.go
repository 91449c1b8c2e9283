// Package pipeline runs configured stage tools against one image context.
//
// Stages execute in a fixed order: exposure fix, pre-processing, ROI
// construction, coarse threshold, mask cleanup, feature extraction and
// image generation. Tools within a stage run in their configured order.
//
// # Caching
//
// Every tool descriptor memoises its last result together with the image
// context token observed before processing. The token digests the current
// image, mask and regions. A later run reuses the memo
// when caching is enabled, the token still matches and every earlier tool
// of the run was reused as well; once a tool is recomputed no later tool is
// reused for the rest of that run.
//
// Mutating the configuration (toggle, move, delete, update) clears the
// memo of the affected tool and of every tool after it in stage order.
//
// # Errors
//
// Failures surface as *StageError values carrying an ErrorKind. A tool
// failure aborts the run for that image and clears the context token.
package pipeline
