// Package imaging provides the image plumbing used by the mask pipeline.
//
// This package implements source loading with sanity checks, an image cache,
// binary mask algebra, colour channel extraction, Canny edge maps and PNG
// encoding. All operations work with standard Go image.Image types and use a
// coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Masks
//
// A mask is an *image.Gray in which 0 is background and any non-zero value is
// foreground. Functions that produce masks always write 0 or 255.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Mask helpers never mutate
// their inputs unless their name says so (FillRegion, ClearRegion).
//
// # Error Handling
//
// Source problems (unreadable file, undecodable data, a frame that is too
// small or blank) are reported as *SourceError values wrapping one of the
// Err* sentinels, so callers can classify them with errors.Is.
package imaging
