// Package report renders batch summaries as Markdown or JSON and saves the
// images produced by a run.
//
// Every writer lists all processed images with their status; the merged
// feature table only holds images that completed successfully.
package report
