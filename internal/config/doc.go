// Package config loads, validates and builds pipeline documents.
//
// A document is a YAML file holding a format version, pipeline settings and
// an ordered list of tools. Tools are listed in the order they run within
// their stage; the stage itself is implied by the tool kind.
package config
