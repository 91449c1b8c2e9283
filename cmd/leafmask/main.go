// Package main provides the leafmask command line.
//
// leafmask segments plants in photographs with a configurable pipeline of
// stage tools and measures the resulting masks.
//
// Usage:
//
//	leafmask run <image-or-directory>...
//	leafmask serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
