//go:build !debug
// +build !debug

package debug

const DEBUG = false
