// Package config defines the immutable build configuration shared by every
// stage of a library build, and loads defaults for it from an optional HCL
// file.
//
// A Build is constructed once, validated, and then passed by pointer. No
// stage mutates it.
package config
