// Package formats provides decoders and encoders for the binary scene
// files that collision shapes are built from.
package formats
