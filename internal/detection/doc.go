// Package detection defines the fixed-schema row type shared by every stage
// of the pipeline.
//
// A Detection is one classified image (or snip) at one camera site. Optional
// values are explicit: the capture timestamp is a pointer and the flash flag
// is a tri-state, so a missing EXIF read never masquerades as a real value.
// Provenance codes record which stage last decided a row's class and only
// ever move upwards.
package detection
