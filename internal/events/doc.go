// Package events partitions a camera site's detections into independent
// events with a time-gap rule and annotates per-image detection counts.
package events
