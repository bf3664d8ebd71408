// Package breakout lays classified images out on disk for human review.
//
// Snips copies each site's classifier snips into a service-wide tree of
// species and probability-bin folders. Animals moves the full-size images of
// each camera site into per-species folders under the site's animal folder.
// Both operations skip files that are already in place, so a rerun never
// undoes sorting a person has done.
package breakout
