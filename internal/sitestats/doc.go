// Package sitestats summarises camera-site operation for the site table.
//
// A site table is a user-maintained CSV with at least camera_site, lat and
// lon columns. Update appends (or refreshes) per-site statistics derived from
// the images left in each site folder after review: first and last capture,
// operating days, image counts per bucket and the number of days with
// detections.
package sitestats
