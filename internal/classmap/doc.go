// Package classmap holds the immutable class_id to class_name reference used
// to keep every table row's id and name in agreement.
//
// Maps come from MEWC's class_map.yaml or are derived from the classes present
// in an AI output table. Names are compared in NFC form.
package classmap
