// Package infer relabels unknown_animal detections from the majority class of
// their event.
//
// Resolution is conservative: a tie between the most frequent classes, an
// event with no resolved animals, or a dominant class whose mean AI
// probability is under the threshold all leave the unknown rows as they are.
// Running Resolve on its own output changes nothing.
package infer
