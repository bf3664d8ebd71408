// Package fault defines the pipeline's error taxonomy.
//
// Sentinel markers classify failures: integrity and policy errors abort one
// camera site, schema and configuration errors abort the run, metadata errors
// are tallied per file and never fatal. Diagnostic carries the site, file or
// class id, and violated invariant so an operator can fix the input by hand.
package fault
