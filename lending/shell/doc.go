// Package shell contains the infrastructure glue shared by all lending
// components: document codecs, the optimistic-concurrency retry loop,
// and the clock abstraction.
//
// The domain logic itself lives in lending/core and never touches this
// package; the per-feature components compose both.
package shell
