// Package core contains the pure domain model of the lending lifecycle:
// books with copy counts, book requests, loan transactions, fines, and the
// library settings snapshot.
//
// Everything in this package is side-effect free. Entities are value types
// whose transition methods return an updated copy or a typed business error;
// fine arithmetic is plain functions over a settings snapshot. Persistence,
// retries, and concurrency live in the component shells.
package core
