// Package geocompare finds the tours which contain a part that is
// geographically similar to a reference tour segment.
//
// A Manager normalizes the reference, resolves candidate tours from the geo
// grid on a single background worker, compares every candidate on a pool of
// workers and aggregates the results of one Request. Starting a new
// comparison cancels the previous request; results of a canceled request are
// never published.
package geocompare
