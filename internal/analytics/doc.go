// Package analytics derives summary views from a single owner's ledger.
//
// Every function is pure: it reads the slice it is given, never mutates it,
// performs no I/O and keeps no state, so concurrent callers only need their
// own input slices. Empty input yields the documented zero value. A record
// whose date is missing yields a *core.DataError naming the record.
//
// Amounts that are zero or negative (possible only for data that bypassed
// input validation) contribute nothing to sums and averages.
package analytics
