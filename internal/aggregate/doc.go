// Package aggregate flattens a directory tree into a single text blob.
//
// Every regular file is read as UTF-8 and appended as
//
//	File: <base name>
//
//	<text>
//
// followed by a blank line. Files that are not valid UTF-8 or cannot be read
// are skipped and reported in Result.Skipped; only a failure of the walk
// itself aborts aggregation with an *AggregationError.
package aggregate
