// Package executor coordinates kernel generation for a library build.
//
// Generation is a fan-out/fan-in batch: every kernel is handed to a bounded
// pool of workers, results are collected as they arrive and paired back to
// their kernel by index, and only once every worker has finished are
// failures scanned, cascaded and the surviving code grouped into files.
// Nothing is written to disk until the scan has passed.
package executor
