// Package jsonldb provides a generic, concurrent-safe, JSONL-backed table.
//
// # Overview
//
// [Table] stores rows in a JSONL (JSON Lines) file with full in-memory
// caching for fast reads. Rows are keyed by a positive int64 id and are
// cloned on the way in and out so callers never share memory with the cache.
//
// # File Format
//
// Line 1 is a schema header derived from the row type with JSON Schema
// reflection; subsequent lines are JSON rows in insertion order. Appends are
// written in place; updates and deletes rewrite the file through a temporary
// file and a rename.
package jsonldb
