// Package profile extracts print profiles from 3MF project packages.
//
// A 3MF package is a ZIP container holding a [Content_Types].xml manifest, one
// or more *.model XML descriptors and an optional Metadata/ directory where
// slicers drop their own configuration and preview images. This package reads
// all of it without modifying the source file.
//
// # Pipeline
//
// [Extract] opens the package once and runs every stage over its entries:
//
//  1. The first *.model descriptor yields the object count and inline metadata.
//  2. Each stage in [MergeOrder] contributes a partial mapping. Later stages
//     overwrite earlier keys on collision.
//  3. The thumbnail locator records which entry (if any) holds a preview.
//
// Every value captured by a dialect decoder goes through [Normalize], which
// turns "20%" into 20, "0.2mm" into 0.2 and "on" into true.
//
// # Failure Model
//
// Only a package that cannot be opened is fatal; [Result.Error] is set and no
// partial data is attempted. A stage that fails to parse its payload contributes
// nothing and the pipeline continues. Those failures are logged at debug level
// and never returned.
//
// [Validate] is a separate pre-flight gate. It checks the file name, the ZIP
// container and the minimal package shape, and reports a distinct reason for
// each failure.
package profile
