// Package core provides the business logic of the model library.
//
// It sits between the transport layer and storage: web handlers and tests use
// [Service] without knowing about PostgreSQL or the file layout.
//
// # Uploads
//
// [Service.CreateModel] takes an upload slot from the [UploadLimiter], stores
// the package through [FileStore], runs the structural validator and rejects
// invalid packages. It then extracts the print profile and preview with the
// profile package, bounded by the configured extraction timeout. Extraction
// never blocks acceptance: a package whose profile cannot be read is stored
// without settings.
//
// [Service.Preview] runs the same validation and extraction on a temporary
// copy and caches the outcome by SHA-256 of the content.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError]. Each
// category has its own code range for support reference:
//
//   - PKG001-PKG006: package validation and extraction
//   - FILE001-FILE004: upload files
//   - UPL001-UPL003: upload slots and request lifetime
//   - VAL001-VAL005: model edits
//   - DB001-DB006: database errors
package core
