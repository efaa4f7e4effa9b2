// Package core holds the student record logic: the directory that lists,
// searches and edits records, and the importer that bulk-loads them from
// spreadsheets.
//
// Nothing here knows about HTTP or the command line. Web handlers and the
// CLI both call into [Directory] and [Importer] through a [Service].
//
// # Listing
//
// [Directory.List] builds one aggregation pipeline per call:
//
//	match(search) -> sort(created_at desc) -> skip((page-1)*limit) -> limit(limit)
//
// The total is counted with the same filter and does not depend on the
// page. Pages past the end return no students but still report the total.
//
// # Importing
//
// [Importer.Import] reads the first sheet of an .xlsx workbook (or a .csv
// file), treats the first row as the header and maps these columns:
//
//	Class            -> class_name
//	Name             -> name
//	Father Name      -> father_name
//	Mother Name      -> mother_name
//	Address          -> address
//	Mobile           -> mobile
//	Alternate Mobile -> alternate_mobile
//	College Name     -> college_name
//
// A row whose only value is Class is stored as a college heading: the
// value goes to college_name instead of class_name. Rows with no values
// are skipped.
//
// # Error Handling
//
// Missing records surface as [ErrNotFound], unreadable files as
// [ErrImport]. [MapError] turns any error into a coded [UserMessage]:
//
//   - STU001-STU002: Student lookup and input errors
//   - IMP001-IMP003: Spreadsheet import errors
//   - DB001-DB004: Store connectivity errors
//   - CFG001: Configuration errors
//   - UPL001-UPL003: Upload errors (busy, cancelled, timeout)
//   - RATE001: Rate limiting
package core
