// Package pagination holds the page arithmetic behind the lazily loaded
// artwork table.
//
// The catalog pages are 1-based while the table widget reports zero-based
// page indexes. State keeps the 1-based page, the rows-per-page count and
// the total reported by the catalog, and derives everything the paginator
// shows from those three numbers:
//
//	s := pagination.New(10)
//	s = s.WithTotal(42)
//	s.TotalPages() // 5
//	s.First()      // 0
//
// The row count never resets the page: a larger page size can leave the
// current page out of range until the viewer pages again (see InRange).
package pagination
