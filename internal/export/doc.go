// Package export turns references into files for other tools: BibTeX for
// citation managers and a standalone HTML reading list.
package export
