// Package backup writes timestamped copies of the RefForge database.
//
// Each backup is a VACUUM INTO snapshot named <file>_<YYYYMMDD_HHMMSS>.bak with a
// blake2b-256 sidecar (<backup>.blake2b) that Verify checks. Backup keeps the
// newest N copies of a given database file and can mirror each new copy to
// an S3 bucket through an Uploader. A failed mirror is reported in Result but
// doesn't fail the backup.
package backup
