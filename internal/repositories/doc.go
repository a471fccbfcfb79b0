// Package repositories implements SQLite persistence for the local upload history.
//
// Key Implementations:
//   - [UploadRepository] : models.Repository[*models.UploadRecord] over the uploads table
//   - [UploadRecorder] : tasks.Recorder adapter that upserts pipeline state changes
//
// Records are keyed by the tracking key of the upload and ordered by creation time.
package repositories
