// Package services contains HTTP clients for the collaborators of the upload pipeline.
//
// # Storage
//
// [StorageService] writes file bytes to the Supabase Storage REST API and reports upload progress through a
// counting reader. It also resolves the owner id of the access token, which prefixes every object path.
//
// # Materials
//
// [MaterialsService] talks to the notebook backend (FastAPI): registering uploaded objects, polling their
// processing status, and listing, fetching, or deleting materials. FastAPI error bodies of the form
// {"detail": ...} surface as [APIError].
//
// # Raw API
//
// [APIService] performs unprocessed GET/POST/DELETE requests for debugging from the CLI.
//
// All clients take an *http.Client so callers can inject the bearer-token transport from [NewAuthClient]
// or a test double.
package services
