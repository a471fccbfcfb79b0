// Package models defines the wire types of the notebook backend and the locally persisted upload history.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): JSON shapes exchanged with the materials API
//   - [Material] : A registered material and its processing status
//   - [MaterialList] : Materials of a notebook
//   - [CreateMaterialRequest] / [UploadResponse] : Registration of an uploaded object
//   - [MaterialStatus] : Result of a status poll
//
// 2. Persistent Entities: Database-backed models
//   - [UploadRecord] : One file pipeline started by this client and its outcome
//
// Persistent entities implement the Model interface; Repository[T] defines the CRUD operations used by the
// repositories package.
package models
