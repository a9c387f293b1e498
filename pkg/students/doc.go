// Package students provides the student records service: CRUD over student
// rows with an optional profile picture held in a pluggable blob store.
//
// The Service orchestrates a Repository (memory, Postgres or SQLite) and a
// BlobStore (memory, local filesystem or S3). The service only depends on
// the BlobStore Store/Delete contract; which variant is active is decided by
// configuration (see the config subpackage).
//
// Picture locators are opaque. The filesystem store returns root-relative
// paths such as /uploads/students/<uuid>.jpg, the S3 store returns presigned
// URLs. A locator is only ever consumed by the store that produced it.
package students
