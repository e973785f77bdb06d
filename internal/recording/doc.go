// Package recording tracks captured clips and their upload lifecycle.
//
// Every capture writes one row per attached device in a single transaction,
// all sharing the server-issued start timestamp. Upload progress moves each
// row through PENDING, UPLOADING and finally COMPLETED or FAILED; workflow
// progress counts a combination once every expected role has at least
// started its upload.
package recording
