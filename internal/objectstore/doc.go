// Package objectstore issues time-limited credentials for recording
// objects. The provider is chosen once at startup; the local provider
// serves files from a directory on the daemon host while the bucket
// provider presigns requests against an S3-compatible endpoint.
package objectstore
