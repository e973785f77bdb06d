// Package session owns Session and Device aggregate state.
//
// The registry is the exclusive owner of session status transitions. A
// session holds at most one live connection per device role at any instant;
// AttachDevice serializes the read-check-write attach sequence per
// (session, role) key so concurrent joins replace rather than duplicate.
// While no recording is in flight, session status is a pure function of the
// connection flags; recording and upload progress is never reverted by a
// disconnect.
package session
