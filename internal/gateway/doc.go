// Package gateway serves NMSP speech uploads.
//
// One [Handler] call runs the whole pipeline for one upload, strictly in
// order:
//
//  1. authenticate the caller from the virtual-host label,
//  2. read the metadata frame,
//  3. decode every audio subframe into one buffer,
//  4. optionally store a debug copy of the audio,
//  5. recognise the audio, retrying an unavailable backend,
//  6. optionally annotate the debug copy with the transcript,
//  7. encode the legacy multipart reply.
//
// Only step 5 is retried. Debug store failures are logged and never change
// the reply. Every other failure ends the request with the status chosen by
// [Status].
package gateway
