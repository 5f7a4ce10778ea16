// Package nmsp implements the wire formats of the legacy NMSP dictation
// protocol spoken by embedded client firmware.
//
// Uploads arrive as a multipart body whose first part is a metadata blob and
// whose remaining parts each carry one length-prefixed codec packet. [Demuxer]
// recovers those parts incrementally from a body that may be delivered in
// arbitrarily small reads, including reads that split the boundary token.
//
// Replies are produced by [EncodeResult]. The firmware parses them with a
// hand-written matcher, so the envelope is assembled byte by byte: a fixed
// boundary, CRLF line endings, a single leading CRLF and no MIME preamble.
package nmsp
