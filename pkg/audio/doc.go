// Package audio assembles NMSP audio subframes into a single buffer for the
// recognition backend and holds the small PCM helpers the codecs share.
//
// All PCM in this package is 16-bit little-endian mono. The sample rate is
// fixed by the codec package.
package audio
