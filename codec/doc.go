// Package codec translates logical commands into wire bytes and raw answers
// into validated results.
//
// Four wire formats are supported:
//
//   - ASCII: plain question/answer, "prefix + code + params" written with a
//     carriage return, answers validated by a pattern.Pattern and device
//     error codes resolved through an ErrorTable.
//   - HexSum: checksummed hexadecimal frames used by temperature controllers.
//   - Sentence: NMEA-style "$...*HH" sentences from GPS receivers.
//   - Stream: sentinel-terminated blocks of key/value lines pushed by loggers.
//
// Each format offers pure Encode/Decode functions and a type implementing
// Codec, which is what device drivers use.
package codec
