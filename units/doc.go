// Package units holds the pure numeric helpers shared by the codecs and
// device drivers: angle and step conversion for stepper positioners,
// two's-complement hex encoding, the additive hex checksum, the
// offset/radius-ratio conversion used by arm-type positioners (shadowbands)
// and degree-minute coordinate parsing.
//
// All functions are free of I/O and safe for concurrent use.
package units
