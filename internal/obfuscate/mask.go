// Package obfuscate implements the reversible byte mask applied to traffic
// between clients and the dispatcher.
//
// The mask is a single-byte XOR. It hides command text from a casual glance
// at a packet dump and nothing more: it is not encryption, offers no
// confidentiality or integrity, and must not be treated as a security
// control. Workers never see masked data.
package obfuscate

import "bytes"

// DefaultKey is the key byte shared by every rank of a group.
const DefaultKey byte = 0x42

// Mask XORs every byte of buf with key, in place. Applying it twice with the
// same key restores the original bytes.
func Mask(buf []byte, key byte) {
	for i := range buf {
		buf[i] ^= key
	}
}

// Seal copies text into a zero-padded buffer of size bytes and masks the
// whole buffer, padding included. Text longer than size-1 bytes is cut.
func Seal(text string, size int, key byte) []byte {
	buf := make([]byte, size)
	if size > 0 {
		copy(buf[:size-1], text)
	}
	Mask(buf, key)
	return buf
}

// Open unmasks a copy of buf and returns the text up to the first zero byte.
// At most len(buf)-1 bytes are returned, whatever the buffer holds.
func Open(buf []byte, key byte) string {
	plain := make([]byte, len(buf))
	copy(plain, buf)
	Mask(plain, key)
	if n := len(plain); n > 0 {
		plain = plain[:n-1]
	}
	if i := bytes.IndexByte(plain, 0); i >= 0 {
		plain = plain[:i]
	}
	return string(plain)
}
