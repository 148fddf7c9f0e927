// Package entry encodes key/value pairs into the payload of a log entry.
//
// The layout is [keylen:1][key][vallen:1][value]. Both lengths are a single
// byte, so keys and values are limited to MaxFieldSize bytes.
package entry

import (
	"errors"
	"fmt"
)

// MaxFieldSize is the largest key or value an entry can hold.
const MaxFieldSize = 255

var (
	ErrValueTooLarge  = errors.New("key or value too large")
	ErrMalformedEntry = errors.New("malformed entry")
)

// EncodedLen returns the size of the encoded entry for key and value.
func EncodedLen(key, value []byte) int {
	return 2 + len(key) + len(value)
}

// Encode serializes key and value into a new buffer.
func Encode(key, value []byte) ([]byte, error) {
	return AppendEncoded(make([]byte, 0, EncodedLen(key, value)), key, value)
}

// AppendEncoded appends the encoded entry to dst.
func AppendEncoded(dst, key, value []byte) ([]byte, error) {
	if len(key) > MaxFieldSize {
		return dst, fmt.Errorf("%w: key is %d bytes, limit %d", ErrValueTooLarge, len(key), MaxFieldSize)
	}
	if len(value) > MaxFieldSize {
		return dst, fmt.Errorf("%w: value is %d bytes, limit %d", ErrValueTooLarge, len(value), MaxFieldSize)
	}

	dst = append(dst, byte(len(key)))
	dst = append(dst, key...)
	dst = append(dst, byte(len(value)))
	return append(dst, value...), nil
}

// Decode splits an encoded entry into key and value.
// The returned slices alias buf. Bytes left over after the value are an error.
func Decode(buf []byte) (key, value []byte, err error) {
	if len(buf) < 1 {
		return nil, nil, fmt.Errorf("%w: empty buffer", ErrMalformedEntry)
	}
	keyLen := int(buf[0])
	pos := 1
	if len(buf)-pos < keyLen+1 {
		return nil, nil, fmt.Errorf("%w: key of %d bytes overruns %d byte entry", ErrMalformedEntry, keyLen, len(buf))
	}
	key = buf[pos : pos+keyLen]
	pos += keyLen

	valLen := int(buf[pos])
	pos++
	if len(buf)-pos < valLen {
		return nil, nil, fmt.Errorf("%w: value of %d bytes overruns %d byte entry", ErrMalformedEntry, valLen, len(buf))
	}
	value = buf[pos : pos+valLen]
	pos += valLen

	if pos != len(buf) {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEntry, len(buf)-pos)
	}
	return key, value, nil
}
