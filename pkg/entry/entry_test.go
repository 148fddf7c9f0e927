package entry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeLayout(t *testing.T) {
	buf, err := Encode([]byte{65, 66, 67}, []byte{1, 2, 3, 4, 5, 5, 5, 9})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	want := []byte{3, 65, 66, 67, 8, 1, 2, 3, 4, 5, 5, 5, 9}
	if !bytes.Equal(buf, want) {
		t.Errorf("expected %v, got %v", want, buf)
	}
	if EncodedLen([]byte{65, 66, 67}, []byte{1, 2, 3, 4, 5, 5, 5, 9}) != len(want) {
		t.Errorf("EncodedLen disagrees with Encode")
	}
}

func TestEncodeLimits(t *testing.T) {
	max := bytes.Repeat([]byte{'k'}, MaxFieldSize)
	over := bytes.Repeat([]byte{'k'}, MaxFieldSize+1)

	testCases := []struct {
		name    string
		key     []byte
		value   []byte
		wantErr error
	}{
		{"empty key and value", nil, nil, nil},
		{"maximum sizes", max, max, nil},
		{"key too large", over, []byte("v"), ErrValueTooLarge},
		{"value too large", []byte("k"), over, ErrValueTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Encode(tc.key, tc.value)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				return
			}
			key, value, err := Decode(buf)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !bytes.Equal(key, tc.key) || !bytes.Equal(value, tc.value) {
				t.Errorf("round trip mismatch")
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"key length only", []byte{3}},
		{"short key", []byte{3, 'a', 'b'}},
		{"missing value length", []byte{1, 'a'}},
		{"short value", []byte{1, 'a', 4, 'x', 'y'}},
		{"trailing bytes", []byte{1, 'a', 1, 'b', 'c'}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Decode(tc.buf); !errors.Is(err, ErrMalformedEntry) {
				t.Errorf("expected ErrMalformedEntry, got %v", err)
			}
		})
	}
}

func TestAppendEncodedLeavesDstOnError(t *testing.T) {
	dst := []byte("prefix")
	out, err := AppendEncoded(dst, make([]byte, 300), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Equal(out, []byte("prefix")) {
		t.Errorf("dst modified on error: %q", out)
	}
}

func TestEntryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	field := gen.SliceOf(gen.UInt8()).SuchThat(func(b []byte) bool { return len(b) <= MaxFieldSize })

	properties.Property("decode inverts encode", prop.ForAll(
		func(key, value []byte) bool {
			buf, err := Encode(key, value)
			if err != nil {
				return false
			}
			k, v, err := Decode(buf)
			return err == nil && bytes.Equal(k, key) && bytes.Equal(v, value) && len(buf) == EncodedLen(key, value)
		},
		field, field,
	))

	properties.Property("every strict prefix is malformed", prop.ForAll(
		func(key, value []byte) bool {
			buf, _ := Encode(key, value)
			for n := 0; n < len(buf); n++ {
				if _, _, err := Decode(buf[:n]); !errors.Is(err, ErrMalformedEntry) {
					return false
				}
			}
			return true
		},
		field, field,
	))

	properties.TestingRun(t)
}
