package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// BlockSize is the size of a block within the log.
	BlockSize = 32 * 1024

	// Header layout
	// - CRC (4 bytes)
	// - Length (2 bytes)
	// - Type (1 byte)
	HeaderSize = 7

	// MaxPayloadSize is the largest payload a single record can carry.
	MaxPayloadSize = 1<<16 - 1
)

// RecordType marks whether a record holds a whole logical entry or a fragment of one.
type RecordType uint8

const (
	RecordTypeFull   RecordType = 1
	RecordTypeFirst  RecordType = 2
	RecordTypeMiddle RecordType = 3
	RecordTypeLast   RecordType = 4
)

// String returns the name used in the log format description.
func (t RecordType) String() string {
	switch t {
	case RecordTypeFull:
		return "FULL"
	case RecordTypeFirst:
		return "FIRST"
	case RecordTypeMiddle:
		return "MIDDLE"
	case RecordTypeLast:
		return "LAST"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the four defined record types.
func (t RecordType) Valid() bool {
	return t >= RecordTypeFull && t <= RecordTypeLast
}

var (
	ErrTruncatedRecord   = errors.New("truncated record")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrInvalidRecordType = errors.New("invalid record type")
	ErrFragmentSequence  = errors.New("unexpected fragment sequence")
	ErrBadPadding        = errors.New("nonzero block padding")
	ErrRecordTooLarge    = errors.New("record payload too large")
	ErrLogClosed         = errors.New("log is closed")
)

// IsCorruption reports whether err describes damaged log contents rather than
// a failure of the underlying filesystem.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrTruncatedRecord) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrInvalidRecordType) ||
		errors.Is(err, ErrFragmentSequence) ||
		errors.Is(err, ErrBadPadding) ||
		errors.Is(err, ErrCorruptEntry)
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the CRC32C of the little-endian length followed by the payload.
// The record type is not part of the checksum.
func Checksum(length uint16, payload []byte) uint32 {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], length)
	crc := crc32.Update(0, castagnoli, lenBuf[:])
	return crc32.Update(crc, castagnoli, payload)
}

// Record is a single physical frame in the log.
type Record struct {
	Checksum uint32
	Length   uint16
	Type     RecordType
	Payload  []byte
}

// NewRecord builds a record for payload, computing its length and checksum.
// The payload is referenced, not copied. Payloads above MaxPayloadSize panic;
// the writer never produces them.
func NewRecord(payload []byte, t RecordType) *Record {
	if len(payload) > MaxPayloadSize {
		panic(fmt.Sprintf("wal: record payload of %d bytes exceeds %d", len(payload), MaxPayloadSize))
	}
	length := uint16(len(payload))
	return &Record{
		Checksum: Checksum(length, payload),
		Length:   length,
		Type:     t,
		Payload:  payload,
	}
}

// Size returns the number of bytes the record occupies on disk.
func (r *Record) Size() int {
	return HeaderSize + len(r.Payload)
}

// AppendTo appends the serialized record to dst and returns the extended slice.
func (r *Record) AppendTo(dst []byte) []byte {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], r.Checksum)
	binary.LittleEndian.PutUint16(header[4:6], r.Length)
	header[6] = byte(r.Type)
	dst = append(dst, header[:]...)
	return append(dst, r.Payload...)
}

// MarshalBinary serializes the record.
func (r *Record) MarshalBinary() ([]byte, error) {
	if len(r.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(r.Payload))
	}
	if int(r.Length) != len(r.Payload) {
		return nil, fmt.Errorf("record length field %d does not match payload of %d bytes", r.Length, len(r.Payload))
	}
	return r.AppendTo(make([]byte, 0, r.Size())), nil
}

// Verify checks the record type and recomputes the checksum.
func (r *Record) Verify() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRecordType, uint8(r.Type))
	}
	if computed := Checksum(r.Length, r.Payload); computed != r.Checksum {
		return fmt.Errorf("%w: stored %08x, computed %08x", ErrChecksumMismatch, r.Checksum, computed)
	}
	return nil
}

// ReadRecord reads one serialized record from rd.
// It returns io.EOF only when no bytes at all were available; a header or
// payload cut short yields ErrTruncatedRecord. The record is not verified.
func ReadRecord(rd io.Reader) (*Record, error) {
	var header [HeaderSize]byte
	if n, err := io.ReadFull(rd, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: header has %d of %d bytes", ErrTruncatedRecord, n, HeaderSize)
		}
		return nil, fmt.Errorf("failed to read record header: %w", err)
	}

	r := &Record{
		Checksum: binary.LittleEndian.Uint32(header[0:4]),
		Length:   binary.LittleEndian.Uint16(header[4:6]),
		Type:     RecordType(header[6]),
	}
	r.Payload = make([]byte, r.Length)
	if n, err := io.ReadFull(rd, r.Payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrTruncatedRecord, n, r.Length)
		}
		return nil, fmt.Errorf("failed to read record payload: %w", err)
	}
	return r, nil
}

// UnmarshalBinary decodes the record at the start of data.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: header has %d of %d bytes", ErrTruncatedRecord, len(data), HeaderSize)
	}
	length := binary.LittleEndian.Uint16(data[4:6])
	if len(data)-HeaderSize < int(length) {
		return fmt.Errorf("%w: payload has %d of %d bytes", ErrTruncatedRecord, len(data)-HeaderSize, length)
	}
	r.Checksum = binary.LittleEndian.Uint32(data[0:4])
	r.Length = length
	r.Type = RecordType(data[6])
	r.Payload = append([]byte(nil), data[HeaderSize:HeaderSize+int(length)]...)
	return nil
}
