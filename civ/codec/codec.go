// Package codec supplies the (de)serialization plugged into a snapshot's
// binary body. Go generics have no sizeof(T) a reader could check a writer's
// layout against, so each Codec carries an explicit Tag instead: LoadMap
// rejects a snapshot whose stored key or value tag does not match the
// codec the caller asks to read it with.
package codec

import (
	"encoding/binary"
	"io"
)

// Codec encodes and decodes a single value of type T to and from a
// snapshot body.
type Codec[T any] interface {
	// Tag identifies this codec's wire layout. Two codecs with the same Tag
	// must produce and consume byte-identical encodings.
	Tag() uint32
	Encode(w io.Writer, v T) error
	Decode(r io.Reader) (T, error)
}

// Tags for the built-in codecs. Custom codecs should pick tags outside this
// range to avoid colliding with a future built-in.
const (
	TagUint64 uint32 = 1
	TagInt64  uint32 = 2
	TagString uint32 = 3
	TagBytes  uint32 = 4
	TagUnit   uint32 = 5
)

type uint64Codec struct{}

// Uint64 returns the built-in Codec for uint64.
func Uint64() Codec[uint64] { return uint64Codec{} }

func (uint64Codec) Tag() uint32 { return TagUint64 }

func (uint64Codec) Encode(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (uint64Codec) Decode(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

type int64Codec struct{}

// Int64 returns the built-in Codec for int64.
func Int64() Codec[int64] { return int64Codec{} }

func (int64Codec) Tag() uint32 { return TagInt64 }

func (int64Codec) Encode(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func (int64Codec) Decode(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

type stringCodec struct{}

// String returns the built-in Codec for string, length-prefixed as a u64.
func String() Codec[string] { return stringCodec{} }

func (stringCodec) Tag() uint32 { return TagString }

func (stringCodec) Encode(w io.Writer, v string) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(v)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, v)
	return err
}

func (stringCodec) Decode(r io.Reader) (string, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

type bytesCodec struct{}

// Bytes returns the built-in Codec for []byte, length-prefixed as a u64.
func Bytes() Codec[[]byte] { return bytesCodec{} }

func (bytesCodec) Tag() uint32 { return TagBytes }

func (bytesCodec) Encode(w io.Writer, v []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(v)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func (bytesCodec) Decode(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type unitCodec struct{}

// Unit returns the zero-width Codec used for civ.Set's struct{} values.
func Unit() Codec[struct{}] { return unitCodec{} }

func (unitCodec) Tag() uint32 { return TagUnit }

func (unitCodec) Encode(io.Writer, struct{}) error { return nil }

func (unitCodec) Decode(io.Reader) (struct{}, error) { return struct{}{}, nil }
