package civ

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"fmt"
	"io"

	"civlsm/civ/codec"
	"civlsm/config"
	"civlsm/internal/bitset"
	"civlsm/internal/hotslot"
	"civlsm/internal/level"
)

const (
	magicMap = "CIVM"
	magicSet = "CIVS"

	formatMajor uint32 = 0
	formatMinor uint32 = 1
)

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteTo serializes the Map to a binary snapshot: a magic/version/tag
// header, the HotSlot's entries, then each Level's capacity, live-mask
// bitset, and keys/values, all little-endian. It uses keyCodec and
// valueCodec to encode K and V.
func (m *Map[K, V]) WriteTo(w io.Writer, keyCodec codec.Codec[K], valueCodec codec.Codec[V]) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magicMap); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, formatMajor); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, formatMinor); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, keyCodec.Tag()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, valueCodec.Tag()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}

	if err := writeU64(bw, uint64(m.hot.Cap())); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, err)
	}
	if err := writeU64(bw, uint64(m.hot.Len())); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, err)
	}
	var slotErr error
	m.hot.Each(func(k K, v V) bool {
		if err := keyCodec.Encode(bw, k); err != nil {
			slotErr = err
			return false
		}
		if err := valueCodec.Encode(bw, v); err != nil {
			slotErr = err
			return false
		}
		return true
	})
	if slotErr != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, slotErr)
	}

	if err := writeU64(bw, uint64(len(m.levels))); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteData, err)
	}
	for _, lvl := range m.levels {
		if err := writeLevel(bw, lvl, keyCodec, valueCodec); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteData, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteData, err)
	}
	return nil
}

func writeLevel[K cmp.Ordered, V any](w io.Writer, lvl *level.Level[K, V], keyCodec codec.Codec[K], valueCodec codec.Codec[V]) error {
	if err := writeU64(w, uint64(lvl.Capacity())); err != nil {
		return err
	}
	words := lvl.Words()
	if err := writeU64(w, uint64(len(words))); err != nil {
		return err
	}
	for _, word := range words {
		if err := writeU64(w, word); err != nil {
			return err
		}
	}
	if err := writeU64(w, uint64(lvl.Len())); err != nil {
		return err
	}
	var err error
	lvl.AllIter(func(k K, v V) bool {
		if encErr := keyCodec.Encode(w, k); encErr != nil {
			err = encErr
			return false
		}
		if encErr := valueCodec.Encode(w, v); encErr != nil {
			err = encErr
			return false
		}
		return true
	})
	return err
}

// LoadMap deserializes a Map previously written by Map.WriteTo, using the
// default tunables. It returns a SizeMismatchError wrapping
// ErrInvalidHeader if the snapshot's stored key or value tag does not
// match keyCodec/valueCodec, and an InvalidVersionError wrapping
// ErrInvalidHeader if the format version is not one this build knows.
func LoadMap[K cmp.Ordered, V any](r io.Reader, keyCodec codec.Codec[K], valueCodec codec.Codec[V]) (*Map[K, V], error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if string(magic[:]) != magicMap {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, magic[:])
	}
	major, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	minor, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if major != formatMajor || minor != formatMinor {
		return nil, &InvalidVersionError{Major: major, Minor: minor}
	}
	keyTag, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if keyTag != keyCodec.Tag() {
		return nil, &SizeMismatchError{Field: "key", Expected: int(keyCodec.Tag()), Got: int(keyTag)}
	}
	valueTag, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if valueTag != valueCodec.Tag() {
		return nil, &SizeMismatchError{Field: "value", Expected: int(valueCodec.Tag()), Got: int(valueTag)}
	}

	hotCap, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
	}
	hotLen, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
	}
	hot := hotslot.New[K, V](int(hotCap))
	for i := uint64(0); i < hotLen; i++ {
		k, err := keyCodec.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
		}
		v, err := valueCodec.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
		}
		hot.Insert(k, v)
	}

	levelCount, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadData, err)
	}
	levels := make([]*level.Level[K, V], 0, levelCount)
	for i := uint64(0); i < levelCount; i++ {
		lvl, err := readLevel[K, V](br, keyCodec, valueCodec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadData, err)
		}
		levels = append(levels, lvl)
	}

	m := &Map[K, V]{
		cfg:    config.Tunables{HotSlotSize: int(hotCap), TombsLimit: config.Default().TombsLimit, AutoShrinkLimit: config.Default().AutoShrinkLimit},
		hot:    hot,
		levels: levels,
	}
	for _, lvl := range levels {
		m.length += lvl.PopCount()
		if !lvl.Empty() {
			m.tombs += lvl.Capacity() - lvl.PopCount()
		}
	}
	m.length += hot.Len()
	return m, nil
}

func readLevel[K cmp.Ordered, V any](r io.Reader, keyCodec codec.Codec[K], valueCodec codec.Codec[V]) (*level.Level[K, V], error) {
	capacity, err := readU64(r)
	if err != nil {
		return nil, err
	}
	wordCount, err := readU64(r)
	if err != nil {
		return nil, err
	}
	words := make([]uint64, wordCount)
	for i := range words {
		words[i], err = readU64(r)
		if err != nil {
			return nil, err
		}
	}
	entryCount, err := readU64(r)
	if err != nil {
		return nil, err
	}
	keys := make([]K, entryCount)
	values := make([]V, entryCount)
	for i := uint64(0); i < entryCount; i++ {
		keys[i], err = keyCodec.Decode(r)
		if err != nil {
			return nil, err
		}
		values[i], err = valueCodec.Decode(r)
		if err != nil {
			return nil, err
		}
	}
	return level.FromParts[K, V](int(capacity), bitset.FromWords(int(capacity), words), keys, values), nil
}

// WriteTo serializes the Set using the "CIVS" snapshot magic, otherwise
// identical in layout to Map.WriteTo with a zero-width value codec.
func (s *Set[K]) WriteTo(w io.Writer, keyCodec codec.Codec[K]) error {
	return writeSetSnapshot(w, s.m, keyCodec)
}

func writeSetSnapshot[K cmp.Ordered](w io.Writer, m *Map[K, struct{}], keyCodec codec.Codec[K]) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magicSet); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, formatMajor); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, formatMinor); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, keyCodec.Tag()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}
	if err := writeU32(bw, codec.TagUnit); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteHeader, err)
	}

	unit := codec.Unit()
	if err := writeU64(bw, uint64(m.hot.Cap())); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, err)
	}
	if err := writeU64(bw, uint64(m.hot.Len())); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, err)
	}
	var slotErr error
	m.hot.Each(func(k K, v struct{}) bool {
		if err := keyCodec.Encode(bw, k); err != nil {
			slotErr = err
			return false
		}
		slotErr = unit.Encode(bw, v)
		return slotErr == nil
	})
	if slotErr != nil {
		return fmt.Errorf("%w: %v", ErrWriteSlot, slotErr)
	}

	if err := writeU64(bw, uint64(len(m.levels))); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteData, err)
	}
	for _, lvl := range m.levels {
		if err := writeLevel(bw, lvl, keyCodec, unit); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteData, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteData, err)
	}
	return nil
}

// LoadSet deserializes a Set previously written by Set.WriteTo.
func LoadSet[K cmp.Ordered](r io.Reader, keyCodec codec.Codec[K]) (*Set[K], error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if string(magic[:]) != magicSet {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, magic[:])
	}
	major, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	minor, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if major != formatMajor || minor != formatMinor {
		return nil, &InvalidVersionError{Major: major, Minor: minor}
	}
	keyTag, err := readU32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}
	if keyTag != keyCodec.Tag() {
		return nil, &SizeMismatchError{Field: "key", Expected: int(keyCodec.Tag()), Got: int(keyTag)}
	}
	if _, err := readU32(br); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadHeader, err)
	}

	unit := codec.Unit()
	hotCap, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
	}
	hotLen, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
	}
	hot := hotslot.New[K, struct{}](int(hotCap))
	for i := uint64(0); i < hotLen; i++ {
		k, err := keyCodec.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
		}
		v, err := unit.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadSlot, err)
		}
		hot.Insert(k, v)
	}

	levelCount, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadData, err)
	}
	levels := make([]*level.Level[K, struct{}], 0, levelCount)
	for i := uint64(0); i < levelCount; i++ {
		lvl, err := readLevel[K, struct{}](br, keyCodec, unit)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadData, err)
		}
		levels = append(levels, lvl)
	}

	m := &Map[K, struct{}]{
		cfg:    config.Tunables{HotSlotSize: int(hotCap), TombsLimit: config.Default().TombsLimit, AutoShrinkLimit: config.Default().AutoShrinkLimit},
		hot:    hot,
		levels: levels,
	}
	for _, lvl := range levels {
		m.length += lvl.PopCount()
		if !lvl.Empty() {
			m.tombs += lvl.Capacity() - lvl.PopCount()
		}
	}
	m.length += hot.Len()
	return &Set[K]{m: m}, nil
}
