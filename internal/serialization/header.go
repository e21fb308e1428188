package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderLen           = 8
	Magic        uint32 = 0x49475246 // "IGRF"
	Version      uint16 = 1
	FlagReserved uint16 = 0
)

var (
	ErrInvalidMagic       = errors.New("serialization: invalid magic")
	ErrUnsupportedVersion = errors.New("serialization: unsupported version")
	ErrShortHeader        = errors.New("serialization: short header")
)

// Header is the fixed prefix of every serialized graph.
type Header struct {
	Magic   uint32
	Version uint16
	Flags   uint16
}

// DefaultHeader is the header written by new write sessions.
func DefaultHeader() Header {
	return Header{Magic: Magic, Version: Version, Flags: FlagReserved}
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	h := Header{
		Magic:   binary.BigEndian.Uint32(b[0:4]),
		Version: binary.BigEndian.Uint16(b[4:6]),
		Flags:   binary.BigEndian.Uint16(b[6:8]),
	}
	if h.Magic != Magic {
		return Header{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}
