// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package ogg reads just enough of an Ogg Opus stream to tell how long it is.
package ogg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	pageHeaderLen       = 27
	idPagePayloadLength = 19
)

var (
	ErrNilStream        = errors.New("stream is nil")
	ErrInvalidStream    = errors.New("invalid ogg opus stream")
	ErrChecksumMismatch = errors.New("expected and actual checksum do not match")
)

// Header is the Opus identification header found in the first page.
//
// https://tools.ietf.org/html/rfc7845.html#section-5.1
type Header struct {
	Version    uint8
	Channels   uint8
	PreSkip    uint16
	SampleRate uint32
	OutputGain uint16
	ChannelMap uint8
}

// PageHeader is the metadata for a page.
//
// https://tools.ietf.org/html/rfc7845.html#section-1
type PageHeader struct {
	GranulePosition uint64
	HeaderType      uint8
	Serial          uint32
	Index           uint32
}

// Reader returns the pages of an Ogg stream one at a time.
type Reader struct {
	stream        io.Reader
	checksumTable *[256]uint32
	doChecksum    bool
}

// NewReader reads the identification page of in and returns a reader
// positioned on the page that follows it.
func NewReader(in io.Reader) (*Reader, *Header, error) {
	if in == nil {
		return nil, nil, ErrNilStream
	}

	r := &Reader{
		stream:        in,
		checksumTable: generateChecksumTable(),
		doChecksum:    true,
	}

	header, err := r.readIDHeader()
	if err != nil {
		return nil, nil, err
	}

	return r, header, nil
}

func (r *Reader) readIDHeader() (*Header, error) {
	payload, ph, err := r.NextPage()
	if err != nil {
		return nil, err
	}

	if ph.HeaderType != pageHeaderTypeBeginningOfStream {
		return nil, fmt.Errorf("%w: expected beginning of stream", ErrInvalidStream)
	}

	if len(payload) != idPagePayloadLength {
		return nil, fmt.Errorf("%w: id page payload is %d bytes", ErrInvalidStream, len(payload))
	}

	if s := string(payload[:8]); s != idPageSignature {
		return nil, fmt.Errorf("%w: bad id page signature %q", ErrInvalidStream, s)
	}

	return &Header{
		Version:    payload[8],
		Channels:   payload[9],
		PreSkip:    binary.LittleEndian.Uint16(payload[10:12]),
		SampleRate: binary.LittleEndian.Uint32(payload[12:16]),
		OutputGain: binary.LittleEndian.Uint16(payload[16:18]),
		ChannelMap: payload[18],
	}, nil
}

// NextPage returns the payload and header of the next page. io.EOF is
// returned once the stream ends on a page boundary.
func (r *Reader) NextPage() ([]byte, *PageHeader, error) {
	h := make([]byte, pageHeaderLen)
	if _, err := io.ReadFull(r.stream, h); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, fmt.Errorf("%w: truncated page header", ErrInvalidStream)
		}
		return nil, nil, err
	}

	if string(h[:4]) != pageHeaderSignature {
		return nil, nil, fmt.Errorf("%w: bad page signature", ErrInvalidStream)
	}

	ph := &PageHeader{
		HeaderType:      h[5],
		GranulePosition: binary.LittleEndian.Uint64(h[6:14]),
		Serial:          binary.LittleEndian.Uint32(h[14:18]),
		Index:           binary.LittleEndian.Uint32(h[18:22]),
	}

	sizes := make([]byte, h[26])
	if _, err := io.ReadFull(r.stream, sizes); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated segment table", ErrInvalidStream)
	}

	size := 0
	for _, s := range sizes {
		size += int(s)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.stream, payload); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated page payload", ErrInvalidStream)
	}

	if r.doChecksum {
		if binary.LittleEndian.Uint32(h[22:26]) != r.checksum(h, sizes, payload) {
			return nil, nil, ErrChecksumMismatch
		}
	}

	return payload, ph, nil
}

func (r *Reader) checksum(h, sizes, payload []byte) uint32 {
	var crc uint32
	update := func(v byte) {
		crc = (crc << 8) ^ r.checksumTable[byte(crc>>24)^v]
	}

	for i, v := range h {
		// The checksum field itself counts as zeros.
		if i >= 22 && i < 26 {
			v = 0
		}
		update(v)
	}
	for _, v := range sizes {
		update(v)
	}
	for _, v := range payload {
		update(v)
	}

	return crc
}

// Duration returns the playback length of an Ogg Opus stream, computed from
// the granule position of its last page. Opus granules always count 48kHz
// samples regardless of the input sample rate.
func Duration(in io.Reader) (time.Duration, error) {
	r, header, err := NewReader(in)
	if err != nil {
		return 0, err
	}

	var last uint64
	for {
		_, ph, err := r.NextPage()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return 0, err
		}
		// -1 marks pages on which no packet ends.
		if ph.GranulePosition != ^uint64(0) {
			last = ph.GranulePosition
		}
	}

	if last <= uint64(header.PreSkip) {
		return 0, fmt.Errorf("%w: no audio samples", ErrInvalidStream)
	}

	samples := last - uint64(header.PreSkip)
	return time.Duration(samples) * time.Second / opusGranuleRate, nil
}
