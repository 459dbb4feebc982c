package hue

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/dtls/v2"

	"colco/sampler"
)

const (
	streamPort       = 2100
	headerSize       = 52
	channelEntrySize = 7
)

// Streamer sends colors to an entertainment area over DTLS. It is safe
// for concurrent use.
type Streamer struct {
	conn     net.Conn
	areaID   uuid.UUID
	channels []uint8

	mu  sync.Mutex
	seq uint8
}

// NewStreamer performs the DTLS-PSK handshake with the bridge. The
// entertainment area must already be activated.
func NewStreamer(ctx context.Context, ip net.IP, username, clientkey, areaID string, channels []uint8) (*Streamer, error) {
	id, err := uuid.Parse(areaID)
	if err != nil {
		return nil, fmt.Errorf("entertainment area id %q: %w", areaID, err)
	}
	psk, err := hex.DecodeString(clientkey)
	if err != nil {
		return nil, fmt.Errorf("decoding clientkey: %w", err)
	}

	conn, err := dtls.DialWithContext(ctx, "udp", &net.UDPAddr{IP: ip, Port: streamPort}, &dtls.Config{
		PSK: func([]byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint:    []byte(username),
		CipherSuites:       []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, fmt.Errorf("DTLS handshake: %w", err)
	}

	return &Streamer{conn: conn, areaID: id, channels: channels}, nil
}

// Send writes c to every channel of the area.
func (s *Streamer) Send(c sampler.Color) error {
	s.mu.Lock()
	msg := BuildMessage(s.areaID, s.channels, c, s.seq)
	s.seq++
	s.mu.Unlock()

	if _, err := s.conn.Write(msg); err != nil {
		return fmt.Errorf("writing to DTLS: %w", err)
	}
	return nil
}

// Close closes the DTLS connection.
func (s *Streamer) Close() error {
	return s.conn.Close()
}

// BuildMessage encodes a HueStream v2 RGB frame. Alpha is not transmitted;
// a transparent sample arrives as black.
func BuildMessage(areaID uuid.UUID, channels []uint8, c sampler.Color, seq uint8) []byte {
	msg := make([]byte, headerSize+channelEntrySize*len(channels))

	copy(msg[0:9], "HueStream")
	msg[9] = 0x02 // major
	msg[10] = 0x00
	msg[11] = seq
	// 12-13 reserved, 14 color space (0 = RGB), 15 reserved
	copy(msg[16:52], areaID.String())

	r, g, b := c.RGB16()
	off := headerSize
	for _, ch := range channels {
		msg[off] = ch
		msg[off+1] = byte(r >> 8)
		msg[off+2] = byte(r)
		msg[off+3] = byte(g >> 8)
		msg[off+4] = byte(g)
		msg[off+5] = byte(b >> 8)
		msg[off+6] = byte(b)
		off += channelEntrySize
	}
	return msg
}
