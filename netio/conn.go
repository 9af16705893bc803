// Package netio carries wire-encoded segments over a raw IPv4 socket using
// this protocol's own IP protocol number (spec.md §4.1, 222 — the same
// number bind_layers(IP, GBN, proto=222) registers on the Scapy side of
// original_source). It knows nothing about the segment format beyond its
// length; encoding and decoding belong to package wire, same separation as
// the teacher's internal/tap.go (raw frame I/O) versus tcp.Handler
// (protocol logic).
package netio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// ProtoNum is the IPv4 protocol number this transport runs over.
const ProtoNum = 222

// maxRecv bounds a single read: an IPv4 header (at most 60 bytes with
// options, 20 typically) plus the largest segment this protocol ever
// produces (15-byte header + 64-byte payload).
const maxRecv = 60 + 15 + 64

// Conn is a bound raw-IP socket restricted to traffic to/from one peer.
// It is not safe for concurrent use from multiple goroutines; this
// protocol's event loop is single-threaded per spec.md §5, and Conn is
// built for exactly that caller.
type Conn struct {
	fd   int
	self net.IP
	peer net.IP
}

// Dial opens a raw IPv4 socket for ProtoNum, optionally bound to a named
// interface (SO_BINDTODEVICE, skipped when iface is empty), and restricts
// reads to datagrams from peer via Recv's own filter (the kernel hands a
// raw socket every packet system-wide carrying this protocol number,
// regardless of source).
func Dial(self, peer net.IP, iface string) (*Conn, error) {
	self4, peer4 := self.To4(), peer.To4()
	if self4 == nil {
		return nil, fmt.Errorf("netio: self address %s is not IPv4", self)
	}
	if peer4 == nil {
		return nil, fmt.Errorf("netio: peer address %s is not IPv4", peer)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, ProtoNum)
	if err != nil {
		return nil, fmt.Errorf("netio: open raw socket: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	if iface != "" {
		if err := unix.BindToDevice(fd, iface); err != nil {
			return nil, fmt.Errorf("netio: bind to device %q: %w", iface, err)
		}
	}

	var selfAddr [4]byte
	copy(selfAddr[:], self4)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Addr: selfAddr}); err != nil {
		return nil, fmt.Errorf("netio: bind to %s: %w", self, err)
	}

	// IP_HDRINCL: we build the IPv4 header ourselves rather than let the
	// kernel fill it in from the routing table. original_source crafts
	// IP(src=self.sender, dst=self.receiver) explicitly on every send
	// (Scapy's send() does the same under the hood) — the source address
	// in the header is an explicit protocol argument, not whatever the
	// kernel's route lookup for dst would otherwise pick.
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		return nil, fmt.Errorf("netio: set IP_HDRINCL: %w", err)
	}

	ok = true
	return &Conn{fd: fd, self: self4, peer: peer4}, nil
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

// SetReadDeadline arms the socket's SO_RCVTIMEO so Recv returns
// unix.EAGAIN once it elapses. The sender's event loop uses it as its
// one-shot retransmission timer; the receiver's only uses it to bound each
// wait. Either way a deadline expiring with no segment received is a
// timeout, not an error (spec.md §7).
func (c *Conn) SetReadDeadline(deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	tv := unix.NsecToTimeval(remaining.Nanoseconds())
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

// Send prepends a minimal 20-byte IPv4 header (src=self, dst=peer,
// protocol=ProtoNum, no options, no fragmentation) to b and writes the
// result, relying on IP_HDRINCL so the kernel transmits the header
// exactly as built rather than substituting its own.
func (c *Conn) Send(b []byte) error {
	pkt := make([]byte, ipv4HeaderLen+len(b))
	buildIPv4Header(pkt, c.self, c.peer, len(b))
	copy(pkt[ipv4HeaderLen:], b)

	var dst [4]byte
	copy(dst[:], c.peer)
	return unix.Sendto(c.fd, pkt, 0, &unix.SockaddrInet4{Addr: dst})
}

const ipv4HeaderLen = 20

// buildIPv4Header writes a minimal (no options, don't-fragment, TTL 64)
// IPv4 header for a ProtoNum datagram of the given payload length into
// the first ipv4HeaderLen bytes of dst.
func buildIPv4Header(dst []byte, src, peer net.IP, payloadLen int) {
	src4, peer4 := src.To4(), peer.To4()
	dst[0] = 0x45 // version 4, IHL 5 (20 bytes, no options)
	dst[1] = 0    // ToS
	binary.BigEndian.PutUint16(dst[2:4], uint16(ipv4HeaderLen+payloadLen))
	binary.BigEndian.PutUint16(dst[4:6], 0) // identification: fragmentation is never used
	binary.BigEndian.PutUint16(dst[6:8], 0x4000) // flags=don't-fragment, offset=0
	dst[8] = 64                                  // TTL
	dst[9] = ProtoNum
	binary.BigEndian.PutUint16(dst[10:12], 0) // checksum, filled in below
	copy(dst[12:16], src4)
	copy(dst[16:20], peer4)
	binary.BigEndian.PutUint16(dst[10:12], headerChecksum(dst[:ipv4HeaderLen]))
}

// headerChecksum computes the RFC 791 one's-complement checksum over an
// IPv4 header (assumed to have its own checksum field zeroed), using the
// same fold as checksum791.
func headerChecksum(header []byte) uint16 {
	var c checksum791
	c.writeEven(header)
	return c.sum16()
}

// errTimeout is returned by Recv when SetReadDeadline's timer elapses
// with nothing received — not a transport error, a timer fire.
var errTimeout = errors.New("netio: read deadline exceeded")

// IsTimeout reports whether err is the deadline-exceeded sentinel Recv
// returns.
func IsTimeout(err error) bool { return errors.Is(err, errTimeout) }

// Recv blocks (bounded by the last SetReadDeadline call) for the next
// datagram from peer carrying ProtoNum, strips the IPv4 header, and
// returns the protocol payload. Datagrams from any other source, or
// whose IP header does not match peer/ProtoNum, are silently discarded
// and reading continues — this realizes spec.md §4.1's receive filter
// (source equals configured peer, carries this protocol header; the
// "not ICMP" clause falls out for free since ICMP is protocol 1, never
// delivered to a ProtoNum-222 raw socket).
func (c *Conn) Recv(buf []byte) (int, error) {
	raw := make([]byte, maxRecv)
	for {
		n, from, err := unix.Recvfrom(c.fd, raw, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return 0, errTimeout
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("netio: recv: %w", err)
		}
		sa4, ok := from.(*unix.SockaddrInet4)
		if !ok || net.IP(sa4.Addr[:]).String() != c.peer.String() {
			continue
		}
		payload, ok := stripIPHeader(raw[:n])
		if !ok {
			continue
		}
		n = copy(buf, payload)
		return n, nil
	}
}

// stripIPHeader validates that pkt carries an IPv4 header whose protocol
// field is ProtoNum and returns the payload following it. The header
// length is read from the low nibble of the first byte (IHL, in 32-bit
// words) rather than assumed to be 20, since options are legal even
// though this protocol never sends any.
func stripIPHeader(pkt []byte) ([]byte, bool) {
	if len(pkt) < 20 {
		return nil, false
	}
	version := pkt[0] >> 4
	ihl := int(pkt[0]&0x0f) * 4
	if version != 4 || ihl < 20 || len(pkt) < ihl {
		return nil, false
	}
	if pkt[9] != ProtoNum {
		return nil, false
	}
	return pkt[ihl:], true
}
