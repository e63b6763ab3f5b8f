package rpleth

import "fmt"

// Client packet header: [type][command][dataLen].
const headerLen = 3

// ErrBadHeader wraps a structurally invalid header. The caller must
// treat it as fatal for the connection; the byte stream cannot be
// resynchronized past an unknown type.
type ErrBadHeader struct {
	Type TypeCode
}

func (e ErrBadHeader) Error() string {
	return fmt.Sprintf("rpleth: unknown packet type 0x%02x", byte(e.Type))
}

// Decode attempts to extract one complete client packet from the front
// of the ring.
//
// It returns ok=false and consumes nothing when fewer bytes are
// buffered than the header, or than the header's declared data length,
// requires; the remaining bytes stay put for the next socket read.
// A non-nil error means the header itself is invalid and the
// connection should be dropped. On ok=true exactly one packet's bytes
// have been consumed.
func Decode(r *Ring) (Packet, bool, error) {
	if r.Len() < headerLen {
		return Packet{}, false, nil
	}
	hdr := r.Peek(headerLen)
	typ := TypeCode(hdr[0])
	if typ > maxType {
		return Packet{}, false, ErrBadHeader{Type: typ}
	}
	dataLen := int(hdr[2])
	if r.Len() < headerLen+dataLen {
		return Packet{}, false, nil
	}
	raw := r.Peek(headerLen + dataLen)
	r.Discard(headerLen + dataLen)

	p := Packet{
		Sender:  SenderClient,
		Type:    typ,
		Command: hdr[1],
	}
	if dataLen > 0 {
		p.Data = raw[headerLen:]
	}
	return p, true, nil
}

// Encode serializes a packet to wire bytes. Server packets carry the
// leading status byte, client packets do not. Encode inverts Decode:
// Decode(Encode(p)) == p for every packet Decode can produce. The wire
// length field is one byte, so Data must not exceed 255 bytes.
func Encode(p Packet) []byte {
	n := headerLen + len(p.Data)
	if p.Sender == SenderServer {
		n++
	}
	out := make([]byte, 0, n)
	if p.Sender == SenderServer {
		out = append(out, byte(p.Status))
	}
	out = append(out, byte(p.Type), p.Command, byte(len(p.Data)))
	return append(out, p.Data...)
}
