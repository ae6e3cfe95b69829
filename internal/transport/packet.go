package transport

import (
	"encoding/binary"
	"fmt"
)

// wireMessage is one (channel, flags, id, payload) entry inside a packet.
type wireMessage struct {
	Channel uint8
	Flags   uint8
	ID      uint16
	Payload []byte
}

const packetHeaderSize = 4 + 2 + 2 + 4 + 1 // protocol_id, seq, ack, ack_bits, msg_count
const messageHeaderSize = 1 + 1 + 2 + 2    // channel, flags, id, payload_len

// encodePacket serializes the packet header and as many messages fit
// within maxBytes; it returns the encoded bytes and the count of messages
// actually included. Flush ties only the included reliable messages to the
// packet's sequence, so excluded reliable messages stay queued for a later
// flush; excluded unreliable and sequenced messages are dropped.
func encodePacket(protocolID uint32, seq, ack uint16, ackBits uint32, msgs []wireMessage, maxBytes int) ([]byte, int) {
	included := 0
	size := packetHeaderSize
	for _, m := range msgs {
		next := size + messageHeaderSize + len(m.Payload)
		if next > maxBytes {
			break
		}
		size = next
		included++
	}

	buf := make([]byte, size)
	i := 0
	binary.LittleEndian.PutUint32(buf[i:], protocolID)
	i += 4
	binary.LittleEndian.PutUint16(buf[i:], seq)
	i += 2
	binary.LittleEndian.PutUint16(buf[i:], ack)
	i += 2
	binary.LittleEndian.PutUint32(buf[i:], ackBits)
	i += 4
	buf[i] = uint8(included)
	i++
	for _, m := range msgs[:included] {
		buf[i] = m.Channel
		i++
		buf[i] = m.Flags
		i++
		binary.LittleEndian.PutUint16(buf[i:], m.ID)
		i += 2
		binary.LittleEndian.PutUint16(buf[i:], uint16(len(m.Payload)))
		i += 2
		copy(buf[i:], m.Payload)
		i += len(m.Payload)
	}
	return buf, included
}

type decodedPacket struct {
	ProtocolID uint32
	Seq        uint16
	Ack        uint16
	AckBits    uint32
	Messages   []wireMessage
}

// decodePacket parses a received datagram. A protocol-id mismatch is
// reported via ok=false with no error: such packets are silently dropped.
func decodePacket(expectedProtocolID uint32, b []byte) (decodedPacket, bool, error) {
	if len(b) < packetHeaderSize {
		return decodedPacket{}, false, fmt.Errorf("transport: truncated packet header (%d bytes)", len(b))
	}
	i := 0
	protocolID := binary.LittleEndian.Uint32(b[i:])
	i += 4
	if protocolID != expectedProtocolID {
		return decodedPacket{}, false, nil
	}
	var p decodedPacket
	p.ProtocolID = protocolID
	p.Seq = binary.LittleEndian.Uint16(b[i:])
	i += 2
	p.Ack = binary.LittleEndian.Uint16(b[i:])
	i += 2
	p.AckBits = binary.LittleEndian.Uint32(b[i:])
	i += 4
	count := int(b[i])
	i++

	for k := 0; k < count; k++ {
		if i+messageHeaderSize > len(b) {
			return decodedPacket{}, true, fmt.Errorf("transport: truncated message header at index %d", k)
		}
		var m wireMessage
		m.Channel = b[i]
		i++
		m.Flags = b[i]
		i++
		m.ID = binary.LittleEndian.Uint16(b[i:])
		i += 2
		payloadLen := int(binary.LittleEndian.Uint16(b[i:]))
		i += 2
		if i+payloadLen > len(b) {
			return decodedPacket{}, true, fmt.Errorf("transport: truncated payload at message index %d", k)
		}
		m.Payload = append([]byte(nil), b[i:i+payloadLen]...)
		i += payloadLen
		p.Messages = append(p.Messages, m)
	}
	if i != len(b) {
		return decodedPacket{}, true, fmt.Errorf("transport: %d trailing bytes after declared messages", len(b)-i)
	}
	return p, true, nil
}
