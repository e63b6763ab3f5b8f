// Package rpleth implements the Rpleth binary wire protocol spoken by
// legacy card-reader terminals: framing, encoding and the command table.
package rpleth

// Sender records which side of the link produced a packet. It is
// provenance only and never transmitted.
type Sender byte

const (
	SenderClient Sender = iota
	SenderServer
)

// TypeCode is the first opcode level of a command.
type TypeCode byte

const (
	TypeRpleth TypeCode = 0x00
	TypeHID    TypeCode = 0x01
	TypeLCD    TypeCode = 0x02

	maxType = TypeLCD
)

// Rpleth-type commands (reader housekeeping).
const (
	CmdStateDHCP byte = 0x01
	CmdSetDHCP   byte = 0x02
	CmdSetMAC    byte = 0x03
	CmdSetIP     byte = 0x04
	CmdSetSubnet byte = 0x05
	CmdSetGW     byte = 0x06
	CmdSetPort   byte = 0x07
	CmdMessage   byte = 0x08
	CmdReset     byte = 0x09
	CmdPing      byte = 0x0A
)

// HID-type commands (reader head control and card traffic).
const (
	CmdBeep     byte = 0x00
	CmdGreenLed byte = 0x01
	CmdRedLed   byte = 0x02
	CmdNothing  byte = 0x03
	CmdBadge    byte = 0x04
	CmdGetCSN   byte = 0x0B
)

// Status is the outcome code carried on server->client packets.
type Status byte

const (
	StatusSuccess     Status = 0x00
	StatusFailed      Status = 0x01
	StatusBadChecksum Status = 0x02
	StatusTimeout     Status = 0x03
	StatusBadSize     Status = 0x04
	StatusBadDevice   Status = 0x05
	StatusUnsupported Status = 0x06
)

// Packet is one unit of protocol exchange.
//
// Client packets are [type][command][dataLen][data]; server packets
// carry a leading status byte. Status is meaningless on client packets.
type Packet struct {
	Sender  Sender
	Status  Status
	Type    TypeCode
	Command byte
	Data    []byte
}

// Response builds a server reply to a client packet, echoing its
// opcode and carrying the given status and data.
func (p Packet) Response(status Status, data []byte) Packet {
	return Packet{
		Sender:  SenderServer,
		Status:  status,
		Type:    p.Type,
		Command: p.Command,
		Data:    data,
	}
}
