package server

import "openacs/gateway/internal/rpleth"

// process maps one decoded terminal packet to its response. Unknown
// but well-formed commands are answered with an unsupported status;
// the connection stays open.
func (s *Server) process(p rpleth.Packet) rpleth.Packet {
	switch p.Type {
	case rpleth.TypeRpleth:
		return s.processRpleth(p)
	case rpleth.TypeHID:
		return s.processHID(p)
	}
	return s.unsupported(p)
}

func (s *Server) processRpleth(p rpleth.Packet) rpleth.Packet {
	switch p.Command {
	case rpleth.CmdPing:
		return p.Response(rpleth.StatusSuccess, p.Data)
	case rpleth.CmdStateDHCP:
		// Terminals are statically addressed behind this gateway.
		return p.Response(rpleth.StatusSuccess, []byte{0x00})
	case rpleth.CmdReset:
		s.log.Info().Msg("terminal requested reader reset")
		return p.Response(rpleth.StatusSuccess, nil)
	}
	return s.unsupported(p)
}

func (s *Server) processHID(p rpleth.Packet) rpleth.Packet {
	switch p.Command {
	case rpleth.CmdBeep:
		if len(p.Data) != 1 {
			return p.Response(rpleth.StatusBadSize, nil)
		}
		s.feedback.Beep(p.Data[0] != 0)
		return p.Response(rpleth.StatusSuccess, nil)
	case rpleth.CmdGreenLed:
		if len(p.Data) != 1 {
			return p.Response(rpleth.StatusBadSize, nil)
		}
		s.feedback.Led(p.Data[0] != 0)
		return p.Response(rpleth.StatusSuccess, nil)
	case rpleth.CmdNothing:
		return p.Response(rpleth.StatusSuccess, nil)
	case rpleth.CmdGetCSN:
		// Last broadcast card serial; empty before the first scan.
		return p.Response(rpleth.StatusSuccess, s.lastBadge)
	}
	return s.unsupported(p)
}

func (s *Server) unsupported(p rpleth.Packet) rpleth.Packet {
	s.log.Debug().
		Uint8("type", uint8(p.Type)).
		Uint8("command", p.Command).
		Msg("unsupported terminal command")
	return p.Response(rpleth.StatusUnsupported, nil)
}
