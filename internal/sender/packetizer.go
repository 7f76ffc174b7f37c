package sender

import (
	"io"

	"rudp/internal/config"
	"rudp/internal/protocol"
)

// BuildFrames reads r to completion and packetises it into fixed
// config.ChunkSize payloads, returning the fully encoded wire frames in
// seqno order. The first chunk is always "start" regardless of its
// length; the last chunk is "end" when shorter than a full chunk; every
// other chunk is "data". A file whose size is an exact multiple of
// ChunkSize ends on a full-size "data" frame with no trailing empty
// "end" frame.
func BuildFrames(r io.Reader) ([]string, error) {
	var chunks [][]byte
	buf := make([]byte, config.ChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunks = append(chunks, append([]byte(nil), buf[:n]...))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	frames := make([]string, len(chunks))
	for i, chunk := range chunks {
		kind := protocol.KindData
		switch {
		case i == 0:
			kind = protocol.KindStart
		case len(chunk) < config.ChunkSize:
			kind = protocol.KindEnd
		}
		frames[i] = protocol.EncodeChunk(kind, uint64(i), chunk)
	}
	return frames, nil
}
