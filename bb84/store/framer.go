package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
)

// maxFrameLen bounds the size of a single framed message.
const maxFrameLen = 64 << 20

// A protoFramer reads and writes framed protocol buffers.
// The structure of the frame is trivial:  proto-length | proto | checksum
//
// The checksum is the xxhash64 of the marshalled proto, catching truncated or
// corrupted snapshot files.
type protoFramer struct {
	r io.Reader
	w io.Writer
}

func (p *protoFramer) Write(m proto.Message) error {
	marshalled, err := proto.Marshal(m)
	if err != nil {
		return err
	}
	if err := binary.Write(p.w, binary.LittleEndian, int32(len(marshalled))); err != nil {
		return err
	}
	if _, err := p.w.Write(marshalled); err != nil {
		return err
	}
	return binary.Write(p.w, binary.LittleEndian, xxhash.Sum64(marshalled))
}

func (p *protoFramer) Read(m proto.Message) error {
	var mLen int32
	if err := binary.Read(p.r, binary.LittleEndian, &mLen); err != nil {
		return err
	}
	if mLen < 0 || mLen > maxFrameLen {
		return fmt.Errorf("invalid frame length %d", mLen)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(p.r, marshalled); err != nil {
		return err
	}
	var sum uint64
	if err := binary.Read(p.r, binary.LittleEndian, &sum); err != nil {
		return err
	}
	if esum := xxhash.Sum64(marshalled); sum != esum {
		return fmt.Errorf("invalid checksum: got %x, expected %x", sum, esum)
	}
	return proto.Unmarshal(marshalled, m)
}
