package canopen

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/angelodlfrtr/go-can"
	"github.com/angelodlfrtr/go-can/frame"
	"github.com/jaster-prj/canopen-console/logger"
	"github.com/stretchr/testify/require"
)

func canFrame(arbID uint32, data ...byte) *frame.Frame {
	frm := &frame.Frame{ArbitrationID: arbID, DLC: uint8(len(data))}
	copy(frm.Data[:], data)
	return frm
}

// fakeBus is a go-can transport that records written frames and feeds the
// frames returned by respond back to the reader side.
type fakeBus struct {
	mu      sync.Mutex
	written []*frame.Frame
	readCh  chan *frame.Frame
	respond func(frm *frame.Frame) []*frame.Frame
	// failWrite, when set, rejects the frames it returns an error for
	failWrite func(frm *frame.Frame) error
	opened    bool
	closed    bool
}

func newFakeBus(respond func(frm *frame.Frame) []*frame.Frame) *fakeBus {
	return &fakeBus{readCh: make(chan *frame.Frame, 64), respond: respond}
}

func (b *fakeBus) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = true
	return nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) Write(frm *frame.Frame) error {
	b.mu.Lock()
	if b.failWrite != nil {
		if err := b.failWrite(frm); err != nil {
			b.mu.Unlock()
			return err
		}
	}
	b.written = append(b.written, frm)
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		for _, resp := range respond(frm) {
			b.readCh <- resp
		}
	}
	return nil
}

func (b *fakeBus) Read(frm *frame.Frame) (bool, error) {
	select {
	case next := <-b.readCh:
		*frm = *next
		return true, nil
	default:
		return false, nil
	}
}

// FailWrites installs fn as the write filter.
func (b *fakeBus) FailWrites(fn func(frm *frame.Frame) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrite = fn
}

// Written returns the frames written with the given arbitration ID.
func (b *fakeBus) Written(arbID uint32) []*frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*frame.Frame
	for _, frm := range b.written {
		if frm.ArbitrationID == arbID {
			out = append(out, frm)
		}
	}
	return out
}

func newTestNode(t *testing.T, id int, bus *fakeBus) *Node {
	t.Helper()

	network := NewNetwork(can.NewBus(bus), logger.GetLogger())
	require.NoError(t, network.Run())

	node := NewNode(id, network, nil)
	require.NoError(t, node.Init())

	t.Cleanup(func() {
		node.Stop()
		require.NoError(t, network.Stop())
	})
	return node
}

// sdoServer simulates the SDO server of a node holding raw entry values.
type sdoServer struct {
	mu      sync.Mutex
	nodeID  int
	objects map[uint32][]byte
	aborts  map[uint32]uint32

	upload      []byte
	uploadPos   int
	downloadKey uint32
	downloadBuf []byte
}

func newSDOServer(nodeID int) *sdoServer {
	return &sdoServer{nodeID: nodeID, objects: map[uint32][]byte{}, aborts: map[uint32]uint32{}}
}

func sdoKey(index uint16, subIndex uint8) uint32 {
	return uint32(index)<<8 | uint32(subIndex)
}

func (s *sdoServer) set(index uint16, subIndex uint8, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[sdoKey(index, subIndex)] = data
}

func (s *sdoServer) get(index uint16, subIndex uint8) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[sdoKey(index, subIndex)]
}

func (s *sdoServer) abort(index uint16, subIndex uint8, code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts[sdoKey(index, subIndex)] = code
}

func (s *sdoServer) respond(frm *frame.Frame) []*frame.Frame {
	if frm.ArbitrationID != uint32(0x600+s.nodeID) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := frm.Data[0]
	index := binary.LittleEndian.Uint16(frm.Data[1:3])
	subIndex := frm.Data[3]
	key := sdoKey(index, subIndex)

	resp := make([]byte, 8)
	copy(resp[1:4], frm.Data[1:4])
	abortFrame := func(code uint32) []*frame.Frame {
		resp[0] = 0x80
		binary.LittleEndian.PutUint32(resp[4:8], code)
		return []*frame.Frame{canFrame(uint32(0x580+s.nodeID), resp...)}
	}

	switch cmd & 0xE0 {
	case 0x40:
		if code, ok := s.aborts[key]; ok {
			return abortFrame(code)
		}
		data, ok := s.objects[key]
		if !ok {
			return abortFrame(0x06020000)
		}
		if len(data) <= 4 {
			resp[0] = 0x43 | uint8(4-len(data))<<2
			copy(resp[4:], data)
		} else {
			resp[0] = 0x41
			binary.LittleEndian.PutUint32(resp[4:8], uint32(len(data)))
			s.upload, s.uploadPos = data, 0
		}
	case 0x60:
		resp = make([]byte, 8)
		n := min(7, len(s.upload)-s.uploadPos)
		resp[0] = cmd&0x10 | uint8(7-n)<<1
		copy(resp[1:], s.upload[s.uploadPos:s.uploadPos+n])
		s.uploadPos += n
		if s.uploadPos == len(s.upload) {
			resp[0] |= 0x01
		}
	case 0x20:
		if code, ok := s.aborts[key]; ok {
			return abortFrame(code)
		}
		resp[0] = 0x60
		if cmd&0x02 != 0 {
			n := int((cmd >> 2) & 0x3)
			s.objects[key] = append([]byte(nil), frm.Data[4:8-n]...)
		} else {
			s.downloadKey, s.downloadBuf = key, nil
		}
	case 0x00:
		resp = make([]byte, 8)
		n := int((cmd >> 1) & 0x7)
		s.downloadBuf = append(s.downloadBuf, frm.Data[1:8-n]...)
		resp[0] = 0x20 | cmd&0x10
		if cmd&0x01 != 0 {
			s.objects[s.downloadKey] = s.downloadBuf
		}
	default:
		return nil
	}
	return []*frame.Frame{canFrame(uint32(0x580+s.nodeID), resp...)}
}
