package canopen

import (
	"encoding/binary"
	"fmt"

	"github.com/angelodlfrtr/go-can/frame"
)

// SDOReader uploads one dictionary entry from the server
type SDOReader struct {
	SDOClient *SDOClient
	Index     uint16
	SubIndex  uint8

	toggle uint8
}

func NewSDOReader(sdoClient *SDOClient, index uint16, subIndex uint8) *SDOReader {
	return &SDOReader{
		SDOClient: sdoClient,
		Index:     index,
		SubIndex:  subIndex,
	}
}

func (reader *SDOReader) transferError(err error, abortCode uint32) error {
	return &TransferError{Op: "upload", Index: reader.Index, SubIndex: reader.SubIndex, AbortCode: abortCode, Err: err}
}

// ReadAll runs an expedited or segmented upload, depending on what the
// server answers to the initiate request
func (reader *SDOReader) ReadAll() ([]byte, error) {
	req := make([]byte, 8)
	req[0] = SDORequestUpload
	binary.LittleEndian.PutUint16(req[1:3], reader.Index)
	req[3] = reader.SubIndex

	expectFunc := func(frm *frame.Frame) bool {
		return frm.Data[0]&sdoCommandMask == SDOResponseUpload && matchesSDOAddress(frm, reader.Index, reader.SubIndex)
	}
	resp, err := reader.SDOClient.Send(req, &expectFunc, nil, nil)
	if err != nil {
		return nil, reader.transferError(err, 0)
	}
	if code, aborted := sdoAbortCode(resp); aborted {
		return nil, reader.transferError(nil, code)
	}

	cmd := resp.Data[0]
	if cmd&SDOExpedited != 0 {
		size := 4
		if cmd&SDOSizeSpecified != 0 {
			size = 4 - int((cmd>>2)&0x3)
		}
		return append([]byte(nil), resp.Data[4:4+size]...), nil
	}

	expectedSize := -1
	if cmd&SDOSizeSpecified != 0 {
		expectedSize = int(binary.LittleEndian.Uint32(resp.Data[4:8]))
	}
	data, err := reader.readSegments()
	if err != nil {
		return nil, err
	}
	if expectedSize >= 0 && len(data) != expectedSize {
		return nil, reader.transferError(fmt.Errorf("received %d bytes, server announced %d", len(data), expectedSize), 0)
	}
	return data, nil
}

func (reader *SDOReader) readSegments() ([]byte, error) {
	var data []byte

	expectFunc := func(frm *frame.Frame) bool {
		return frm.Data[0]&sdoCommandMask == SDOResponseSegmentUpload
	}
	for {
		req := make([]byte, 8)
		req[0] = SDORequestSegmentUpload | reader.toggle

		resp, err := reader.SDOClient.Send(req, &expectFunc, nil, nil)
		if err != nil {
			return nil, reader.transferError(err, 0)
		}
		if code, aborted := sdoAbortCode(resp); aborted {
			return nil, reader.transferError(nil, code)
		}

		cmd := resp.Data[0]
		if cmd&SDOToggleBit != reader.toggle {
			_ = reader.SDOClient.Abort(reader.Index, reader.SubIndex, SDOAbortToggleBit)
			return nil, reader.transferError(nil, SDOAbortToggleBit)
		}

		unused := int((cmd >> 1) & 0x7)
		data = append(data, resp.Data[1:8-unused]...)
		if cmd&SDONoMoreData != 0 {
			return data, nil
		}
		reader.toggle ^= SDOToggleBit
	}
}

func matchesSDOAddress(frm *frame.Frame, index uint16, subIndex uint8) bool {
	return binary.LittleEndian.Uint16(frm.Data[1:3]) == index && frm.Data[3] == subIndex
}

func sdoAbortCode(frm *frame.Frame) (uint32, bool) {
	if frm.Data[0] != SDORequestAborted {
		return 0, false
	}
	return binary.LittleEndian.Uint32(frm.Data[4:8]), true
}

// Abort sends an abort transfer request to the server
func (sdoClient *SDOClient) Abort(index uint16, subIndex uint8, code uint32) error {
	req := make([]byte, 8)
	req[0] = SDORequestAborted
	binary.LittleEndian.PutUint16(req[1:3], index)
	req[3] = subIndex
	binary.LittleEndian.PutUint32(req[4:8], code)
	return sdoClient.SendRequest(req)
}
