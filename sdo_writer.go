package canopen

import (
	"encoding/binary"

	"github.com/angelodlfrtr/go-can/frame"
)

// SDOWriter downloads one dictionary entry to the server
type SDOWriter struct {
	SDOClient    *SDOClient
	Index        uint16
	SubIndex     uint8
	ForceSegment bool

	toggle uint8
}

func NewSDOWriter(sdoClient *SDOClient, index uint16, subIndex uint8, forceSegment bool) *SDOWriter {
	return &SDOWriter{
		SDOClient:    sdoClient,
		Index:        index,
		SubIndex:     subIndex,
		ForceSegment: forceSegment,
	}
}

func (writer *SDOWriter) transferError(err error, abortCode uint32) error {
	return &TransferError{Op: "download", Index: writer.Index, SubIndex: writer.SubIndex, AbortCode: abortCode, Err: err}
}

// Write data to the server. Up to four bytes go in a single expedited
// request unless ForceSegment is set.
func (writer *SDOWriter) Write(data []byte) error {
	expedited := !writer.ForceSegment && len(data) > 0 && len(data) <= 4

	req := make([]byte, 8)
	binary.LittleEndian.PutUint16(req[1:3], writer.Index)
	req[3] = writer.SubIndex
	if expedited {
		req[0] = SDORequestDownload | SDOExpedited | SDOSizeSpecified | uint8(4-len(data))<<2
		copy(req[4:], data)
	} else {
		req[0] = SDORequestDownload | SDOSizeSpecified
		binary.LittleEndian.PutUint32(req[4:8], uint32(len(data)))
	}

	expectFunc := func(frm *frame.Frame) bool {
		return frm.Data[0]&sdoCommandMask == SDOResponseDownload && matchesSDOAddress(frm, writer.Index, writer.SubIndex)
	}
	resp, err := writer.SDOClient.Send(req, &expectFunc, nil, nil)
	if err != nil {
		return writer.transferError(err, 0)
	}
	if code, aborted := sdoAbortCode(resp); aborted {
		return writer.transferError(nil, code)
	}

	if expedited {
		return nil
	}
	return writer.writeSegments(data)
}

func (writer *SDOWriter) writeSegments(data []byte) error {
	expectFunc := func(frm *frame.Frame) bool {
		return frm.Data[0]&sdoCommandMask == SDOResponseSegmentDownload
	}

	for offset := 0; ; offset += 7 {
		end := min(offset+7, len(data))
		last := end == len(data)

		req := make([]byte, 8)
		req[0] = SDORequestSegmentDownload | writer.toggle | uint8(7-(end-offset))<<1
		if last {
			req[0] |= SDONoMoreData
		}
		copy(req[1:], data[offset:end])

		resp, err := writer.SDOClient.Send(req, &expectFunc, nil, nil)
		if err != nil {
			return writer.transferError(err, 0)
		}
		if code, aborted := sdoAbortCode(resp); aborted {
			return writer.transferError(nil, code)
		}
		if resp.Data[0]&SDOToggleBit != writer.toggle {
			_ = writer.SDOClient.Abort(writer.Index, writer.SubIndex, SDOAbortToggleBit)
			return writer.transferError(nil, SDOAbortToggleBit)
		}

		if last {
			return nil
		}
		writer.toggle ^= SDOToggleBit
	}
}
