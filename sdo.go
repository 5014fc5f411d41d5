package canopen

import (
	"time"

	"github.com/angelodlfrtr/go-can/frame"
)

const (
	SDORequestUpload    uint8 = 2 << 5
	SDOResponseUpload   uint8 = 2 << 5
	SDORequestDownload  uint8 = 1 << 5
	SDOResponseDownload uint8 = 3 << 5

	SDORequestSegmentUpload    uint8 = 3 << 5
	SDOResponseSegmentUpload   uint8 = 0 << 5
	SDORequestSegmentDownload  uint8 = 0 << 5
	SDOResponseSegmentDownload uint8 = 1 << 5

	SDORequestAborted uint8 = 4 << 5

	SDOExpedited     uint8 = 0x2
	SDOSizeSpecified uint8 = 0x1
	SDOToggleBit     uint8 = 0x10
	SDONoMoreData    uint8 = 0x1

	sdoCommandMask uint8 = 0xE0
)

var _ ISDOClient = (*SDOClient)(nil)

// DefaultSDOTimeout is the response timeout of a single SDO request.
const DefaultSDOTimeout = 500 * time.Millisecond

// SDOClient represent an SDO client
type SDOClient struct {
	Node      INode
	RXCobID   uint32
	TXCobID   uint32
	SendQueue []string

	// Timeout of one request, doubled on every retry.
	Timeout time.Duration
	// RetryCount is the number of times a request is sent before giving up.
	RetryCount int
}

func NewSDOClient(node INode) *SDOClient {
	return &SDOClient{
		Node:       node,
		RXCobID:    uint32(0x600 + node.GetId()),
		TXCobID:    uint32(0x580 + node.GetId()),
		SendQueue:  []string{},
		Timeout:    DefaultSDOTimeout,
		RetryCount: 1,
	}
}

// SendRequest to network bus
func (sdoClient *SDOClient) SendRequest(req []byte) error {
	return sdoClient.Node.Send(sdoClient.RXCobID, req)
}

// Send message and optionaly wait for response
func (sdoClient *SDOClient) Send(
	req []byte,
	expectFunc networkFramesChanFilterFunc,
	timeout *time.Duration,
	retryCount *int,
) (*frame.Frame, error) {
	// If no response wanted, just send and return
	if expectFunc == nil {
		if err := sdoClient.SendRequest(req); err != nil {
			return nil, err
		}

		return nil, nil
	}

	// Set default timeout
	if timeout == nil {
		dtm := sdoClient.Timeout
		if dtm <= 0 {
			dtm = DefaultSDOTimeout
		}
		timeout = &dtm
	}

	if retryCount == nil {
		rtc := max(sdoClient.RetryCount, 1)
		retryCount = &rtc
	}

	expectSdoFilterFunc := func(frm *frame.Frame) bool {
		if frm.ArbitrationID != sdoClient.TXCobID {
			return false
		}
		// Aborts must reach the caller whatever response it waits for
		if frm.Data[0] == SDORequestAborted {
			return true
		}
		return (*expectFunc)(frm)
	}
	framesChan := sdoClient.Node.AcquireFramesChanFromNetwork(&expectSdoFilterFunc)
	if framesChan == nil {
		return nil, ErrNoNetwork
	}
	defer sdoClient.Node.ReleaseFramesChanFromNetwork(framesChan.ID)

	// Retry loop
	currentTimeout := *timeout
	for remainingCount := *retryCount; remainingCount > 0; remainingCount-- {
		if err := sdoClient.SendRequest(req); err != nil {
			return nil, err
		}

		timer := time.NewTimer(currentTimeout)
		select {
		case <-timer.C:
			// Double timeout for each retry
			currentTimeout *= 2
		case fr := <-framesChan.C:
			timer.Stop()
			return fr, nil
		}
	}

	return nil, ErrSDOTimeout
}

// Read sdo
func (sdoClient *SDOClient) Read(index uint16, subIndex uint8) ([]byte, error) {
	reader := NewSDOReader(sdoClient, index, subIndex)
	return reader.ReadAll()
}

// Write sdo
func (sdoClient *SDOClient) Write(index uint16, subIndex uint8, forceSegment bool, data []byte) error {
	writer := NewSDOWriter(sdoClient, index, subIndex, forceSegment)
	return writer.Write(data)
}
