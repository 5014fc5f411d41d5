package canopen

import (
	"time"

	"github.com/angelodlfrtr/go-can/frame"
)

type ISDOClient interface {
	Read(index uint16, subIndex uint8) ([]byte, error)
	Send(req []byte, expectFunc networkFramesChanFilterFunc, timeout *time.Duration, retryCount *int) (*frame.Frame, error)
	SendRequest(req []byte) error
	Write(index uint16, subIndex uint8, forceSegment bool, data []byte) error
}

type INode interface {
	GetId() int
	Send(arbID uint32, data []byte) error
	AcquireFramesChanFromNetwork(filterFunc networkFramesChanFilterFunc) *NetworkFramesChan
	ReleaseFramesChanFromNetwork(id string)
}

// Dictionary resolves addresses against the node's object dictionary.
type Dictionary interface {
	Lookup(addr DictionaryAddress) (*DictionaryEntry, error)
}

// SDOReadWriter is the request/response primitive used by SDOTransfer.
type SDOReadWriter interface {
	Read(index uint16, subIndex uint8) ([]byte, error)
	Write(index uint16, subIndex uint8, forceSegment bool, data []byte) error
}

// Downloader writes a display value to a dictionary address.
type Downloader interface {
	Download(addr DictionaryAddress, text string) error
}

// GuardingCycle arms and cancels the periodic node guarding requests.
type GuardingCycle interface {
	StartNodeGuarding(period time.Duration) error
	StopNodeGuarding()
}
