package canopen

import (
	"errors"
	"sync"
	"time"

	"github.com/angelodlfrtr/go-can/frame"
	"github.com/google/uuid"
	"github.com/jaster-prj/canopen-console/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Bus is the part of a go-can bus the network needs. Read fills frm and
// reports false when no frame is pending.
type Bus interface {
	Open() error
	Close() error
	Write(frm *frame.Frame) error
	Read(frm *frame.Frame) (bool, error)
}

type networkFramesChanFilterFunc *func(frm *frame.Frame) bool

const (
	publishTimeout   = 100 * time.Millisecond
	readPollInterval = time.Millisecond
)

// NetworkFramesChan delivers the frames accepted by Filter on C.
type NetworkFramesChan struct {
	ID     string
	Filter networkFramesChanFilterFunc
	C      chan *frame.Frame

	closeOnce sync.Once
	done      chan struct{}
}

func newNetworkFramesChan(filterFunc networkFramesChanFilterFunc) *NetworkFramesChan {
	return &NetworkFramesChan{
		ID:     uuid.Must(uuid.NewRandom()).String(),
		Filter: filterFunc,
		C:      make(chan *frame.Frame, 16),
		done:   make(chan struct{}),
	}
}

// Publish a frame to the chan if it passes the filter. A subscriber that
// does not drain C within publishTimeout misses the frame.
func (fc *NetworkFramesChan) Publish(frm *frame.Frame) {
	if fc.Filter != nil && !(*fc.Filter)(frm) {
		return
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case fc.C <- frm:
	case <-fc.done:
	case <-timer.C:
	}
}

// Done is closed once the chan has been released.
func (fc *NetworkFramesChan) Done() <-chan struct{} {
	if fc.done == nil {
		return nil
	}
	return fc.done
}

func (fc *NetworkFramesChan) release() {
	fc.closeOnce.Do(func() {
		if fc.done != nil {
			close(fc.done)
		}
	})
}

// Network pumps frames from a CAN bus to the subscribed frames chans.
type Network struct {
	Bus Bus

	framesChans *xsync.MapOf[string, *NetworkFramesChan]
	logger      logger.Logger
	stopChan    chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

func NewNetwork(bus Bus, l logger.Logger) *Network {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Network{
		Bus:         bus,
		framesChans: xsync.NewMapOf[string, *NetworkFramesChan](),
		logger:      l,
	}
}

// Run opens the bus and starts dispatching received frames.
func (network *Network) Run() error {
	network.mu.Lock()
	defer network.mu.Unlock()

	if network.running {
		return nil
	}
	if network.Bus == nil {
		return errors.New("bus not defined")
	}
	if err := network.Bus.Open(); err != nil {
		return err
	}

	network.stopChan = make(chan struct{})
	network.running = true
	network.wg.Add(1)
	go network.pump(network.stopChan)

	network.logger.Info("network started")
	return nil
}

// pump polls the bus until stop is closed or the bus fails. Every frame is
// read into a fresh value so subscribers may keep it.
func (network *Network) pump(stop chan struct{}) {
	defer network.wg.Done()

	poll := time.NewTimer(readPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		frm := &frame.Frame{}
		ok, err := network.Bus.Read(frm)
		if err != nil {
			select {
			case <-stop:
			default:
				network.logger.Error("bus read failed", "error", err)
			}
			return
		}
		if !ok {
			poll.Reset(readPollInterval)
			select {
			case <-stop:
				return
			case <-poll.C:
			}
			continue
		}

		network.logger.Debug("frame received", "cob", frm.ArbitrationID, "data", frm.Data[:min(frm.DLC, 8)])
		network.Publish(frm)
	}
}

// Publish hands frm to every subscribed frames chan.
func (network *Network) Publish(frm *frame.Frame) {
	network.framesChans.Range(func(_ string, fc *NetworkFramesChan) bool {
		fc.Publish(frm)
		return true
	})
}

// Stop stops dispatching, releases every frames chan and closes the bus.
func (network *Network) Stop() error {
	network.mu.Lock()
	defer network.mu.Unlock()

	if !network.running {
		return nil
	}
	close(network.stopChan)
	// Closing first unblocks transports whose Read waits for a frame
	closeErr := network.Bus.Close()
	network.wg.Wait()
	network.running = false

	network.framesChans.Range(func(id string, _ *NetworkFramesChan) bool {
		network.ReleaseFramesChan(id)
		return true
	})

	network.logger.Info("network stopped")
	return closeErr
}

// Send a frame with arbitration ID and up to 8 data bytes.
func (network *Network) Send(arbID uint32, data []byte) error {
	if len(data) > 8 {
		return errors.New("frame data exceeds 8 bytes")
	}
	frm := &frame.Frame{ArbitrationID: arbID, DLC: uint8(len(data))}
	copy(frm.Data[:], data)

	network.logger.Debug("frame sent", "cob", arbID, "data", data)
	return network.Bus.Write(frm)
}

// AcquireFramesChan subscribes a new frames chan for the given filter.
func (network *Network) AcquireFramesChan(filterFunc networkFramesChanFilterFunc) *NetworkFramesChan {
	fc := newNetworkFramesChan(filterFunc)
	network.framesChans.Store(fc.ID, fc)
	return fc
}

// ReleaseFramesChan unsubscribes the frames chan with the given id.
func (network *Network) ReleaseFramesChan(id string) {
	if fc, ok := network.framesChans.LoadAndDelete(id); ok {
		fc.release()
	}
}
