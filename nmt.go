package canopen

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/angelodlfrtr/go-can/frame"
	"github.com/jaster-prj/canopen-console/logger"
	"github.com/thoas/go-funk"
)

// NMT command specifiers
const (
	NMTStartRemoteNode         uint8  = 0x01
	NMTStopRemoteNode          uint8  = 0x02
	NMTEnterPreOperational     uint8  = 0x80
	NMTResetNode               uint8  = 0x81
	NMTResetCommunication      uint8  = 0x82
	nmtCobID                   uint32 = 0x000
	nmtErrorControlCobIDOffset uint32 = 0x700
)

// NMTServices maps the console service names to their command specifier.
var NMTServices = map[string]uint8{
	"start":                 NMTStartRemoteNode,
	"stop":                  NMTStopRemoteNode,
	"enter-pre-operational": NMTEnterPreOperational,
	"reset-node":            NMTResetNode,
	"reset-communication":   NMTResetCommunication,
}

// LookupNMTService returns the command specifier of a service name.
func LookupNMTService(name string) (uint8, error) {
	code, ok := NMTServices[name]
	if !ok {
		return 0, &UnknownServiceError{Name: name}
	}
	return code, nil
}

// NMTServiceNames returns the service names in sorted order.
func NMTServiceNames() []string {
	names := funk.Keys(NMTServices).([]string)
	sort.Strings(names)
	return names
}

// NMTMaster sends NMT commands to one node, runs the node guarding cycle
// and feeds heartbeat and guarding responses to Monitor.
type NMTMaster struct {
	Node    INode
	Monitor *HeartbeatMonitor

	logger logger.Logger

	mu       sync.Mutex
	listener *NetworkFramesChan

	// guardMu serialises whole start and stop calls of the guarding cycle
	guardMu   sync.Mutex
	guardStop chan struct{}
	guardWG   sync.WaitGroup
}

func NewNMTMaster(node INode, l logger.Logger) *NMTMaster {
	if l == nil {
		l = logger.GetLogger()
	}
	return &NMTMaster{
		Node:    node,
		Monitor: NewHeartbeatMonitor(),
		logger:  l,
	}
}

func (master *NMTMaster) errorControlCobID() uint32 {
	return nmtErrorControlCobIDOffset + uint32(master.Node.GetId())
}

// SendCommand sends an NMT command specifier addressed to the node
func (master *NMTMaster) SendCommand(code uint8) error {
	master.logger.Debug("nmt command", "code", code)
	return master.Node.Send(nmtCobID, []byte{code, uint8(master.Node.GetId())})
}

// InvokeService sends the command of a named NMT service. The resulting
// state change is only seen through the heartbeat monitor.
func (master *NMTMaster) InvokeService(name string) error {
	code, err := LookupNMTService(name)
	if err != nil {
		return err
	}
	return master.SendCommand(code)
}

// ListenForHeartbeat subscribes to the node's error control frames
func (master *NMTMaster) ListenForHeartbeat() error {
	master.mu.Lock()
	defer master.mu.Unlock()

	if master.listener != nil {
		return nil
	}

	cobID := master.errorControlCobID()
	filterFunc := func(frm *frame.Frame) bool {
		return frm.ArbitrationID == cobID && frm.DLC >= 1
	}
	fc := master.Node.AcquireFramesChanFromNetwork(&filterFunc)
	if fc == nil {
		return ErrNoNetwork
	}
	master.listener = fc

	go func() {
		for {
			select {
			case <-fc.Done():
				return
			case frm, ok := <-fc.C:
				if !ok {
					return
				}
				// Bit 7 is the node guarding toggle bit
				master.Monitor.OnNotification(frm.Data[0] & 0x7F)
			}
		}
	}()

	return nil
}

// UnlistenForHeartbeat releases the error control subscription
func (master *NMTMaster) UnlistenForHeartbeat() {
	master.mu.Lock()
	defer master.mu.Unlock()

	if master.listener == nil {
		return
	}
	master.Node.ReleaseFramesChanFromNetwork(master.listener.ID)
	master.listener = nil
}

// StartNodeGuarding sends a guarding request now and every period after.
// A running cycle is replaced. When the first request fails no cycle is
// left armed, including the one that was running before.
func (master *NMTMaster) StartNodeGuarding(period time.Duration) error {
	if period <= 0 {
		return errors.New("node guarding period must be positive")
	}

	master.guardMu.Lock()
	defer master.guardMu.Unlock()

	master.stopNodeGuarding()

	if err := master.sendGuardRequest(); err != nil {
		return err
	}

	stop := make(chan struct{})
	master.guardStop = stop
	master.guardWG.Add(1)
	go func() {
		defer master.guardWG.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := master.sendGuardRequest(); err != nil {
					master.logger.Warn("node guarding request failed", "error", err)
				}
			}
		}
	}()

	master.logger.Debug("node guarding cycle armed", "period", period)
	return nil
}

// StopNodeGuarding cancels the guarding cycle, if any
func (master *NMTMaster) StopNodeGuarding() {
	master.guardMu.Lock()
	defer master.guardMu.Unlock()

	master.stopNodeGuarding()
}

// GuardingArmed reports whether a guarding cycle is running.
func (master *NMTMaster) GuardingArmed() bool {
	master.guardMu.Lock()
	defer master.guardMu.Unlock()

	return master.guardStop != nil
}

// stopNodeGuarding requires guardMu.
func (master *NMTMaster) stopNodeGuarding() {
	if master.guardStop == nil {
		return
	}
	close(master.guardStop)
	master.guardStop = nil
	master.guardWG.Wait()
	master.logger.Debug("node guarding cycle cancelled")
}

// The go-can frame has no remote request flag, the request is sent as an
// empty data frame on the error control COB-ID.
func (master *NMTMaster) sendGuardRequest() error {
	return master.Node.Send(master.errorControlCobID(), nil)
}
