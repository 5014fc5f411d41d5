package canopen

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/jaster-prj/canopen-console/logger"
)

const (
	GuardTimeIndex      uint16 = 0x100C
	LifeTimeFactorIndex uint16 = 0x100D

	DefaultGuardTimeMS    uint16 = 100
	DefaultLifeTimeFactor uint8  = 5
)

// GuardingState is the state of the node guarding controller.
type GuardingState int

const (
	GuardingInactive GuardingState = iota
	GuardingActive
)

func (s GuardingState) String() string {
	if s == GuardingActive {
		return "active"
	}
	return "inactive"
}

// GuardingConfig holds the node guarding parameters written to the node.
type GuardingConfig struct {
	GuardTimeMS    uint16
	LifeTimeFactor uint8
}

// DefaultGuardingConfig returns a 100 ms guard time with life time factor 5.
func DefaultGuardingConfig() GuardingConfig {
	return GuardingConfig{GuardTimeMS: DefaultGuardTimeMS, LifeTimeFactor: DefaultLifeTimeFactor}
}

// GuardTime is the period of the guarding requests.
func (c GuardingConfig) GuardTime() time.Duration {
	return time.Duration(c.GuardTimeMS) * time.Millisecond
}

// LifeTime is the window after which the node considers the master lost.
func (c GuardingConfig) LifeTime() time.Duration {
	return time.Duration(c.LifeTimeFactor) * c.GuardTime()
}

// NodeGuardingController configures the node guarding parameters on the
// node and arms the guarding cycle. The node is the source of truth for the
// parameters, the controller only keeps whether the cycle is armed.
type NodeGuardingController struct {
	sdo    Downloader
	cycle  GuardingCycle
	logger logger.Logger

	// Output receives the feedback lines of Start and Stop
	Output io.Writer

	mu    sync.Mutex
	state GuardingState
}

func NewNodeGuardingController(sdo Downloader, cycle GuardingCycle, l logger.Logger) *NodeGuardingController {
	if l == nil {
		l = logger.GetLogger()
	}
	return &NodeGuardingController{
		sdo:    sdo,
		cycle:  cycle,
		logger: l,
		Output: io.Discard,
		state:  GuardingInactive,
	}
}

// State returns whether the guarding cycle is armed.
func (c *NodeGuardingController) State() GuardingState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Start writes guard time and life time factor to the node, then arms the
// guarding cycle. When a write fails nothing is armed and the state does
// not change. Calling Start while active re-arms with the new parameters;
// if arming fails the controller ends up inactive.
func (c *NodeGuardingController) Start(cfg GuardingConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sdo.Download(Address(GuardTimeIndex), strconv.Itoa(int(cfg.GuardTimeMS))); err != nil {
		return fmt.Errorf("configure guard time: %w", err)
	}
	if err := c.sdo.Download(Address(LifeTimeFactorIndex), strconv.Itoa(int(cfg.LifeTimeFactor))); err != nil {
		return fmt.Errorf("configure life time factor: %w", err)
	}

	if err := c.cycle.StartNodeGuarding(cfg.GuardTime()); err != nil {
		// A cycle that was running has been cancelled by now
		c.state = GuardingInactive
		return fmt.Errorf("start node guarding: %w", err)
	}
	c.state = GuardingActive

	c.logger.Info("node guarding started", "guard_time", cfg.GuardTime(), "life_time", cfg.LifeTime())
	fmt.Fprintf(c.Output, "Node guarding started: guard time %.3f s, node life time %.3f s\n",
		cfg.GuardTime().Seconds(), cfg.LifeTime().Seconds())
	return nil
}

// Stop zeroes the guarding parameters on the node and cancels the cycle.
// Write failures are returned but do not keep the cycle running.
func (c *NodeGuardingController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, index := range []uint16{GuardTimeIndex, LifeTimeFactorIndex} {
		if err := c.sdo.Download(Address(index), "0"); err != nil {
			c.logger.Warn("disabling node guarding parameter failed", "index", fmt.Sprintf("0x%04x", index), "error", err)
			errs = append(errs, fmt.Errorf("zero 0x%04x: %w", index, err))
		}
	}

	c.cycle.StopNodeGuarding()
	c.state = GuardingInactive

	c.logger.Info("node guarding stopped")
	fmt.Fprintln(c.Output, "Node guarding stopped")
	return errors.Join(errs...)
}
