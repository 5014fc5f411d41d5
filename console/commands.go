package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	canopen "github.com/jaster-prj/canopen-console"
)

// Well-known communication profile entries read by the device commands
const (
	deviceTypeIndex      uint16 = 0x1000
	deviceNameIndex      uint16 = 0x1008
	hardwareVersionIndex uint16 = 0x1009
	softwareVersionIndex uint16 = 0x100A
)

func addressArgs(args Args) canopen.DictionaryAddress {
	index := args["index"].(uint16)
	if args.Has("subindex") {
		return canopen.SubAddress(index, args["subindex"].(uint8))
	}
	return canopen.Address(index)
}

func (c *Console) registerDeviceCommands() {
	c.tree.Group([]string{"device"}, "Read device specific information from device")
	c.tree.Register([]string{"device", "type"}, "Read device type information from device", nil, c.deviceType)
	c.tree.Register([]string{"device", "name"}, "Read device name from device", nil, c.deviceName)
	c.tree.Register([]string{"device", "version"}, "Read device version from device", nil, c.deviceVersion)
}

func (c *Console) deviceType(_ context.Context, _ Args) error {
	raw, err := c.services.Transfer.Upload(canopen.Address(deviceTypeIndex))
	if err != nil {
		return err
	}
	deviceType, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return fmt.Errorf("device type %q: %w", raw, err)
	}

	pdoMappings := "Pre-defined generic"
	if deviceType&0x800000 != 0 {
		pdoMappings = "Device specific"
	}

	c.printf("Raw device type entry:  0x%08x\n", deviceType)
	c.printf("  Device profile:       %d\n", deviceType&0xFFFF)
	c.printf("  Digital input(s):     %t\n", deviceType&0x10000 != 0)
	c.printf("  Digital output(s):    %t\n", deviceType&0x20000 != 0)
	c.printf("  Analogue input(s):    %t\n", deviceType&0x40000 != 0)
	c.printf("  Analogue output(s):   %t\n", deviceType&0x80000 != 0)
	c.printf("  PDO mappings:         %s\n", pdoMappings)
	return nil
}

func (c *Console) deviceName(_ context.Context, _ Args) error {
	name, err := c.services.Transfer.Upload(canopen.Address(deviceNameIndex))
	if err != nil {
		return err
	}
	c.printf("Manufacturer device name:  %s\n", name)
	return nil
}

func (c *Console) deviceVersion(_ context.Context, _ Args) error {
	hardware, err := c.services.Transfer.Upload(canopen.Address(hardwareVersionIndex))
	if err != nil {
		return err
	}
	software, err := c.services.Transfer.Upload(canopen.Address(softwareVersionIndex))
	if err != nil {
		return err
	}
	c.printf("Manufacturer hardware version:  %s\n", hardware)
	c.printf("Manufacturer software version:  %s\n", software)
	return nil
}

func (c *Console) registerSDOCommands() {
	index := func(help string) ArgSpec {
		return ArgSpec{Name: "index", Help: help, Parse: ParseIntWithRadix(16)}
	}
	subindex := func(help string) ArgSpec {
		return ArgSpec{Name: "subindex", Help: help, Optional: true, Parse: ParseIntWithRadix(8)}
	}

	c.tree.Group([]string{"sdo"}, "Directly exchange data with client using SDO services")
	c.tree.Register([]string{"sdo", "upload"},
		strings.Join([]string{
			"Transfer data from client to server",
			"",
			"Examples:",
			"  sdo upload 0x1000    # Read device type",
			"  sdo upload 0x6000 0  # Read number of digital inputs",
		}, "\n"),
		[]ArgSpec{
			index("Index of data to upload"),
			subindex("Subindex of data to upload"),
		},
		c.sdoUpload)
	c.tree.Register([]string{"sdo", "download"},
		strings.Join([]string{
			"Transfer data from server to client",
			"",
			"Examples:",
			"  sdo download 0x6200 0x1 0x3  # Turn two digital outputs on",
		}, "\n"),
		[]ArgSpec{
			index("Index to download to"),
			subindex("Subindex to download to"),
			{Name: "value", Help: "Value to download to device"},
		},
		c.sdoDownload)
}

func (c *Console) sdoUpload(_ context.Context, args Args) error {
	value, err := c.services.Transfer.Upload(addressArgs(args))
	if err != nil {
		return err
	}
	c.printf("%s\n", value)
	return nil
}

func (c *Console) sdoDownload(_ context.Context, args Args) error {
	return c.services.Transfer.Download(addressArgs(args), args.String("value"))
}

func (c *Console) registerNMTCommands() {
	parseService := func(token string) (any, error) {
		if _, err := canopen.LookupNMTService(token); err != nil {
			return nil, err
		}
		return token, nil
	}

	c.tree.Group([]string{"nmt"}, "Interact with the NMT protocol")
	c.tree.Register([]string{"nmt", "service"},
		"Use one of the NMT services to change the NMT state",
		[]ArgSpec{{
			Name:  "service",
			Help:  "Which NMT service to call: " + strings.Join(canopen.NMTServiceNames(), ", "),
			Parse: parseService,
		}},
		c.nmtService)

	c.tree.Group([]string{"nmt", "node-guarding"}, "Configure and control the NMT node guarding error control protocol")
	c.tree.Register([]string{"nmt", "node-guarding", "start"},
		strings.Join([]string{
			"Start the NMT node guarding error control protocol",
			"",
			"This will do two things:",
			"- Set up node-guarding parameters via SDO",
			"- Start sending periodic node-guarding messages",
		}, "\n"),
		[]ArgSpec{
			{Name: "guard_time_ms", Help: "Guard time in milliseconds", Optional: true, Default: canopen.DefaultGuardTimeMS, Parse: ParseIntWithRadix(16)},
			{Name: "life_time_factor", Help: "Life time factor", Optional: true, Default: canopen.DefaultLifeTimeFactor, Parse: ParseIntWithRadix(8)},
		},
		c.nmtNodeGuardingStart)
	c.tree.Register([]string{"nmt", "node-guarding", "stop"},
		strings.Join([]string{
			"Stop the NMT node guarding error control protocol",
			"",
			"This will do two things:",
			"- Disable node-guarding via SDO",
			"- Stop sending periodic node-guarding messages",
		}, "\n"),
		nil,
		c.nmtNodeGuardingStop)

	c.tree.Register([]string{"nmt", "state"}, "Show the last NMT state reported by the node", nil, c.nmtState)
}

func (c *Console) nmtService(_ context.Context, args Args) error {
	return c.services.NMT.InvokeService(args.String("service"))
}

func (c *Console) nmtNodeGuardingStart(_ context.Context, args Args) error {
	return c.services.Guarding.Start(canopen.GuardingConfig{
		GuardTimeMS:    args["guard_time_ms"].(uint16),
		LifeTimeFactor: args["life_time_factor"].(uint8),
	})
}

func (c *Console) nmtNodeGuardingStop(_ context.Context, _ Args) error {
	return c.services.Guarding.Stop()
}

func (c *Console) nmtState(_ context.Context, _ Args) error {
	state, ok := c.services.Monitor.State()
	if !ok {
		c.printf("NMT state: unknown (no heartbeat or guarding response yet)\n")
		return nil
	}
	c.printf("NMT state: %s\n", state)
	return nil
}
