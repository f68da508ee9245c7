package transport

import (
	"encoding/binary"
	"time"

	"github.com/google/gousb"
	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// Accessory mode vendor requests.
const (
	accReqGetProtocol = 51
	accReqSendString  = 52
	accReqStart       = 53
)

// Accessory identification string indexes.
const (
	accStringManufacturer = 0
	accStringModel        = 1
	accStringDescription  = 2
	accStringVersion      = 3
	accStringURI          = 4
	accStringSerial       = 5
)

// AccessoryStrings identify the head unit to a phone being switched into
// accessory mode.
type AccessoryStrings struct {
	Manufacturer string
	Model        string
	Description  string
	Version      string
	URI          string
	Serial       string
}

// DefaultAccessoryStrings are the identification strings a phone expects
// from a projection head unit.
var DefaultAccessoryStrings = AccessoryStrings{
	Manufacturer: "Android",
	Model:        "Android Auto",
	Description:  "Android Auto",
	Version:      "2.0.1",
	URI:          "https://github.com/muurk/aalink",
	Serial:       "HU-AAAAAA001",
}

// controller issues USB control transfers. *gousb.Device implements it.
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// SwitchToAccessory asks a phone to re-enumerate in accessory mode: it
// checks the accessory protocol version, sends the identification strings
// in order and issues the start request. The device disconnects afterwards
// and reappears with the accessory product id.
func SwitchToAccessory(dev controller, ids AccessoryStrings) error {
	version, err := accessoryProtocolVersion(dev)
	if err != nil {
		return err
	}
	logging.Debug("Accessory protocol version", zap.Uint16("version", version))

	ordered := []struct {
		index uint16
		value string
	}{
		{accStringManufacturer, ids.Manufacturer},
		{accStringModel, ids.Model},
		{accStringDescription, ids.Description},
		{accStringVersion, ids.Version},
		{accStringURI, ids.URI},
		{accStringSerial, ids.Serial},
	}

	for _, s := range ordered {
		data := append([]byte(s.value), 0)
		if _, err := dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
			accReqSendString, 0, s.index, data); err != nil {
			return usbError(err)
		}
	}

	if _, err := dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		accReqStart, 0, 0, nil); err != nil {
		return usbError(err)
	}

	logging.Info("Requested accessory mode")
	return nil
}

func accessoryProtocolVersion(dev controller) (uint16, error) {
	buf := make([]byte, 2)
	n, err := dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		accReqGetProtocol, 0, 0, buf)
	if err != nil {
		return 0, usbError(err)
	}
	if n < 2 {
		return 0, errcode.New(errcode.USBAOAPProtocolVersion)
	}

	version := binary.LittleEndian.Uint16(buf)
	if version != 1 && version != 2 {
		return version, errcode.WithNative(errcode.USBAOAPProtocolVersion, int(version))
	}
	return version, nil
}

// WaitForAccessory polls until a phone in accessory mode can be opened or
// timeout elapses.
func WaitForAccessory(usbCtx *gousb.Context, timeout, sendTimeout time.Duration) (*USBEndpoint, error) {
	deadline := time.Now().Add(timeout)
	for {
		endpoint, err := OpenAccessory(usbCtx, sendTimeout)
		if err == nil {
			return endpoint, nil
		}
		if !errcode.HasCode(err, errcode.USBAOAPDeviceNotFound) || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// ConnectUSB opens a phone in accessory mode, switching it first when it
// is attached in its normal mode with the given vendor id. A zero
// productID matches any product of that vendor.
func ConnectUSB(usbCtx *gousb.Context, vendorID, productID gousb.ID, ids AccessoryStrings, timeout, sendTimeout time.Duration) (*USBEndpoint, error) {
	endpoint, err := OpenAccessory(usbCtx, sendTimeout)
	if err == nil {
		return endpoint, nil
	}
	if !errcode.HasCode(err, errcode.USBAOAPDeviceNotFound) {
		return nil, err
	}

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && (productID == 0 || desc.Product == productID)
	})
	if err != nil && len(devices) == 0 {
		return nil, usbWrap(errcode.USBListDevices, err)
	}
	if len(devices) == 0 {
		return nil, errcode.New(errcode.USBAOAPDeviceNotFound)
	}
	defer func() {
		for _, d := range devices {
			_ = d.Close()
		}
	}()

	if err := SwitchToAccessory(devices[0], ids); err != nil {
		return nil, err
	}
	return WaitForAccessory(usbCtx, timeout, sendTimeout)
}
