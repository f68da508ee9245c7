package transport

import (
	"context"
	"errors"
	"time"

	"github.com/google/gousb"
	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// Google vendor and product ids of a phone in accessory mode.
const (
	AccessoryVendorID         gousb.ID = 0x18d1
	AccessoryProductID        gousb.ID = 0x2d00
	AccessoryProductIDWithADB gousb.ID = 0x2d01
)

// DefaultUSBSendTimeout bounds a single bulk OUT transfer.
const DefaultUSBSendTimeout = 10 * time.Second

type bulkReader interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type bulkWriter interface {
	WriteContext(ctx context.Context, data []byte) (int, error)
}

// USBEndpoint performs bulk transfers on a phone in accessory mode.
type USBEndpoint struct {
	in          bulkReader
	out         bulkWriter
	sendTimeout time.Duration
	release     func() error
}

// Read performs one bulk IN transfer. It waits without a timeout until data
// arrives or ctx is cancelled.
func (e *USBEndpoint) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := e.in.ReadContext(ctx, buf)
	if err != nil {
		return n, abortedOr(ctx, usbError(err))
	}
	return n, nil
}

// Write performs one bulk OUT transfer, which may be partial.
func (e *USBEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	if e.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.sendTimeout)
		defer cancel()
	}

	n, err := e.out.WriteContext(ctx, data)
	if err != nil && !(n > 0 && errors.Is(err, context.DeadlineExceeded)) {
		return n, abortedOr(ctx, usbError(err))
	}
	return n, nil
}

// Close releases the interface, configuration and device.
func (e *USBEndpoint) Close() error {
	if e.release == nil {
		return nil
	}
	release := e.release
	e.release = nil
	return release()
}

// OpenAccessory finds a phone already switched to accessory mode, claims
// its first interface and returns an endpoint over its bulk endpoints.
func OpenAccessory(usbCtx *gousb.Context, sendTimeout time.Duration) (*USBEndpoint, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == AccessoryVendorID &&
			(desc.Product == AccessoryProductID || desc.Product == AccessoryProductIDWithADB)
	})
	if err != nil && len(devices) == 0 {
		return nil, usbWrap(errcode.USBListDevices, err)
	}
	if len(devices) == 0 {
		return nil, errcode.New(errcode.USBAOAPDeviceNotFound)
	}

	dev := devices[0]
	for _, extra := range devices[1:] {
		_ = extra.Close()
	}

	endpoint, err := openAccessoryDevice(dev, sendTimeout)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	logging.Info("Opened accessory device",
		zap.String("vid", dev.Desc.Vendor.String()),
		zap.String("pid", dev.Desc.Product.String()),
	)
	return endpoint, nil
}

func openAccessoryDevice(dev *gousb.Device, sendTimeout time.Duration) (*USBEndpoint, error) {
	_ = dev.SetAutoDetach(true)

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, usbWrap(errcode.USBObtainConfigDescriptor, err)
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, usbWrap(errcode.USBObtainConfigDescriptor, err)
	}
	if len(cfg.Desc.Interfaces) == 0 {
		_ = cfg.Close()
		return nil, errcode.New(errcode.USBEmptyInterfaces)
	}
	if len(cfg.Desc.Interfaces[0].AltSettings) == 0 {
		_ = cfg.Close()
		return nil, errcode.New(errcode.USBObtainInterfaceDescr)
	}

	intf, err := cfg.Interface(cfg.Desc.Interfaces[0].Number, 0)
	if err != nil {
		_ = cfg.Close()
		return nil, usbWrap(errcode.USBClaimInterface, err)
	}

	inNum, outNum, err := bulkEndpoints(intf.Setting)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, err
	}

	in, err := intf.InEndpoint(inNum)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, usbWrap(errcode.USBInvalidDeviceEndpoints, err)
	}
	out, err := intf.OutEndpoint(outNum)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, usbWrap(errcode.USBInvalidDeviceEndpoints, err)
	}

	return &USBEndpoint{
		in:          in,
		out:         out,
		sendTimeout: sendTimeout,
		release: func() error {
			intf.Close()
			if err := cfg.Close(); err != nil {
				return err
			}
			return dev.Close()
		},
	}, nil
}

// bulkEndpoints picks the IN and OUT endpoint numbers of an interface
// setting. The setting must expose at least two endpoints.
func bulkEndpoints(setting gousb.InterfaceSetting) (in, out int, err error) {
	if len(setting.Endpoints) < 2 {
		return 0, 0, errcode.New(errcode.USBInvalidDeviceEndpoints)
	}

	in, out = -1, -1
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && in < 0 {
			in = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionOut && out < 0 {
			out = ep.Number
		}
	}

	if in < 0 || out < 0 {
		return 0, 0, errcode.New(errcode.USBInvalidTransferMethod)
	}
	return in, out, nil
}

func usbError(err error) error {
	return usbWrap(errcode.USBTransfer, err)
}

func usbWrap(code errcode.Code, err error) error {
	var usbErr gousb.Error
	if errors.As(err, &usbErr) {
		e := errcode.WithNative(code, int(usbErr))
		e.Err = err
		return e
	}
	var status gousb.TransferStatus
	if errors.As(err, &status) {
		e := errcode.WithNative(code, int(status))
		e.Err = err
		return e
	}
	return errcode.Wrap(code, err)
}
