package ocl

import (
	"log"
	"strconv"
	"strings"

	"github.com/robvanmieghem/go-opencl/cl"
	"golang.org/x/xerrors"
)

//DeviceInfo describes an opencl device together with its global index.
// Indices are assigned in platform enumeration order and are what the -E flag refers to.
type DeviceInfo struct {
	Index        int
	Platform     string
	Type         string
	Name         string
	ComputeUnits int
	GlobalMemory int64
	Available    bool
}

type deviceEntry struct {
	info     DeviceInfo
	platform *cl.Platform
	device   *cl.Device
}

//DeviceType returns the device type to enumerate, GPU's only unless useCPU is set
func DeviceType(useCPU bool) cl.DeviceType {
	if useCPU {
		return cl.DeviceTypeAll
	}
	return cl.DeviceTypeGPU
}

// getPlatforms is replaced in tests to simulate hosts without opencl
var getPlatforms = cl.GetPlatforms

func enumerateDevices(deviceType cl.DeviceType) ([]deviceEntry, error) {
	platforms, err := getPlatforms()
	if err != nil {
		// Without an installed platform the icd loader fails instead of returning none
		return nil, xerrors.Errorf("get platforms: %v: %w", err, ErrNoDevice)
	}
	if len(platforms) == 0 {
		return nil, ErrNoDevice
	}

	entries := make([]deviceEntry, 0, 4)
	for _, platform := range platforms {
		platformDevices, err := cl.GetDevices(platform, deviceType)
		if err != nil {
			// A platform without devices of the requested type is not fatal
			log.Println("Platform", platform.Name(), "-", err)
			continue
		}
		for _, device := range platformDevices {
			entries = append(entries, deviceEntry{
				info: DeviceInfo{
					Index:        len(entries),
					Platform:     platform.Name(),
					Type:         device.Type().String(),
					Name:         device.Name(),
					ComputeUnits: device.MaxComputeUnits(),
					GlobalMemory: device.GlobalMemSize(),
					Available:    device.Available(),
				},
				platform: platform,
				device:   device,
			})
		}
	}
	return entries, nil
}

//ListDevices returns all devices of the type selected by useCPU
func ListDevices(useCPU bool) ([]DeviceInfo, error) {
	entries, err := enumerateDevices(DeviceType(useCPU))
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, len(entries))
	for i, e := range entries {
		infos[i] = e.info
	}
	return infos, nil
}

//DeviceExcluded checks if the device is in the comma separated exclusion list
func DeviceExcluded(deviceID int, excluded string) bool {
	for _, e := range strings.Split(excluded, ",") {
		if strconv.Itoa(deviceID) == strings.TrimSpace(e) {
			return true
		}
	}
	return false
}

// selectDevice returns the position in infos of the device to use.
// A negative index picks the first available device that is not excluded.
func selectDevice(infos []DeviceInfo, excluded string, index int) (int, error) {
	if len(infos) == 0 {
		return 0, ErrNoDevice
	}
	for i, info := range infos {
		if DeviceExcluded(info.Index, excluded) || !info.Available {
			continue
		}
		if index < 0 || info.Index == index {
			return i, nil
		}
	}
	if index >= 0 {
		return 0, xerrors.Errorf("device %d: %w", index, ErrDeviceNotFound)
	}
	return 0, ErrNoDevice
}
