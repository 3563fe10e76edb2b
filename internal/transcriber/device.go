package transcriber

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/satriahrh/voiceassist/domain/entities"
)

// DetectAccelerator reports whether an NVIDIA GPU is visible to nvidia-smi.
func DetectAccelerator() bool {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return false
	}
	output, err := exec.Command("nvidia-smi", "-L").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(output), "GPU ")
}

// ResolveDevice turns a device setting ("auto", "cpu", "cuda[:N]", "gpu[:N]")
// into a concrete device. probe is only consulted for "auto".
func ResolveDevice(setting string, probe func() bool) (entities.Device, error) {
	setting = strings.ToLower(strings.TrimSpace(setting))
	switch setting {
	case "", "auto":
		if probe != nil && probe() {
			return entities.Device{Kind: entities.DeviceAccelerator}, nil
		}
		return entities.Device{Kind: entities.DeviceCPU}, nil
	case "cpu":
		return entities.Device{Kind: entities.DeviceCPU}, nil
	}

	kind, index, hasIndex := strings.Cut(setting, ":")
	if kind != "cuda" && kind != "gpu" {
		return entities.Device{}, fmt.Errorf("unknown device %q", setting)
	}
	device := entities.Device{Kind: entities.DeviceAccelerator}
	if hasIndex {
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return entities.Device{}, fmt.Errorf("invalid device index in %q", setting)
		}
		device.Index = n
	}
	return device, nil
}
