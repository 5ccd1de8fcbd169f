package models

import (
	"fmt"
	"time"
)

// DeviceDescriptor identifies one device bound to an account, as returned by
// the gateway's device listing endpoint.
type DeviceDescriptor struct {
	DeviceName string `json:"device_name"`
	IoTID      string `json:"iot_id"`
	Model      string `json:"product_model"`
}

// DeviceSummary is the API view of a registered device.
type DeviceSummary struct {
	Name          string `json:"name"`
	IoTID         string `json:"iot_id"`
	Model         string `json:"model"`
	BootstrapDone bool   `json:"bootstrap_done"`
	Suspended     bool   `json:"suspended"`
}

// DeviceLocation is the positioning block of a device report.
type DeviceLocation struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PositionType int     `json:"position_type"`
	Orientation  int     `json:"orientation"`
}

// DeviceReport is a state snapshot pushed by a device over the report topic.
type DeviceReport struct {
	DeviceName   string
	SysStatus    int
	BatteryLevel int
	ChargeState  int
	BladeStatus  bool
	WorkProgress int
	WorkArea     int
	Location     *DeviceLocation
}

// DeviceStatus is the API view of a device's last reported state.
type DeviceStatus struct {
	DeviceName    string          `json:"device_name"`
	Online        bool            `json:"online"`
	WorkMode      string          `json:"work_mode"`
	WorkModeCode  int             `json:"work_mode_code"`
	BatteryLevel  int             `json:"battery_level"`
	ChargingState int             `json:"charging_state"`
	BladeStatus   bool            `json:"blade_status"`
	WorkProgress  int             `json:"work_progress"`
	WorkArea      int             `json:"work_area"`
	Location      *DeviceLocation `json:"location,omitempty"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// workModeNames maps the firmware's system status codes to operator-facing
// mode names.
var workModeNames = map[int]string{
	0:  "offline",
	1:  "standby",
	13: "locked",
	14: "initializing",
	15: "ready",
	16: "mowing",
	17: "paused",
	18: "charging",
	19: "returning_to_dock",
}

// WorkModeName resolves a system status code to its mode name.
func WorkModeName(code int) string {
	if name, ok := workModeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", code)
}
