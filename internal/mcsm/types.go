package mcsm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt handles integer values that may arrive as ints, floats, strings, or nulls.
// MCSManager daemons of different versions are not consistent about numeric fields.
type FlexInt int64

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}

	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*i = FlexInt(num)
		return nil
	}

	var floatNum float64
	if err := json.Unmarshal(data, &floatNum); err == nil {
		*i = FlexInt(int64(floatNum))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid integer value %q: %w", string(data), err)
	}
	str = strings.TrimSpace(str)
	if str == "" || strings.EqualFold(str, "null") {
		*i = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("failed to parse integer string %q: %w", str, err)
	}
	*i = FlexInt(int64(parsed))
	return nil
}

func (i FlexInt) Int() int { return int(i) }

// FlexFloat handles numeric values that may arrive as numbers, strings, or nulls.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexFloat(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", string(data), err)
	}
	str = strings.TrimSpace(str)
	if str == "" || strings.EqualFold(str, "null") {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("failed to parse numeric string %q: %w", str, err)
	}
	*f = FlexFloat(parsed)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

// Overview is the /overview payload. Fields the panel omits stay at their zero value.
type Overview struct {
	Version     string      `json:"version"`
	RemoteCount RemoteCount `json:"remoteCount"`
	System      SystemInfo  `json:"system"`
	Remote      []Node      `json:"remote"`

	// TimestampMS is the top-level "time" of the envelope, not part of "data".
	TimestampMS int64 `json:"-"`
}

type RemoteCount struct {
	Available FlexInt `json:"available"`
	Total     FlexInt `json:"total"`
}

type SystemInfo struct {
	Uptime  FlexFloat `json:"uptime"` // seconds
	Version string    `json:"version"`
	Release string    `json:"release"`
}

// Node is one daemon entry of the overview payload.
type Node struct {
	UUID      string        `json:"uuid"`
	Remarks   string        `json:"remarks"`
	IP        string        `json:"ip"`
	Hostname  string        `json:"hostname"`
	Available bool          `json:"available"`
	Version   string        `json:"version"`
	System    NodeSystem    `json:"system"`
	Instance  InstanceCount `json:"instance"`
}

type NodeSystem struct {
	Version  string    `json:"version"`
	Release  string    `json:"release"`
	CPUUsage FlexFloat `json:"cpuUsage"` // 0..1
	MemUsage FlexFloat `json:"memUsage"` // 0..1
	TotalMem FlexFloat `json:"totalmem"` // bytes
}

type InstanceCount struct {
	Running FlexInt `json:"running"`
	Total   FlexInt `json:"total"`
}

// DisplayName picks the first non-empty human label for a node.
func (n Node) DisplayName() string {
	if n.Remarks != "" {
		return n.Remarks
	}
	if n.IP != "" {
		return n.IP
	}
	if n.Hostname != "" {
		return n.Hostname
	}
	return "Unnamed Node"
}

// Instance is one entry of a daemon's instance list.
type Instance struct {
	InstanceUUID string         `json:"instanceUuid"`
	Status       *FlexInt       `json:"status"`
	Config       InstanceConfig `json:"config"`
	Info         InstanceInfo   `json:"info"`
}

type InstanceConfig struct {
	Nickname string `json:"nickname"`
}

type InstanceInfo struct {
	Status *FlexInt `json:"status"`
}

// UnnamedInstance is the display name used when the panel supplies none.
const UnnamedInstance = "Unnamed"

// Nickname returns the configured display name, or UnnamedInstance.
func (i Instance) Nickname() string {
	if i.Config.Nickname != "" {
		return i.Config.Nickname
	}
	return UnnamedInstance
}

// StatusCode resolves the instance status, preferring the top-level field and
// falling back to the nested info block. Unknown is -1.
func (i Instance) StatusCode() int {
	if i.Status != nil {
		return i.Status.Int()
	}
	if i.Info.Status != nil {
		return i.Info.Status.Int()
	}
	return StatusUnknown
}

// Instance status codes as reported by the panel.
const (
	StatusUnknown  = -1
	StatusStopped  = 0
	StatusStopping = 1
	StatusStarting = 2
	StatusRunning  = 3
)
