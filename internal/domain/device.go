package domain

// DeviceState is a cosmetic snapshot of the simulated board. It never
// affects grading and is never persisted.
type DeviceState struct {
	Model   string               `json:"model"`
	PowerOn bool                 `json:"power_on"`
	Memory  MemoryState          `json:"memory"`
	Pins    map[string]*PinState `json:"pins"`
	WiFi    WiFiState            `json:"wifi"`
	MQTT    MQTTState            `json:"mqtt"`
}

// MemoryState is in KB
type MemoryState struct {
	Total int `json:"total"`
	Used  int `json:"used"`
	Free  int `json:"free"`
}

// PinState describes one GPIO pin. Value is nil when unread.
type PinState struct {
	Mode      string `json:"mode"`
	Value     *int   `json:"value"`
	Connected string `json:"connected"`
}

// WiFiState is a placeholder
type WiFiState struct {
	Connected      bool   `json:"connected"`
	SSID           string `json:"ssid"`
	IP             string `json:"ip"`
	SignalStrength int    `json:"signal_strength"`
}

// MQTTState is a placeholder
type MQTTState struct {
	Connected        bool     `json:"connected"`
	Broker           string   `json:"broker"`
	ClientID         string   `json:"client_id"`
	SubscribedTopics []string `json:"subscribed_topics"`
	PublishedCount   int      `json:"published_count"`
}

// NewDeviceState returns the board as it looks before any run
func NewDeviceState() DeviceState {
	one, zero := 1, 0
	return DeviceState{
		Model:   "ESP8266",
		PowerOn: false,
		Memory:  MemoryState{Total: 160, Used: 45, Free: 115},
		Pins: map[string]*PinState{
			"gpio0": {Mode: "input", Value: &one, Connected: "button"},
			"gpio2": {Mode: "output", Value: &zero, Connected: "led"},
			"gpio4": {Mode: "input", Value: nil, Connected: "dht22"},
		},
		MQTT: MQTTState{SubscribedTopics: []string{}},
	}
}

// SetPower toggles the power flag
func (d *DeviceState) SetPower(on bool) {
	d.PowerOn = on
}

// SetMemoryUsed updates used and free memory
func (d *DeviceState) SetMemoryUsed(used int) {
	d.Memory.Used = used
	d.Memory.Free = d.Memory.Total - used
}

// SetPin writes a digital value to a known pin
func (d *DeviceState) SetPin(name string, on bool) {
	pin, ok := d.Pins[name]
	if !ok {
		return
	}
	v := 0
	if on {
		v = 1
	}
	pin.Value = &v
}

// Clone returns a deep copy
func (d DeviceState) Clone() DeviceState {
	c := d
	c.Pins = make(map[string]*PinState, len(d.Pins))
	for name, pin := range d.Pins {
		p := *pin
		if pin.Value != nil {
			v := *pin.Value
			p.Value = &v
		}
		c.Pins[name] = &p
	}
	c.MQTT.SubscribedTopics = append([]string{}, d.MQTT.SubscribedTopics...)
	return c
}

// LineKind classifies a console line
type LineKind string

const (
	LineOutput  LineKind = "output"
	LineInfo    LineKind = "info"
	LineSuccess LineKind = "success"
	LineError   LineKind = "error"
)

// ConsoleLine is one line shown in the console panel
type ConsoleLine struct {
	Text string   `json:"text"`
	Kind LineKind `json:"kind"`
}
