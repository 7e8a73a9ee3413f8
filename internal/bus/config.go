package bus

import (
	"bytes"
	"encoding/json"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// Config holds the configuration for connecting to the control bus.
type Config struct {
	Address       string `json:"address"`         // bus server address (e.g., "nats://127.0.0.1:4222")
	Username      string `json:"username"`        // username for authentication (optional)
	Password      string `json:"password"`        // password for authentication (optional)
	CredsFilePath string `json:"creds-file-path"` // path to credentials file (optional)
}

// Keys holds the global bus configuration loaded via Init.
var Keys Config

const ConfigSchema = `{
    "type": "object",
    "description": "Configuration for the control bus client.",
    "properties": {
        "address": {
            "description": "Address of the control bus server (e.g., 'nats://127.0.0.1:4222').",
            "type": "string"
        },
        "username": {
            "description": "Username for bus authentication (optional).",
            "type": "string"
        },
        "password": {
            "description": "Password for bus authentication (optional).",
            "type": "string"
        },
        "creds-file-path": {
            "description": "Path to bus credentials file for authentication (optional).",
            "type": "string"
        }
    },
    "required": ["address"]
}`

// Init initializes the global Keys configuration from JSON.
func Init(rawConfig json.RawMessage) error {
	var err error

	if rawConfig != nil {
		dec := json.NewDecoder(bytes.NewReader(rawConfig))
		dec.DisallowUnknownFields()
		if err = dec.Decode(&Keys); err != nil {
			daqlog.Errorf("bus: error initializing client config: %s", err.Error())
		}
	}

	return err
}

// Subjects used by the five FSM participants and the operator uplink.
const (
	SubjectExperimentState = "daq.experiment.state"
	SubjectControlBusState = "daq.controlbus.state"
	SubjectDaqoniteState   = "daq.daqonite.state"
	SubjectDaqontrolState  = "daq.daqontrol.state"
	SubjectDaqsitterState  = "daq.daqsitter.state"
	SubjectCommand         = "daq.command"
	SubjectOperatorReply   = "daq.operator.reply"
	SubjectOperatorUplink  = "daq.operator.uplink"
)
