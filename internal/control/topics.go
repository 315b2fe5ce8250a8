package control

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Topics holds the full topic names under one prefix.
type Topics struct {
	On    string
	Off   string
	Set   string
	State string
}

// NewTopics derives the topic family from prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	return Topics{
		On:    prefix + "/on",
		Off:   prefix + "/off",
		Set:   prefix + "/set",
		State: prefix + "/state",
	}
}

// Commands returns the topics the client subscribes to.
func (t Topics) Commands() []string {
	return []string{t.On, t.Off, t.Set}
}

// StateMessage is the payload published on T/state.
type StateMessage struct {
	Timestamp int64 `json:"timestamp"`
	On        bool  `json:"on"`
}

// NewStateMessage stamps on with the current time.
func NewStateMessage(on bool, now time.Time) StateMessage {
	return StateMessage{Timestamp: now.Unix(), On: on}
}

// Encode returns the JSON payload.
func (m StateMessage) Encode() []byte {
	data, _ := json.Marshal(m)
	return data
}

// ParseSetCommand decodes a T/set payload of the form {"value": <bool>}.
func ParseSetCommand(payload []byte) (bool, error) {
	var cmd struct {
		Value *bool `json:"value"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return false, err
	}
	if cmd.Value == nil {
		return false, errors.New(`missing "value"`)
	}
	return *cmd.Value, nil
}
