package persistence

import (
	"bytes"
	"encoding/gob"

	"github.com/petrijr/tickflow/pkg/api"
)

// encodeEvent serializes an event with encoding/gob for key-value backends.
func encodeEvent(ev api.WorkflowEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEvent(data []byte) (api.WorkflowEvent, error) {
	var ev api.WorkflowEvent
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ev)
	return ev, err
}
