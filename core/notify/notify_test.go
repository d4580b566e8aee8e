package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlabs-tech/labflow/core"
)

func TestMessageKey(t *testing.T) {
	// numeric ids key by the id so all events of one row share a partition
	assert.Equal(t, []byte("7"), messageKey("order", []byte(`{"id":7,"status":true}`)))
	assert.Equal(t, []byte(`"r-1"`), messageKey("record", []byte(`{"id":"r-1"}`)))

	// payloads without an id fall back to the resource name
	assert.Equal(t, []byte("order"), messageKey("order", []byte(`{"status":true}`)))
	assert.Equal(t, []byte("order"), messageKey("order", []byte(`not json`)))
}

func TestLogNotifier(t *testing.T) {
	// must never panic, it is the default notifier
	Log{}.Notify("order", core.OperationCreate, []byte(`{"id":1}`))
	Log{}.Notify("record", core.OperationUpdate, nil)
}
