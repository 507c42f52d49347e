package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zapflow/billing-engine/models"
)

func TestStreamForType(t *testing.T) {
	assert.Equal(t, StreamOverdue, StreamForType(models.TemplateTypeOverdue))
	assert.Equal(t, StreamUpcoming, StreamForType(models.TemplateTypeUpcoming))
	assert.Equal(t, StreamNotification, StreamForType(models.TemplateTypeNotification))
	assert.Equal(t, StreamNotification, StreamForType(models.TemplateType("unknown")))
}

func TestWorkStreamsExcludeDLQ(t *testing.T) {
	assert.NotContains(t, WorkStreams, StreamDLQ)
	assert.Len(t, WorkStreams, 3)
}
