package a2a_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shurankain/skreaver-sub005/protocol/a2a"
	"github.com/shurankain/skreaver-sub005/unified"
)

func TestMessageRoundTripPreservesOrderingRolesAndMediaTypes(t *testing.T) {
	original := unified.Message{
		Role: unified.RoleAgent,
		Parts: []unified.ContentPart{
			unified.NewTextPart("hello", nil),
			unified.NewFilePart("file:///a.png", "image/png", "a.png", nil),
			unified.NewDataPart([]byte(`{"k":1}`), "application/json", nil),
		},
	}

	wire := a2a.FromUnifiedMessage(original)
	back := a2a.ToUnifiedMessage(wire)

	assert.Equal(t, original.Role, back.Role)
	assert.Len(t, back.Parts, 3)
	assert.Equal(t, unified.ContentText, back.Parts[0].Kind)
	assert.Equal(t, "hello", back.Parts[0].Text.Value)
	assert.Equal(t, unified.ContentFile, back.Parts[1].Kind)
	assert.Equal(t, "image/png", back.Parts[1].File.MediaType)
	assert.Equal(t, unified.ContentData, back.Parts[2].Kind)
	assert.Equal(t, "application/json", back.Parts[2].Data.MediaType)
	assert.Equal(t, string(original.Parts[2].Data.JSON), string(back.Parts[2].Data.JSON))
}

func TestTaskRoundTripPreservesStatus(t *testing.T) {
	original := unified.Task{ID: "t1", Status: unified.TaskCompleted}
	wire := a2a.FromUnifiedTask(original)
	assert.Equal(t, "completed", wire.Status.State)

	back := a2a.ToUnifiedTask(wire)
	assert.Equal(t, unified.TaskCompleted, back.Status)
}
