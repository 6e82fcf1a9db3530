package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEventRequestAcceptsNumericReferences(t *testing.T) {
	var req CreateEventRequest
	body := `{"date":"2025-01-01","start_time":"10:00","end_time":"11:00","course":12,"room":"7","tutor":3,"event_type":"exam"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, RefID("12"), req.Course)
	assert.Equal(t, RefID("7"), req.Room)
	require.NotNil(t, req.Tutor)
	assert.Equal(t, "3", *req.Tutor.Ptr())
}

func TestEditEventRequestReferences(t *testing.T) {
	var req EditEventRequest
	require.NoError(t, json.Unmarshal([]byte(`{"room":"room-b","tutor":null}`), &req))
	require.NotNil(t, req.Room)
	assert.Equal(t, RefID("room-b"), *req.Room)
	assert.Nil(t, req.Tutor)
	assert.Nil(t, req.Tutor.Ptr())

	require.NoError(t, json.Unmarshal([]byte(`{"room":404}`), &req))
	assert.Equal(t, RefID("404"), *req.Room)
}

func TestRefIDRejectsNonIntegers(t *testing.T) {
	for _, body := range []string{`{"course":1.5}`, `{"course":true}`, `{"course":[1]}`, `{"course":{"id":1}}`} {
		var req CreateEventRequest
		assert.Error(t, json.Unmarshal([]byte(body), &req), body)
	}
}
