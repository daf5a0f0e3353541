package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/pkg/middleware/requestid"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "campus.enrollment.created", Subject("campus", EnrollmentCreated))
	assert.Equal(t, PaymentRecorded, Subject("", PaymentRecorded))
}

func TestEncodeCarriesRequestID(t *testing.T) {
	ctx := requestid.WithValue(context.Background(), "req-9")

	raw, err := Encode(ctx, EnrollmentDropped, map[string]string{"student_id": "S1"})
	require.NoError(t, err)

	var evt struct {
		Type      string            `json:"type"`
		RequestID string            `json:"request_id"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, EnrollmentDropped, evt.Type)
	assert.Equal(t, "req-9", evt.RequestID)
	assert.Equal(t, "S1", evt.Data["student_id"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), EnrollmentCreated, nil))
	assert.NoError(t, p.Close())
}
