package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/pkg/config"
)

func TestInitDisabledIsNoop(t *testing.T) {
	cfg := &config.Config{ServiceName: "campus-admin-api"}

	shutdown, err := Init(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
