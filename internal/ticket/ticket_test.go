package ticket

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "NIGHT-RUN-2026-3F2A9C1B", Code("night-run-2026", "3f2a9c1b-77de-4c1e-9d0a-1b2c3d4e5f60"))
	assert.Equal(t, "TRAIL-AB12", Code("trail", "ab12"))
}

func TestQRIssuer_Issue(t *testing.T) {
	artifact, err := NewQRIssuer(128).Issue(context.Background(), "TRAIL-AB12CD34")
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(artifact, prefix))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(artifact, prefix))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
