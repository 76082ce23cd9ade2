package qrcode

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderDataURI(t *testing.T) {
	enc := NewEncoder(0)

	uri, err := enc.DataURI(`{"token":"abc","date":"2024-03-11","expires":"2024-03-11T08:15:00Z"}`)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, dataURIPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}

func TestEncoderRejectsEmptyPayload(t *testing.T) {
	_, err := NewEncoder(128).PNG("")
	assert.Error(t, err)
}
