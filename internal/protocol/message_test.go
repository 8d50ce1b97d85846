package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Status(t *testing.T) {
	msg, err := Decode(EventStatus, []byte(`{"status":"Generating test 3..."}`))
	require.NoError(t, err)
	assert.Equal(t, KindStatus, msg.Kind)
	assert.Equal(t, "Generating test 3...", msg.Status)
}

func TestDecode_StatusEmptyText(t *testing.T) {
	msg, err := Decode(EventStatus, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "Unknown status", msg.Status)
}

func TestDecode_Failed(t *testing.T) {
	msg, err := Decode(EventFailed, []byte(`{"message":"timeout","detail":"case 3"}`))
	require.NoError(t, err)
	assert.Equal(t, KindFailed, msg.Kind)
	assert.Equal(t, "timeout", msg.Failure.Message)
	assert.Equal(t, "case 3", msg.Failure.Detail)
}

func TestDecode_FailedWithoutMessage(t *testing.T) {
	msg, err := Decode(EventFailed, []byte(`{"detail":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "Unknown error", msg.Failure.Message)
}

func TestDecode_Error(t *testing.T) {
	msg, err := Decode(EventError, []byte(`{"message":"compiler warning"}`))
	require.NoError(t, err)
	assert.Equal(t, KindError, msg.Kind)
	assert.Equal(t, "compiler warning", msg.ErrorMsg)
}

func TestDecode_Finish(t *testing.T) {
	msg, err := Decode(EventFinish, nil)
	require.NoError(t, err)
	assert.Equal(t, KindFinish, msg.Kind)
}

func TestDecode_TestResult(t *testing.T) {
	payload := `{"test_case":{"id":"tc-7","created_at":"2025-06-01T12:00:00Z","input":"1 2","verdict":"ok"}}`
	msg, err := Decode(EventTestResult, []byte(payload))
	require.NoError(t, err)
	require.Equal(t, KindTestResult, msg.Kind)
	require.NotNil(t, msg.Case)
	assert.Equal(t, "tc-7", msg.Case.ID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), msg.Case.CreatedAt)
	assert.JSONEq(t, `{"id":"tc-7","created_at":"2025-06-01T12:00:00Z","input":"1 2","verdict":"ok"}`, string(msg.Case.Raw))
}

func TestDecode_TestResultIntegerID(t *testing.T) {
	msg, err := Decode(EventTestResult, []byte(`{"test_case":{"id":42}}`))
	require.NoError(t, err)
	require.Equal(t, KindTestResult, msg.Kind)
	assert.Equal(t, "42", msg.Case.ID)
	assert.True(t, msg.Case.CreatedAt.IsZero())
}

func TestDecode_TestResultWithoutCase(t *testing.T) {
	for _, payload := range []string{`{}`, `{"test_case":null}`} {
		msg, err := Decode(EventTestResult, []byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, KindIgnored, msg.Kind, payload)
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	for _, name := range []string{EventStatus, EventFailed, EventError, EventTestResult} {
		_, err := Decode(name, []byte("not json"))
		assert.Error(t, err, name)
	}
}

func TestDecode_UnknownEventIgnored(t *testing.T) {
	msg, err := Decode("heartbeat", []byte(`{"anything":true}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, msg.Kind)
}

func TestDecode_BadCreatedAt(t *testing.T) {
	_, err := Decode(EventTestResult, []byte(`{"test_case":{"created_at":"yesterday"}}`))
	assert.Error(t, err)
}

func TestDecodeChunk(t *testing.T) {
	p, err := DecodeChunk([]byte(`{"content":"int main"}`))
	require.NoError(t, err)
	assert.Equal(t, "int main", p.Content)

	_, err = DecodeChunk([]byte("{"))
	assert.Error(t, err)
}
