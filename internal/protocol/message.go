package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event names sent by the server on a diff stream.
const (
	EventStatus     = "status"
	EventFailed     = "failed"
	EventError      = "error"
	EventTestResult = "test_result"
	EventFinish     = "finish"
)

// EventChunk is sent by the server on an AI generation stream.
const EventChunk = "chunk"

// Kind identifies the decoded variant of a diff stream message.
type Kind int

const (
	// KindIgnored marks events with unrecognized names or keepalive-like
	// test_result events carrying no case object. They are dropped.
	KindIgnored Kind = iota
	KindStatus
	KindFailed
	KindError
	KindTestResult
	KindFinish
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindFailed:
		return "failed"
	case KindError:
		return "error"
	case KindTestResult:
		return "test_result"
	case KindFinish:
		return "finish"
	default:
		return "ignored"
	}
}

// Failure carries the server's explanation for an unrecoverable job failure.
type Failure struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// TestCase is one comparison result. The result payload itself is opaque to
// the client; only the identifier and timestamp are interpreted.
type TestCase struct {
	// ID is the server-assigned identifier, empty if the server sent none.
	ID string
	// CreatedAt is the server-assigned timestamp, zero if absent.
	CreatedAt time.Time
	// Raw is the full test_case object as received.
	Raw json.RawMessage
}

// Message is one decoded diff stream event.
type Message struct {
	Kind     Kind
	Status   string    // KindStatus
	ErrorMsg string    // KindError
	Failure  Failure   // KindFailed
	Case     *TestCase // KindTestResult
}

type statusPayload struct {
	Status string `json:"status"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type testResultPayload struct {
	TestCase json.RawMessage `json:"test_case"`
}

// caseHeader pulls the interpreted fields out of an otherwise opaque case.
type caseHeader struct {
	ID        json.RawMessage `json:"id"`
	CreatedAt string          `json:"created_at"`
}

// Decode turns one raw named event into a typed Message.
//
// Unknown event names decode to KindIgnored with no error: the stream must
// tolerate protocol additions. A malformed payload for a known name returns
// an error; the caller drops the event and keeps the stream open.
func Decode(name string, data []byte) (Message, error) {
	switch name {
	case EventStatus:
		var p statusPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if p.Status == "" {
			p.Status = "Unknown status"
		}
		return Message{Kind: KindStatus, Status: p.Status}, nil

	case EventFailed:
		var p Failure
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if p.Message == "" {
			p.Message = "Unknown error"
		}
		return Message{Kind: KindFailed, Failure: p}, nil

	case EventError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if p.Message == "" {
			p.Message = "Unknown error"
		}
		return Message{Kind: KindError, ErrorMsg: p.Message}, nil

	case EventTestResult:
		var p testResultPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if len(p.TestCase) == 0 || bytes.Equal(p.TestCase, []byte("null")) {
			// Keepalive-like noise: a test_result without a case object.
			return Message{Kind: KindIgnored}, nil
		}
		tc, err := DecodeCase(p.TestCase)
		if err != nil {
			return Message{}, fmt.Errorf("decode %s case: %w", name, err)
		}
		return Message{Kind: KindTestResult, Case: tc}, nil

	case EventFinish:
		// finish carries an empty payload.
		return Message{Kind: KindFinish}, nil

	default:
		return Message{Kind: KindIgnored}, nil
	}
}

// DecodeCase interprets the id and created_at fields of a raw case object,
// leaving the rest opaque. Sessions fetched from the server carry the same
// case shape as test_result events.
func DecodeCase(raw json.RawMessage) (*TestCase, error) {
	var hdr caseHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, err
	}

	tc := &TestCase{Raw: raw}

	// The server sends case ids either as strings or as integers.
	if len(hdr.ID) > 0 && !bytes.Equal(hdr.ID, []byte("null")) {
		var s string
		if err := json.Unmarshal(hdr.ID, &s); err == nil {
			tc.ID = s
		} else {
			var n int64
			if err := json.Unmarshal(hdr.ID, &n); err != nil {
				return nil, fmt.Errorf("case id is neither string nor integer: %s", hdr.ID)
			}
			tc.ID = strconv.FormatInt(n, 10)
		}
	}

	if hdr.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, hdr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse case created_at: %w", err)
		}
		tc.CreatedAt = ts
	}

	return tc, nil
}

// ChunkPayload is the body of an AI generation chunk event.
type ChunkPayload struct {
	Content string `json:"content"`
}

// DecodeChunk parses a chunk event from an AI generation stream.
func DecodeChunk(data []byte) (ChunkPayload, error) {
	var p ChunkPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ChunkPayload{}, fmt.Errorf("decode chunk payload: %w", err)
	}
	return p, nil
}
