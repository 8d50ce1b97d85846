package session

import (
	"encoding/json"
	"fmt"
	"time"

	"diffstream/internal/protocol"
)

// Slot names one of the three code files a session carries.
type Slot string

const (
	SlotUser Slot = "user"
	SlotStd  Slot = "standard"
	SlotGen  Slot = "generator"
)

// CodeFile is one program attached to a session.
type CodeFile struct {
	Lang    string `json:"lang"`
	Std     string `json:"std"`
	Content string `json:"content"`
}

// TestCase is one comparison result held by a session. Result is the opaque
// payload as received from the server.
type TestCase struct {
	ID        string
	CreatedAt time.Time
	Result    json.RawMessage
}

// Session is the working document: the three programs plus the test cases
// produced by the most recent diff job.
type Session struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UserCode    *CodeFile  `json:"user_code,omitempty"`
	StdCode     *CodeFile  `json:"std_code,omitempty"`
	GenCode     *CodeFile  `json:"gen_code,omitempty"`
	TestCases   []TestCase `json:"test_cases,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
}

// UnmarshalJSON decodes a session, normalizing the opaque test case objects.
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	aux := struct {
		*alias
		TestCases []json.RawMessage `json:"test_cases"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.TestCases = make([]TestCase, 0, len(aux.TestCases))
	for i, raw := range aux.TestCases {
		tc, err := protocol.DecodeCase(raw)
		if err != nil {
			return fmt.Errorf("test case %d: %w", i, err)
		}
		s.TestCases = append(s.TestCases, fromProtocolCase(*tc, len(s.TestCases)+1))
	}
	return nil
}

// MarshalJSON re-encodes test cases as their raw server payloads.
func (s Session) MarshalJSON() ([]byte, error) {
	type alias Session
	aux := struct {
		alias
		TestCases []json.RawMessage `json:"test_cases,omitempty"`
	}{alias: alias(s)}
	for _, tc := range s.TestCases {
		aux.TestCases = append(aux.TestCases, tc.Result)
	}
	aux.alias.TestCases = nil
	return json.Marshal(aux)
}

// Code returns the code file in the given slot, nil if unset.
func (s *Session) Code(slot Slot) *CodeFile {
	switch slot {
	case SlotUser:
		return s.UserCode
	case SlotStd:
		return s.StdCode
	case SlotGen:
		return s.GenCode
	}
	return nil
}

// fromProtocolCase applies the identifier policy: the server-assigned id wins;
// a case without one gets its 1-based position. Same for the timestamp, where
// the fallback is the local arrival time.
func fromProtocolCase(tc protocol.TestCase, position int) TestCase {
	out := TestCase{
		ID:        tc.ID,
		CreatedAt: tc.CreatedAt,
		Result:    tc.Raw,
	}
	if out.ID == "" {
		out.ID = fmt.Sprintf("%d", position)
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	return out
}

// Default code templates used when a freshly loaded session has empty slots.
var (
	defaultUserCode = CodeFile{Lang: "cpp", Std: "c++17", Content: "// Enter your code here\n"}
	defaultStdCode  = CodeFile{Lang: "cpp", Std: "c++17", Content: "// Reference solution\n"}
	defaultGenCode  = CodeFile{Lang: "cpp", Std: "c++17", Content: "// Test data generator\n"}
)

// FillDefaults populates any missing code slots so downstream code can rely
// on all three being present.
func (s *Session) FillDefaults() {
	if s.UserCode == nil {
		c := defaultUserCode
		s.UserCode = &c
	}
	if s.StdCode == nil {
		c := defaultStdCode
		s.StdCode = &c
	}
	if s.GenCode == nil {
		c := defaultGenCode
		s.GenCode = &c
	}
	if s.TestCases == nil {
		s.TestCases = []TestCase{}
	}
}
