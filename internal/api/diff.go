package api

import (
	"context"
	"net/http"
)

// StopDiff tells the server to stop the session's running diff job. The
// controller calls it after the local stop has already taken effect, so the
// result never feeds back into job state.
func (c *Client) StopDiff(ctx context.Context, sessionID string) error {
	u, err := c.endpoint("diff", sessionID, "stop")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, u, nil, nil)
}

type rerunRequest struct {
	CaseIDs []string `json:"case_ids"`
}

// RequestRerun asks the server to replay cases without opening a stream.
// caseIDs may be empty, meaning all existing cases.
func (c *Client) RequestRerun(ctx context.Context, sessionID string, caseIDs []string) error {
	u, err := c.endpoint("diff", sessionID, "rerun")
	if err != nil {
		return err
	}
	if caseIDs == nil {
		caseIDs = []string{}
	}
	return c.do(ctx, http.MethodPost, u, rerunRequest{CaseIDs: caseIDs}, nil)
}
