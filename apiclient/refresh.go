package apiclient

import (
	"context"
	"net/http"

	admin "github.com/pressroomhq/admin-go"
)

// refreshResponse is the wire shape of POST /auth/refresh.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// refreshIfCurrent refreshes unless another caller already replaced the
// credential the failing request was sent with, in which case a plain retry
// with the newer credential is all that is needed.
func (c *Client) refreshIfCurrent(ctx context.Context, stale string) error {
	if cur := c.AccessToken(); cur != "" && cur != stale {
		c.metrics.RecordRefreshCoalesced()
		return nil
	}
	return c.refresh(ctx)
}

// refresh obtains a new session credential, coalescing concurrent callers
// onto a single in-flight attempt. On success the credential is installed
// and TokenRefreshed is emitted once; on failure the credential is cleared
// and AuthenticationLost is emitted once. Every coalesced caller observes
// the shared outcome.
func (c *Client) refresh(ctx context.Context) error {
	_, err, shared := c.sf.Do("refresh", func() (any, error) {
		// Detached from the triggering caller's context so one caller's
		// cancellation cannot poison the outcome for coalesced waiters.
		return nil, c.doRefresh(context.WithoutCancel(ctx))
	})
	if shared {
		c.metrics.RecordRefreshCoalesced()
	}
	return err
}

func (c *Client) doRefresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	if err == nil && resp.Status >= 400 {
		err = c.classifyFailure(resp)
	}
	if err != nil {
		c.metrics.RecordRefresh("failure")
		c.logger.Warn("session refresh failed, clearing credential", "error", err)
		c.ClearAccessToken()
		c.emitAuthenticationLost()
		return err
	}

	var payload refreshResponse
	if err := resp.Decode(&payload); err != nil {
		c.metrics.RecordRefresh("failure")
		c.ClearAccessToken()
		c.emitAuthenticationLost()
		return err
	}
	if payload.AccessToken == "" {
		c.metrics.RecordRefresh("failure")
		c.ClearAccessToken()
		c.emitAuthenticationLost()
		return &admin.Classification{Category: admin.CategoryUnexpected, Message: "empty access_token in refresh response"}
	}

	c.SetAccessToken(payload.AccessToken)
	c.metrics.RecordRefresh("success")
	c.logger.Info("session credential refreshed")
	c.emitTokenRefreshed(payload.AccessToken)
	return nil
}
