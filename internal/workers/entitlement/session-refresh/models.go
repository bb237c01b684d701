// internal/workers/entitlement/session-refresh/models.go
package sessionrefresh

type Input struct {
	AccountID string `json:"accountId"`
	Reason    string `json:"reason,omitempty"`
}

type Output struct {
	SessionRefreshed bool   `json:"sessionRefreshed"`
	AccountID        string `json:"accountId"`
}
