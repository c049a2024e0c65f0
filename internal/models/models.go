package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the roles the gateway knows about.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is produced by the auth layer and consumed read-only by the
// mediation pipeline.
type Identity struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type TokenRequest struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// MediationResult carries the outcome of one pipeline execution.
type MediationResult struct {
	ResponseText   string
	Provider       string
	CacheHit       bool
	LatencySeconds float64
}

// AuditRecord is one row of the request audit log. Rejected requests are
// recorded too, with Decision holding the rejection kind.
type AuditRecord struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	Subject        string    `json:"subject"`
	Role           string    `json:"role"`
	Decision       string    `json:"decision"`
	Reason         string    `json:"reason"`
	Provider       string    `json:"provider"`
	CacheHit       bool      `json:"cache_hit"`
	LatencySeconds float64   `json:"latency_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}
