// Package audit records every payer API call for billing compliance: who
// asked, which payer, which capability, how it ended, and how long it
// took. Raw payer responses are stored alongside for dispute resolution.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clearwell-health/therabill/internal/payer"
)

// CallEvent is one immutable payer call record.
type CallEvent struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	PayerCode      string          `json:"payer_code"`
	Capability     string          `json:"capability"`
	MemberID       string          `json:"member_id,omitempty"`
	RequestID      string          `json:"request_id"`
	Success        bool            `json:"success"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	RawResponse    json.RawMessage `json:"raw_response,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Service handles payer call audit logging.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogCall records a payer call event.
func (s *Service) LogCall(ctx context.Context, event CallEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payer_audit_events (
			id, org_id, payer_code, capability, member_id,
			request_id, success, error_code, response_time_ms, raw_response, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.OrgID,
		event.PayerCode,
		event.Capability,
		nullString(event.MemberID),
		event.RequestID,
		event.Success,
		nullString(event.ErrorCode),
		event.ResponseTimeMs,
		event.RawResponse,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log call event: %w", err)
	}

	return nil
}

// LogResponse derives a call event from a capability response envelope.
func LogResponse[T any](ctx context.Context, s *Service, orgID string, capability payer.Capability, rc payer.RequestContext, resp payer.Response[T]) error {
	event := CallEvent{
		OrgID:          orgID,
		PayerCode:      rc.PayerCode,
		Capability:     string(capability),
		MemberID:       rc.MemberID,
		RequestID:      resp.RequestID,
		Success:        resp.Success,
		ResponseTimeMs: resp.ResponseTimeMs,
		RawResponse:    resp.RawResponse,
	}
	if resp.Error != nil {
		event.ErrorCode = string(resp.Error.Code)
	}
	return s.LogCall(ctx, event)
}

// QueryCalls retrieves call events with filters.
func (s *Service) QueryCalls(ctx context.Context, filter CallFilter) ([]CallEvent, error) {
	query := `
		SELECT id, org_id, payer_code, capability, member_id,
			   request_id, success, error_code, response_time_ms, created_at
		FROM payer_audit_events
		WHERE org_id = $1
	`
	args := []interface{}{filter.OrgID}
	argIdx := 2

	if filter.PayerCode != "" {
		query += fmt.Sprintf(" AND payer_code = $%d", argIdx)
		args = append(args, filter.PayerCode)
		argIdx++
	}
	if filter.Capability != "" {
		query += fmt.Sprintf(" AND capability = $%d", argIdx)
		args = append(args, filter.Capability)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query call events: %w", err)
	}
	defer rows.Close()

	var events []CallEvent
	for rows.Next() {
		var e CallEvent
		var memberID, errorCode sql.NullString
		err := rows.Scan(
			&e.ID, &e.OrgID, &e.PayerCode, &e.Capability, &memberID,
			&e.RequestID, &e.Success, &errorCode, &e.ResponseTimeMs, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan call event: %w", err)
		}
		e.MemberID = memberID.String
		e.ErrorCode = errorCode.String
		events = append(events, e)
	}

	return events, rows.Err()
}

// CallFilter specifies criteria for querying call events.
type CallFilter struct {
	OrgID      string
	PayerCode  string
	Capability string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
