// Package api is the REST client for the scheduling server. It owns wire
// encoding, idempotency-key placement and the transient/definitive split;
// the reconciler above it only ever sees domain values and the two error
// categories.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/pkg/config"
	"shiftsync/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// DefinitiveError is a server decision, not a fault: the action was
// received, arbitrated and rejected. It carries the authoritative request
// state when the server included one.
type DefinitiveError struct {
	Status  int
	Request *request.Request
	Message string
}

func (e *DefinitiveError) Error() string {
	return fmt.Sprintf("server rejected action (status %d): %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.APIConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.SubmitTimeout},
		logger:  logger,
	}
}

func (c *Client) TakeShift(ctx context.Context, p action.TakePayload, key uuid.UUID) (request.Request, error) {
	body := takeShiftBody{ShiftID: p.ShiftID, EmployeeID: p.EmployeeID, IdempotencyKey: key}
	return c.submit(ctx, "/shifts/take", body)
}

func (c *Client) ProposeExchange(ctx context.Context, p action.ExchangePayload, key uuid.UUID) (request.Request, error) {
	body := exchangeBody{
		FromShiftID:        p.FromShiftID,
		ToShiftID:          p.ToShiftID,
		RequestingEmployee: p.RequestingEmployee,
		TargetEmployee:     p.TargetEmployee,
		ExpiresAt:          p.ExpiresAt,
		IdempotencyKey:     key,
	}
	return c.submit(ctx, "/shifts/exchange", body)
}

func (c *Client) RespondExchange(ctx context.Context, id uuid.UUID, accepted bool, key uuid.UUID) (request.Request, error) {
	body := respondBody{Accepted: accepted, IdempotencyKey: key}
	return c.submit(ctx, fmt.Sprintf("/shifts/exchange/%s/respond", id), body)
}

func (c *Client) CancelExchange(ctx context.Context, id uuid.UUID, key uuid.UUID) (request.Request, error) {
	body := cancelBody{IdempotencyKey: key}
	return c.submit(ctx, fmt.Sprintf("/shifts/exchange/%s/cancel", id), body)
}

func (c *Client) Approve(ctx context.Context, id uuid.UUID, notes string, key uuid.UUID) (request.Request, error) {
	body := approveBody{Notes: notes, IdempotencyKey: key}
	return c.submit(ctx, fmt.Sprintf("/requests/%s/approve", id), body)
}

func (c *Client) Reject(ctx context.Context, id uuid.UUID, reason string, key uuid.UUID) (request.Request, error) {
	body := rejectBody{Reason: reason, IdempotencyKey: key}
	return c.submit(ctx, fmt.Sprintf("/requests/%s/reject", id), body)
}

// Updates pulls server-originated changes since the cursor and returns the
// next cursor to persist.
func (c *Client) Updates(ctx context.Context, since string) ([]request.Request, string, error) {
	url := c.baseURL + "/requests/updates?since=" + since
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errs.Wrap(err, "failed to build updates request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", errs.Mark(err, errs.ErrTransientNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errs.Mark(
			fmt.Errorf("updates returned status %d", resp.StatusCode),
			errs.ErrTransientNetwork,
		)
	}

	var payload UpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", errs.Mark(err, errs.ErrTransientNetwork)
	}

	requests, err := ToDomainList(payload.Requests)
	if err != nil {
		return nil, "", errs.Wrap(err, "failed to convert updates")
	}
	return requests, payload.Cursor, nil
}

// Check probes reachability. Used by the connectivity monitor.
func (c *Client) Check(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health returned status %d", resp.StatusCode)
	}
	return nil
}

// submit posts an action and decodes the authoritative request from the
// response. Transient faults are retried briefly in-call; durable retry
// scheduling across ticks belongs to the queue, not the client.
func (c *Client) submit(ctx context.Context, path string, body any) (request.Request, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return request.Request{}, errs.Wrap(err, "failed to encode request body")
	}

	var result request.Request
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err // transient: timeout, refused connection, dns
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var dto RequestDTO
			if err := json.Unmarshal(raw, &dto); err != nil {
				return backoff.Permanent(errs.Wrap(err, "failed to decode response"))
			}
			result, err = ToDomain(dto)
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil

		case isDefinitive(resp.StatusCode):
			return backoff.Permanent(c.definitiveError(resp.StatusCode, raw))

		default:
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0 // bounded by retry count, not wall time

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx))
	if err != nil {
		var definitive *DefinitiveError
		if errors.As(err, &definitive) {
			return request.Request{}, err
		}
		c.logger.Warn("action submission failed transiently", "path", path, "error", err)
		return request.Request{}, errs.Mark(err, errs.ErrTransientNetwork)
	}
	return result, nil
}

// Definitive statuses are arbitration results: the request conflicted, no
// longer exists, or failed validation. Everything else is worth retrying.
func isDefinitive(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound,
		http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

func (c *Client) definitiveError(status int, raw []byte) *DefinitiveError {
	out := &DefinitiveError{Status: status, Message: http.StatusText(status)}

	// The server usually attaches the authoritative terminal state so the
	// client can land the request without another round trip.
	var dto RequestDTO
	if err := json.Unmarshal(raw, &dto); err == nil && dto.ID != uuid.Nil {
		if req, convErr := ToDomain(dto); convErr == nil {
			out.Request = &req
		}
	}
	return out
}
