// Package examclient talks to the exam API on behalf of the instructor
// console. It implements results.Backend over HTTP.
package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/results"
)

const (
	apiPrefix      = "/api/v2"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

var _ results.Backend = (*Client)(nil)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exam api: status %d", e.Status)
	}
	return fmt.Sprintf("exam api: status %d: %s", e.Status, e.Message)
}

// Client is a bearer-authenticated exam API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// New builds a client for baseURL, e.g. http://localhost:8080.
func New(baseURL, token string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scorePayload struct {
	TotalScore  float64 `json:"total_score"`
	AIScore     float64 `json:"ai_score"`
	StudentName string  `json:"student_name,omitempty"`
}

// Changes asks whether the exam's activity count differs from lastCount.
func (c *Client) Changes(ctx context.Context, examID uint, lastCount int64) (dto.ChangeCountResponse, error) {
	var out dto.ChangeCountResponse
	query := url.Values{"last_count": []string{strconv.FormatInt(lastCount, 10)}}
	err := c.doJSON(ctx, http.MethodGet, examPath(examID, "results", "changes"), query, nil, &out)
	return out, err
}

// Exam loads exam metadata.
func (c *Client) Exam(ctx context.Context, examID uint) (dto.ExamResponse, error) {
	var out dto.ExamResponse
	err := c.doJSON(ctx, http.MethodGet, examPath(examID), nil, nil, &out)
	return out, err
}

// Summary loads the exam's aggregate statistics.
func (c *Client) Summary(ctx context.Context, examID uint) (dto.ExamSummaryResponse, error) {
	var out dto.ExamSummaryResponse
	err := c.doJSON(ctx, http.MethodGet, examPath(examID, "summary"), nil, nil, &out)
	return out, err
}

// Results loads the exam's result rows.
func (c *Client) Results(ctx context.Context, examID uint) ([]results.Row, error) {
	var out []results.Row
	err := c.doJSON(ctx, http.MethodGet, examPath(examID, "results"), nil, nil, &out)
	return out, err
}

// StudentResults loads every attempt of one student across exams.
func (c *Client) StudentResults(ctx context.Context, studentID uint) ([]results.Row, error) {
	var out []results.Row
	err := c.doJSON(ctx, http.MethodGet, joinPath("students", id(studentID), "results"), nil, nil, &out)
	return out, err
}

// UpdateScore persists one student's grade.
func (c *Client) UpdateScore(ctx context.Context, examID, studentID uint, update results.ScoreUpdate) (dto.UpdateScoreResponse, error) {
	var out dto.UpdateScoreResponse
	payload := scorePayload{TotalScore: update.TotalScore, AIScore: update.AIScore, StudentName: update.StudentName}
	err := c.doJSON(ctx, http.MethodPut, examPath(examID, "results", id(studentID), "score"), nil, payload, &out)
	return out, err
}

// ApproveAll confirms every submission of the exam.
func (c *Client) ApproveAll(ctx context.Context, examID uint) (int64, error) {
	var out dto.ApproveAllResponse
	if err := c.doJSON(ctx, http.MethodPost, examPath(examID, "results", "approve-all"), nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Approved, nil
}

// DeleteResult removes every attempt of a student.
func (c *Client) DeleteResult(ctx context.Context, examID, studentID uint) error {
	return c.doJSON(ctx, http.MethodDelete, examPath(examID, "results", id(studentID)), nil, nil, nil)
}

// Evidence downloads an evidence image.
func (c *Client) Evidence(ctx context.Context, submissionID uint, kind string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, submissionPath(submissionID, "evidence", url.PathEscape(kind)), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	return data, nil
}

// QuestionDetail loads the question panel of a submission.
func (c *Client) QuestionDetail(ctx context.Context, submissionID uint) (dto.QuestionDetailResponse, error) {
	var out dto.QuestionDetailResponse
	err := c.doJSON(ctx, http.MethodGet, submissionPath(submissionID, "detail"), nil, nil, &out)
	return out, err
}

// ProctoringLog loads the proctoring panel of a submission.
func (c *Client) ProctoringLog(ctx context.Context, submissionID uint) (dto.ProctoringLogResponse, error) {
	var out dto.ProctoringLogResponse
	err := c.doJSON(ctx, http.MethodGet, submissionPath(submissionID, "proctoring"), nil, nil, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

// do sends the request and returns the response when the status is 2xx.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		apiErr.Message = env.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}

func id(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func examPath(examID uint, parts ...string) string {
	return joinPath(append([]string{"exams", id(examID)}, parts...)...)
}

func submissionPath(submissionID uint, parts ...string) string {
	return joinPath(append([]string{"submissions", id(submissionID)}, parts...)...)
}

func joinPath(parts ...string) string {
	return apiPrefix + "/" + strings.Join(parts, "/")
}
