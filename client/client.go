// Package client is a Go SDK for the platform's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"triaright-platform/errors"
	"triaright-platform/models"
	"triaright-platform/services/auth"
	"triaright-platform/services/exam"
	"triaright-platform/services/internship"
	"triaright-platform/services/payment"
)

const contentTypeJSON = "application/json"

// Session is the authenticated state a caller carries between requests.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Kind       errors.Kind
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// KindOf recovers the error kind from an API error.
func KindOf(err error) errors.Kind {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return errors.KindOf(err)
}

func kindForStatus(code int) errors.Kind {
	switch code {
	case http.StatusBadRequest:
		return errors.Invalid
	case http.StatusUnauthorized:
		return errors.Unauthorized
	case http.StatusForbidden:
		return errors.Forbidden
	case http.StatusNotFound:
		return errors.NotFound
	case http.StatusConflict:
		return errors.Conflict
	default:
		return errors.Internal
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retry   RetryConfig
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 20 * time.Second},
		Retry:   DefaultRetryConfig(),
	}
}

// do sends one API call. Only GETs are retried.
func (c *Client) do(ctx context.Context, s *Session, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}
	cfg := noRetry
	if method == http.MethodGet {
		cfg = c.Retry
	}

	resp, body, err := doWithRetry(ctx, c.HTTP, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", contentTypeJSON)
		if payload != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		if s != nil && s.Token != "" {
			req.Header.Set("Authorization", "Bearer "+s.Token)
		}
		return req, nil
	}, cfg)
	if err != nil {
		return err
	}
	return decodeEnvelope(method, path, resp, body, out)
}

func decodeEnvelope(method, path string, resp *http.Response, body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Kind: kindForStatus(resp.StatusCode), Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || env.Status == "error" {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Kind: kindForStatus(resp.StatusCode), Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) session(resp *auth.Session) (*Session, error) {
	s := &Session{Token: resp.Token, User: resp.User}
	if resp.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, resp.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("parse session expiry: %w", err)
		}
		s.ExpiresAt = t
	}
	return s, nil
}

func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (*Session, error) {
	var resp auth.Session
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return c.session(&resp)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp auth.Session
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/login", auth.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.session(&resp)
}

func (c *Client) Logout(ctx context.Context, s *Session) error {
	return c.do(ctx, s, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context, s *Session) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, s, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListCourses(ctx context.Context, f models.CourseFilter) ([]models.Course, error) {
	q := url.Values{}
	if f.Stream != "" {
		q.Set("stream", f.Stream)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	path := "/api/courses"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Courses []models.Course `json:"courses"`
	}
	if err := c.do(ctx, nil, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

func (c *Client) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	var course models.Course
	if err := c.do(ctx, nil, http.MethodGet, fmt.Sprintf("/api/courses/%d", id), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) ListPacks(ctx context.Context) ([]models.Pack365, error) {
	var packs []models.Pack365
	if err := c.do(ctx, nil, http.MethodGet, "/api/packs", nil, &packs); err != nil {
		return nil, err
	}
	return packs, nil
}

func (c *Client) Enroll(ctx context.Context, s *Session, courseID int) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := c.do(ctx, s, http.MethodPost, "/api/enrollments", map[string]int{"course_id": courseID}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) Enrollments(ctx context.Context, s *Session) ([]models.Enrollment, error) {
	var list []models.Enrollment
	if err := c.do(ctx, s, http.MethodGet, "/api/enrollments", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// EnrollmentDetail is an enrollment with its completion summary.
type EnrollmentDetail struct {
	Enrollment *models.Enrollment     `json:"enrollment"`
	Progress   *models.CourseProgress `json:"progress"`
}

func (c *Client) Enrollment(ctx context.Context, s *Session, id int) (*EnrollmentDetail, error) {
	var d EnrollmentDetail
	if err := c.do(ctx, s, http.MethodGet, fmt.Sprintf("/api/enrollments/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

type progressBody struct {
	TopicIndex      int     `json:"topic_index"`
	SubtopicIndex   int     `json:"subtopic_index"`
	PositionSeconds float64 `json:"position_seconds,omitempty"`
}

// ReportProgress sends the player position for one subtopic.
func (c *Client) ReportProgress(ctx context.Context, s *Session, enrollmentID, topic, subtopic int, position float64) (*models.ProgressUpdate, error) {
	var u models.ProgressUpdate
	body := progressBody{TopicIndex: topic, SubtopicIndex: subtopic, PositionSeconds: position}
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/enrollments/%d/progress", enrollmentID), body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) CompleteSubtopic(ctx context.Context, s *Session, enrollmentID, topic, subtopic int) (*models.CourseProgress, error) {
	var p models.CourseProgress
	body := progressBody{TopicIndex: topic, SubtopicIndex: subtopic}
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/enrollments/%d/complete", enrollmentID), body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) IssueCertificate(ctx context.Context, s *Session, enrollmentID int) (*models.Certificate, error) {
	var cert models.Certificate
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/enrollments/%d/certificate", enrollmentID), nil, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *Client) GetExam(ctx context.Context, s *Session, examID int) (*models.ExamView, error) {
	var v models.ExamView
	if err := c.do(ctx, s, http.MethodGet, fmt.Sprintf("/api/exams/%d", examID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) StartAttempt(ctx context.Context, s *Session, examID int) (*exam.AttemptView, error) {
	var v exam.AttemptView
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/exams/%d/attempts", examID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) GetAttempt(ctx context.Context, s *Session, attemptID int) (*exam.AttemptView, error) {
	var v exam.AttemptView
	if err := c.do(ctx, s, http.MethodGet, fmt.Sprintf("/api/attempts/%d", attemptID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) SaveAnswer(ctx context.Context, s *Session, attemptID, questionID int, option string) (*exam.AttemptView, error) {
	var v exam.AttemptView
	body := map[string]interface{}{"question_id": questionID, "option": option}
	if err := c.do(ctx, s, http.MethodPut, fmt.Sprintf("/api/attempts/%d/answers", attemptID), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) SubmitAttempt(ctx context.Context, s *Session, attemptID int) (*models.AttemptResult, error) {
	var r models.AttemptResult
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/attempts/%d/submit", attemptID), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ValidateCoupon(ctx context.Context, s *Session, req payment.OrderRequest) (*models.PriceQuote, error) {
	var q models.PriceQuote
	if err := c.do(ctx, s, http.MethodPost, "/api/coupons/validate", req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) CreateOrder(ctx context.Context, s *Session, req payment.OrderRequest) (*models.CheckoutOrder, error) {
	var o models.CheckoutOrder
	if err := c.do(ctx, s, http.MethodPost, "/api/payments/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// VerifyPayment forwards what the checkout widget returned.
func (c *Client) VerifyPayment(ctx context.Context, s *Session, orderID, paymentID, signature string) (*models.PaymentVerification, error) {
	var v models.PaymentVerification
	body := map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	}
	if err := c.do(ctx, s, http.MethodPost, "/api/payments/verify", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Internships(ctx context.Context) ([]models.Internship, error) {
	var list []models.Internship
	if err := c.do(ctx, nil, http.MethodGet, "/api/internships", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Apply(ctx context.Context, s *Session, internshipID int, req internship.ApplyRequest) (*models.Application, error) {
	var a models.Application
	if err := c.do(ctx, s, http.MethodPost, fmt.Sprintf("/api/internships/%d/applications", internshipID), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Dashboard(ctx context.Context, s *Session) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.do(ctx, s, http.MethodGet, "/api/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
