package cmsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

// ErrDecode marks CMS responses that could not be decoded into the wire model.
var ErrDecode = errors.New("cms: decode response")

const (
	tokenPath     = "/api/token/"
	timetablePath = "/api/legacy/students/my/timetable"
	studentPath   = "/api/legacy/students/my"
	assemblyPath  = "/api/legacy/students/my/assembly"
)

// Endpoint names reported to the Observer.
const (
	EndpointLogin      = "login"
	EndpointTimetable  = "timetable"
	EndpointStudent    = "student"
	EndpointAssemblies = "assemblies"
)

// Observer receives the outcome of every CMS round trip.
type Observer interface {
	ObserveCMSRequest(endpoint, outcome string, duration time.Duration)
}

// Config holds connection settings for the school CMS.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	Retries  int
}

// Client talks to the school CMS using a cookie session obtained from
// /api/token/. A rejected session triggers one re-login and replay.
type Client struct {
	http     *resty.Client
	creds    models.CMSCredentials
	logger   *zap.Logger
	observer Observer

	mu       sync.Mutex
	loggedIn bool
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New builds a CMS client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cms base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	httpClient.AddRetryCondition(retryCondition)

	c := &Client{
		http:   httpClient,
		creds:  models.CMSCredentials{Username: cfg.Username, Password: cfg.Password},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// Login opens a CMS session for the configured account.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).SetBody(c.creds).Post(tokenPath)
	if err != nil {
		c.observe(EndpointLogin, "error", start)
		return appErrors.WrapAs(err, appErrors.ErrCMSUnavailable, "")
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusBadRequest:
		c.observe(EndpointLogin, "unauthorized", start)
		c.loggedIn = false
		return appErrors.WrapAs(fmt.Errorf("cms login status %d", code), appErrors.ErrCMSUnauthorized, "")
	default:
		c.observe(EndpointLogin, "error", start)
		return appErrors.WrapAs(fmt.Errorf("cms login status %d", code), appErrors.ErrCMSUnavailable, "")
	}
	c.observe(EndpointLogin, "ok", start)
	c.loggedIn = true
	c.logger.Debug("cms session opened", zap.String("username", c.creds.Username))
	return nil
}

// Timetable fetches the timetable for year. The raw body is returned
// alongside the decoded document.
func (c *Client) Timetable(ctx context.Context, year int) (*models.CMSTimetable, []byte, error) {
	var timetable models.CMSTimetable
	raw, err := c.getJSON(ctx, EndpointTimetable, timetablePath, map[string]string{"year": strconv.Itoa(year)}, &timetable)
	if err != nil {
		return nil, raw, err
	}
	return &timetable, raw, nil
}

// DecodeTimetable decodes a stored CMS timetable body.
func DecodeTimetable(raw []byte) (*models.CMSTimetable, error) {
	var timetable models.CMSTimetable
	if err := decode(raw, &timetable); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// UserInformation fetches the signed-in student's record.
func (c *Client) UserInformation(ctx context.Context) (*models.CMSUserInformation, error) {
	var info models.CMSUserInformation
	if _, err := c.getJSON(ctx, EndpointStudent, studentPath, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Assemblies fetches the signed-in student's assemblies.
func (c *Client) Assemblies(ctx context.Context) ([]models.CMSAssembly, error) {
	var assemblies []models.CMSAssembly
	if _, err := c.getJSON(ctx, EndpointAssemblies, assemblyPath, nil, &assemblies); err != nil {
		return nil, err
	}
	return assemblies, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query map[string]string, dest interface{}) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.get(ctx, path, query)
	if err == nil && rejected(resp) {
		c.logger.Info("cms session rejected, logging in again", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode()))
		if err := c.relogin(ctx); err != nil {
			c.observe(endpoint, "unauthorized", start)
			return nil, err
		}
		resp, err = c.get(ctx, path, query)
	}
	if err != nil {
		c.observe(endpoint, "error", start)
		return nil, appErrors.WrapAs(err, appErrors.ErrCMSUnavailable, "")
	}

	switch code := resp.StatusCode(); {
	case rejected(resp):
		c.observe(endpoint, "unauthorized", start)
		return nil, appErrors.WrapAs(fmt.Errorf("cms %s status %d after re-login", endpoint, code), appErrors.ErrCMSUnauthorized, "")
	case code < 200 || code >= 300:
		c.observe(endpoint, "error", start)
		return nil, appErrors.WrapAs(fmt.Errorf("cms %s status %d", endpoint, code), appErrors.ErrCMSUnavailable, "")
	}

	raw := resp.Body()
	if err := decode(raw, dest); err != nil {
		c.observe(endpoint, "decode_error", start)
		return raw, err
	}
	c.observe(endpoint, "ok", start)
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	return req.Get(path)
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) relogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	return c.loginLocked(ctx)
}

func (c *Client) observe(endpoint, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCMSRequest(endpoint, outcome, time.Since(start))
	}
}

func rejected(resp *resty.Response) bool {
	code := resp.StatusCode()
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func decode(raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.WrapAs(fmt.Errorf("%w: %v", ErrDecode, err), appErrors.ErrCMSPayload, "")
	}
	return nil
}
