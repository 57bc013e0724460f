package xbox

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/pkg/idx"
	"github.com/deepslate-launcher/deepslate-core/pkg/retryx"
	"github.com/deepslate-launcher/deepslate-core/pkg/slogx"
)

// Default endpoints for the retail Xbox Live federation.
const (
	DefaultDeviceAuthURL       = "https://device.auth.xboxlive.com/device/authenticate"
	DefaultSisuAuthenticateURL = "https://sisu.xboxlive.com/authenticate"
	DefaultSisuAuthorizeURL    = "https://sisu.xboxlive.com/authorize"
	DefaultXstsAuthorizeURL    = "https://xsts.auth.xboxlive.com/xsts/authorize"
)

type Config struct {
	DeviceAuthURL       string
	SisuAuthenticateURL string
	SisuAuthorizeURL    string
	XstsAuthorizeURL    string

	// RequestsPerSecond and Burst bound how fast signed calls go out,
	// shared across every account in the process.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.DeviceAuthURL == "" {
		c.DeviceAuthURL = DefaultDeviceAuthURL
	}
	if c.SisuAuthenticateURL == "" {
		c.SisuAuthenticateURL = DefaultSisuAuthenticateURL
	}
	if c.SisuAuthorizeURL == "" {
		c.SisuAuthorizeURL = DefaultSisuAuthorizeURL
	}
	if c.XstsAuthorizeURL == "" {
		c.XstsAuthorizeURL = DefaultXstsAuthorizeURL
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Client sends signed requests to the Xbox Live federation.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// request is one signed POST: everything do needs to build, sign and send
// it. contractVersion is false only for the SISU authorize endpoint.
type request struct {
	step            domain.Step
	url             string
	authorization   string
	contractVersion bool
	body            any
	key             *ecdsa.PrivateKey
	ref             time.Time
}

// do signs and sends req, retrying connection-level failures, and decodes
// the 2xx response into out. It returns the response headers and the
// server's Date header, the reference timestamp for the next signed call
// in the chain.
func (c *Client) do(ctx context.Context, req request, out any) (http.Header, time.Time, error) {
	payload, err := json.Marshal(req.body)
	if err != nil {
		return nil, time.Time{}, &domain.FlowError{Step: req.step, Err: fmt.Errorf("encode request: %w", err)}
	}

	target, err := url.Parse(req.url)
	if err != nil {
		return nil, time.Time{}, &domain.FlowError{Step: req.step, Err: fmt.Errorf("parse url: %w", err)}
	}

	// The signature covers fixed bytes, so it is computed once and reused
	// for every retry attempt.
	signature, err := signRequest(req.key, req.ref, target.RequestURI(), req.authorization, payload)
	if err != nil {
		return nil, time.Time{}, &domain.FlowError{Step: req.step, Err: err}
	}

	log := slogx.FromContext(ctx).With("step", string(req.step), "req_id", idx.New().String())
	log.Debug("sending signed request", "url", req.url)

	var (
		header http.Header
		date   time.Time
		status int
	)
	err = retryx.Do(ctx, retryx.Transport, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("Signature", signature)
		if req.contractVersion {
			httpReq.Header.Set("x-xbl-contract-version", "1")
		}
		if req.authorization != "" {
			httpReq.Header.Set("Authorization", req.authorization)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domain.FlowError{Step: req.step, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &domain.FlowError{Step: req.step, Status: resp.StatusCode, Body: string(raw)}
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return &domain.FlowError{Step: req.step, Status: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
		}

		header = resp.Header
		date = serverDate(resp)
		status = resp.StatusCode
		return nil
	})
	if err != nil {
		var flowErr *domain.FlowError
		if !errors.As(err, &flowErr) {
			err = &domain.FlowError{Step: req.step, Err: err}
		}
		return nil, time.Time{}, err
	}

	log.Debug("signed request complete", "status", status)
	return header, date, nil
}

// serverDate reads the response Date header. The federation's clock is
// authoritative for signing, so chaining it keeps signatures valid when
// the local clock drifts.
func serverDate(resp *http.Response) time.Time {
	if d, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
		return d
	}
	return time.Now()
}
