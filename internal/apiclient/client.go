package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/matuc/lti-exercise-composer/internal/exercise"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Optional client-credentials auth against the exercise API.
	TokenURL     string
	ClientID     string
	ClientSecret string

	// HTTPClient overrides everything above except BaseURL (tests).
	HTTPClient *http.Client
}

// Client talks to the exercise REST API. Every call is a fresh request; nothing is cached.
type Client struct {
	base string
	http *http.Client

	ExerciseSets *ExerciseSetService
	Questions    *QuestionService
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base URL required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("apiclient: bad base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := cfg.HTTPClient
	switch {
	case h != nil:
	case cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
		h.Timeout = timeout
	default:
		h = &http.Client{Timeout: timeout}
	}

	c := &Client{base: base, http: h}
	c.ExerciseSets = &ExerciseSetService{c: c}
	c.Questions = &QuestionService{c: c}
	return c, nil
}

type tokenKey struct{}

// WithToken attaches a bearer token that outgoing requests made with ctx will carry.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type call struct {
	op       string // for error reporting
	fallback string // shown when the server gives no message
	method   string
	path     string
	query    url.Values
	body     any
	out      any // decoded from envelope.data when non-nil
}

func (c *Client) do(ctx context.Context, k call) error {
	u := c.base + k.path
	if len(k.query) > 0 {
		u += "?" + k.query.Encode()
	}
	var rdr io.Reader
	if k.body != nil {
		b, err := json.Marshal(k.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", k.op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, k.method, u, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", k.op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: k.op, Message: MsgUnreachable, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: k.op, Message: MsgUnreachable, Err: err}
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if res.StatusCode/100 != 2 || decodeErr != nil || !env.OK {
		e := &Error{Kind: KindServer, Op: k.op, Status: res.StatusCode, Message: k.fallback}
		if decodeErr == nil {
			switch {
			case env.Message != "":
				e.Message = env.Message
			case env.Error != "":
				e.Message = env.Error
			}
		} else if res.StatusCode/100 == 2 {
			e.Err = fmt.Errorf("decode envelope: %w", decodeErr)
		}
		return e
	}

	if k.out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &Error{Kind: KindServer, Op: k.op, Status: res.StatusCode, Message: k.fallback}
	}
	if err := json.Unmarshal(env.Data, k.out); err != nil {
		return &Error{Kind: KindServer, Op: k.op, Status: res.StatusCode, Message: k.fallback,
			Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// Health is advisory: any failure reports false.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return false
	}
	res, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return false
	}
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return true // plain 2xx body still means the API answered
	}
	return env.OK
}

func validation(op string, v exercise.ValidationErrors) error {
	if len(v) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Op: op, Message: v.Error(), Err: v}
}

func idPath(prefix, id string, suffix ...string) string {
	p := prefix + "/" + url.PathEscape(strings.TrimSpace(id))
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
