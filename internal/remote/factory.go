package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/mealkiosk/internal/model"
)

// Backend kinds.
const (
	KindREST     = "rest"
	KindPostgres = "postgres"
)

// Settings are the statically configured backend credentials.
type Settings struct {
	Kind    string
	URL     string
	Key     string
	DSN     string
	Timeout time.Duration
}

// CredentialSource reads persisted kiosk configuration.
type CredentialSource interface {
	GetConfig(ctx context.Context, key string) (string, bool, error)
}

// Factory builds a fresh Gateway on every call, so credential changes take
// effect on the next operation without any shared client to reset.
type Factory struct {
	static Settings
	creds  CredentialSource
	client *http.Client
}

// NewFactory creates a factory. creds may be nil.
func NewFactory(static Settings, creds CredentialSource) *Factory {
	timeout := static.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Factory{
		static: static,
		creds:  creds,
		client: &http.Client{Timeout: timeout},
	}
}

// WithClient returns a copy of f that sends REST requests through c.
func (f *Factory) WithClient(c *http.Client) *Factory {
	clone := *f
	clone.client = c
	return &clone
}

// Resolve returns the effective settings. Static URL and key win; when either
// is missing both fall back to the persisted backend_url and backend_key.
func (f *Factory) Resolve(ctx context.Context) (Settings, error) {
	s := f.static
	if s.Kind == "" {
		s.Kind = KindREST
	}
	if s.Kind == KindPostgres {
		return s, nil
	}

	if (s.URL == "" || s.Key == "") && f.creds != nil {
		if v, ok, err := f.creds.GetConfig(ctx, model.KeyBackendURL); err != nil {
			return Settings{}, fmt.Errorf("read backend url: %w", err)
		} else if ok {
			s.URL = v
		}
		if v, ok, err := f.creds.GetConfig(ctx, model.KeyBackendKey); err != nil {
			return Settings{}, fmt.Errorf("read backend key: %w", err)
		} else if ok {
			s.Key = v
		}
	}
	return s, nil
}

// Gateway constructs a gateway from the resolved settings. The caller must
// Close it. Missing credentials yield an error satisfying IsNotConfigured.
func (f *Factory) Gateway(ctx context.Context) (Gateway, error) {
	s, err := f.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	switch s.Kind {
	case KindREST:
		if s.URL == "" || s.Key == "" {
			return nil, ErrNotConfigured
		}
		return NewRESTGateway(s.URL, s.Key, WithHTTPClient(f.client)), nil
	case KindPostgres:
		if s.DSN == "" {
			return nil, ErrNotConfigured
		}
		return OpenPostgres(ctx, s.DSN)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", s.Kind)
	}
}
