package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// ErrDirectoryUnavailable is returned when the directory API cannot be reached
// or answers with a non-success status.
var ErrDirectoryUnavailable = errors.New("pharmacy: directory unavailable")

// Directory resolves pharmacies by normalized phone number.
type Directory interface {
	// FindByPhone returns nil, nil when no record matches.
	FindByPhone(ctx context.Context, normalizedPhone string) (*Pharmacy, error)
	List(ctx context.Context) ([]Pharmacy, error)
}

// HTTPDirectory fetches the full directory listing from a REST endpoint.
type HTTPDirectory struct {
	client *resty.Client
	url    string
	logger *logging.Logger
}

// NewHTTPDirectory builds a directory client against url.
func NewHTTPDirectory(url string, timeout time.Duration, logger *logging.Logger) *HTTPDirectory {
	if url == "" {
		panic("pharmacy: directory url required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPDirectory{client: client, url: url, logger: logger.Component("pharmacy-directory")}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (d *HTTPDirectory) WithHTTPClient(hc *http.Client) *HTTPDirectory {
	if hc != nil {
		d.client = resty.NewWithClient(hc).SetHeader("Accept", "application/json")
	}
	return d
}

// FindByPhone scans the listing for a record whose normalized phone matches.
func (d *HTTPDirectory) FindByPhone(ctx context.Context, normalizedPhone string) (*Pharmacy, error) {
	records, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if phone.Normalize(r.Phone) == normalizedPhone {
			p := r.toPharmacy()
			d.logger.Info("pharmacy found", "pharmacy_id", p.ID, "pharmacy_name", p.Name)
			return &p, nil
		}
	}
	d.logger.Info("no pharmacy found", "phone", phone.Last4(normalizedPhone))
	return nil, nil
}

// List returns every record in the directory.
func (d *HTTPDirectory) List(ctx context.Context) ([]Pharmacy, error) {
	records, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Pharmacy, 0, len(records))
	for _, r := range records {
		out = append(out, r.toPharmacy())
	}
	return out, nil
}

func (d *HTTPDirectory) fetch(ctx context.Context) ([]record, error) {
	var records []record
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&records).
		ForceContentType("application/json").
		Get(d.url)
	if err != nil {
		d.logger.Error("directory request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if resp.IsError() {
		d.logger.Error("directory returned error status", "status", resp.StatusCode())
		return nil, fmt.Errorf("%w: status %d", ErrDirectoryUnavailable, resp.StatusCode())
	}
	return records, nil
}
