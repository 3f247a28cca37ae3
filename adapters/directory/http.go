package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// HTTPDirectory resolves did:plc identifiers against a PLC-style
// directory endpoint. Every failure mode — unsupported DID method,
// a not-found answer, an unreachable directory — surfaces as
// core.ErrUnresolved so the access gate fails closed.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a directory client for the given base URL,
// e.g. https://plc.directory.
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type didDocumentMeta struct {
	CreatedAt time.Time `json:"createdAt"`
}

// CreatedAt resolves the account-creation timestamp for a DID.
func (d *HTTPDirectory) CreatedAt(ctx context.Context, did string) (time.Time, error) {
	if !strings.HasPrefix(did, "did:plc:") {
		return time.Time{}, fmt.Errorf("%w: unsupported did method %q", core.ErrUnresolved, did)
	}

	endpoint := d.baseURL + "/" + url.PathEscape(did) + "/log/last"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", core.ErrUnresolved, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: directory unreachable: %v", core.ErrUnresolved, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("%w: directory returned %d", core.ErrUnresolved, resp.StatusCode)
	}

	var meta didDocumentMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed directory response: %v", core.ErrUnresolved, err)
	}
	if meta.CreatedAt.IsZero() {
		return time.Time{}, fmt.Errorf("%w: directory response missing creation date", core.ErrUnresolved)
	}

	return meta.CreatedAt, nil
}

var _ ports.IdentityDirectory = (*HTTPDirectory)(nil)
