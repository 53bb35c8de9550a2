package gasless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ethereum/go-ethereum/common"
)

// RelayPath is the path of the relay transfer endpoint.
const RelayPath = "/api/relay-transfer"

// maxResponseSize limits relay responses.
const maxResponseSize = 64 * 1024

// RelayClient sends signed transfer requests to the relay service.
type RelayClient struct {
	cli      *http.Client
	endpoint string
}

// RelayOptions are RelayClient options.
type RelayOptions struct {
	// Timeout is the timeout of the whole request, the relay waits for the
	// transaction to be included before answering.
	Timeout time.Duration
	// Client allows to use a custom HTTP client (Timeout is ignored then).
	Client *http.Client
}

// NewRelayClient creates a client for the relay at the given base URL.
func NewRelayClient(endpoint string, opts RelayOptions) *RelayClient {
	cli := opts.Client
	if cli == nil {
		cli = &http.Client{Timeout: opts.Timeout}
	}
	return &RelayClient{
		cli:      cli,
		endpoint: strings.TrimRight(endpoint, "/") + RelayPath,
	}
}

// Relay submits the request. Relay-side rejections are returned as
// *RelayError, transport failures and malformed responses are wrapped into
// ErrRelayUnreachable.
func (c *RelayClient) Relay(ctx context.Context, req metatx.RelayRequest) (common.Hash, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return common.Hash{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(httpReq)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	var res metatx.RelayResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return common.Hash{}, fmt.Errorf("%w: HTTP %d with malformed body", ErrRelayUnreachable, resp.StatusCode)
	}
	if res.Error != "" {
		return common.Hash{}, &RelayError{StatusCode: resp.StatusCode, Reason: res.Error}
	}
	if resp.StatusCode != http.StatusOK || !res.Success || res.TxHash == nil {
		return common.Hash{}, fmt.Errorf("%w: unexpected response (HTTP %d)", ErrRelayUnreachable, resp.StatusCode)
	}
	return *res.TxHash, nil
}

// IsRelayError checks whether err is a relay rejection and returns it.
func IsRelayError(err error) (*RelayError, bool) {
	var rerr *RelayError
	ok := errors.As(err, &rerr)
	return rerr, ok
}
