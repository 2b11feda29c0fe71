package reader

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Bridge talks to the reader daemon over its local HTTP API. The daemon
// owns the PC/SC session; one daemon, one physical reader.
type Bridge struct {
	baseURL string
	client  *http.Client
}

func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (b *Bridge) ReadIDm() (string, error) {
	var resp struct {
		IDm string `json:"idm"`
	}
	if err := b.get("/idm", nil, &resp); err != nil {
		return "", err
	}
	if resp.IDm == "" {
		return "", ErrNoCard
	}
	return resp.IDm, nil
}

func (b *Bridge) ReadBalance(idm string) (*int64, error) {
	var resp struct {
		Balance *int64 `json:"balance"`
	}
	if err := b.get("/balance", url.Values{"idm": {idm}}, &resp); err != nil {
		return nil, err
	}
	return resp.Balance, nil
}

func (b *Bridge) ReadHistory(idm string) ([]Transaction, error) {
	var resp struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := b.get("/history", url.Values{"idm": {idm}}, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (b *Bridge) get(path string, query url.Values, out interface{}) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpResp, err := b.client.Get(u)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: bridge returned %d", ErrReadFailed, httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return nil
}
