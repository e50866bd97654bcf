package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// WriteRequest describes one contract write sent through the relay.
type WriteRequest struct {
	ContractAddress string
	FunctionName    string
	Args            []any
	Value           string // native value in base units, decimal string
	Account         string // end-user wallet the call is made for
}

type writeBody struct {
	FunctionName string       `json:"functionName"`
	Args         []any        `json:"args"`
	TxOverrides  *txOverrides `json:"txOverrides,omitempty"`
}

type txOverrides struct {
	Value string `json:"value,omitempty"`
}

// WriteContract queues a contract call and returns the relay's queue id.
// The request is sent exactly once; a failure is returned to the caller as is.
func (c *Client) WriteContract(ctx context.Context, req WriteRequest) (string, error) {
	body := writeBody{FunctionName: req.FunctionName, Args: req.Args}
	if req.Value != "" && req.Value != "0" {
		body.TxOverrides = &txOverrides{Value: req.Value}
	}

	path := fmt.Sprintf("/contract/%s/%s/write", escape(c.chain), escape(req.ContractAddress))
	respBody, _, err := c.do(ctx, http.MethodPost, path, req.Account, body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Result struct {
			QueueID string `json:"queueId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parsing write response: %w", err)
	}
	if resp.Result.QueueID == "" {
		return "", errors.New("relay response has no queueId")
	}
	return resp.Result.QueueID, nil
}

// Status is the relay's view of a queued transaction.
type Status struct {
	QueueID         string `json:"queueId"`
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// TransactionStatus performs a single status lookup for a queued transaction.
func (c *Client) TransactionStatus(ctx context.Context, queueID string) (Status, error) {
	body, err := c.getWithRetry(ctx, "/transaction/status/"+escape(queueID))
	if err != nil {
		return Status{}, err
	}

	var resp struct {
		Result Status `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Status{}, fmt.Errorf("parsing status response: %w", err)
	}
	return resp.Result, nil
}
