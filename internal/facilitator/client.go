package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/techgangboss/agentstore-sub000/internal/config"
)

// Client 结算中继客户端接口，便于测试替换
type Client interface {
	// Verify 校验签名与余额，不动资金
	Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error)
	// Settle 执行转账并返回结算凭证
	Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error)
}

// HTTPClient 基于HTTP的中继客户端
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClient 创建中继客户端
func NewHTTPClient(cfg config.FacilitatorConfig) *HTTPClient {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// verifyRequest verify/settle共用的请求体
type verifyRequest struct {
	X402Version         int                  `json:"x402Version"`
	PaymentPayload      *PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *PaymentRequirements `json:"paymentRequirements"`
}

// Verify 调用中继verify接口
func (c *HTTPClient) Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error) {
	body, err := c.post(ctx, "/verify", payload, requirements)
	if err != nil {
		return nil, err
	}

	var resp VerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return &resp, nil
}

// Settle 调用中继settle接口
func (c *HTTPClient) Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error) {
	body, err := c.post(ctx, "/settle", payload, requirements)
	if err != nil {
		return nil, err
	}

	var resp SettleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode settle response: %w", err)
	}
	return &resp, nil
}

// post 发送请求并读取响应体，非200状态码视为错误
func (c *HTTPClient) post(ctx context.Context, path string, payload *PaymentPayload, requirements *PaymentRequirements) ([]byte, error) {
	reqBody, err := json.Marshal(verifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal facilitator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read facilitator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facilitator %s failed (%d): %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
