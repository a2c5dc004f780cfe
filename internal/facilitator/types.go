package facilitator

import (
	"encoding/json"
	"fmt"
)

// PaymentPayload 买家签名的x402支付载荷
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// ExactEvmPayload EVM exact scheme的载荷
type ExactEvmPayload struct {
	Signature     string           `json:"signature"`
	Authorization EvmAuthorization `json:"authorization"`
}

// EvmAuthorization EIP-3009转账授权（USDC transferWithAuthorization）
type EvmAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// PaymentRequirements 资源方声明的支付要求，verify/settle时原样传给中继
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty"`
	Asset             string `json:"asset"`
}

// VerifyResponse 中继verify接口的响应
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// ProofStatus 结算凭证状态，封闭枚举
type ProofStatus string

const (
	ProofStatusPending      ProofStatus = "pending"      // 已提交，未上链
	ProofStatusPreconfirmed ProofStatus = "preconfirmed" // 中继预确认，待终局
	ProofStatusConfirmed    ProofStatus = "confirmed"    // 已终局确认
	ProofStatusUnknown      ProofStatus = "unknown"      // 中继返回了未知状态
)

// ParseProofStatus 将中继的自由字符串收敛为封闭枚举，未知值不透传
func ParseProofStatus(s string) ProofStatus {
	switch ProofStatus(s) {
	case ProofStatusPending, ProofStatusPreconfirmed, ProofStatusConfirmed:
		return ProofStatus(s)
	default:
		return ProofStatusUnknown
	}
}

// SettleResponse 中继settle接口返回的结算凭证
type SettleResponse struct {
	Success       bool        `json:"success"`
	ErrorReason   string      `json:"errorReason,omitempty"`
	Transaction   string      `json:"transaction"` // 链上交易哈希
	Network       string      `json:"network"`
	Payer         string      `json:"payer,omitempty"`
	Status        ProofStatus `json:"-"`
	BlockNumber   uint64      `json:"blockNumber,omitempty"`
	Confirmations int         `json:"confirmations,omitempty"`
}

// UnmarshalJSON 反序列化时收敛status字段
func (r *SettleResponse) UnmarshalJSON(data []byte) error {
	type alias SettleResponse
	aux := struct {
		*alias
		Status string `json:"status"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to decode settle response: %w", err)
	}
	r.Status = ParseProofStatus(aux.Status)
	return nil
}
