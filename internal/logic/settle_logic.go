package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/techgangboss/agentstore-sub000/internal/config"
	"github.com/techgangboss/agentstore-sub000/internal/facilitator"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/gorm"
)

// SettleResult 结算成功的返回结果
type SettleResult struct {
	Entitlement *model.EntitlementModel `json:"entitlement"`
	Transaction *model.TransactionModel `json:"transaction"`
}

// SettleLogic 支付结算流程
type SettleLogic struct {
	db          *gorm.DB
	relay       facilitator.Client
	cfg         *config.Config
	quoteLogic  *QuoteLogic
	entitlement *EntitlementLogic
}

// NewSettleLogic 创建结算逻辑，中继客户端由外部注入
func NewSettleLogic(db *gorm.DB, relay facilitator.Client, cfg *config.Config) *SettleLogic {
	return &SettleLogic{
		db:          db,
		relay:       relay,
		cfg:         cfg,
		quoteLogic:  NewQuoteLogic(cfg),
		entitlement: NewEntitlementLogic(db),
	}
}

// Settle 验证签名授权并完成结算，成功后签发授权记录。
// 凭证产生前的任何失败都不落库；凭证产生后即使请求取消也照常落库。
func (s *SettleLogic) Settle(ctx context.Context, agentId int64, buyerAddress string,
	quote *Quote, payload *facilitator.PaymentPayload) (*SettleResult, error) {

	buyer := strings.ToLower(buyerAddress)

	var agent model.AgentModel
	if err := s.db.First(&agent, agentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	if agent.Status != model.AgentStatusActive {
		return nil, ErrAgentDisabled
	}

	// 先查有效授权，避免无意义地触发中继
	existing, err := s.entitlement.Lookup(agentId, buyer)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyEntitled
	}

	// 免费agent不走中继，直接签发
	if agent.PricingModel == model.PricingModelFree {
		return s.grantFree(&agent, buyer)
	}

	if err := s.checkQuote(&agent, quote, payload); err != nil {
		return nil, err
	}

	split := SplitFee(quote.AmountMicro, s.cfg.Payment.PlatformFeePct)
	requirements := s.quoteLogic.Requirements(&agent, quote)

	// 两阶段：verify只校验不动资金，settle执行转账
	verifyResp, err := s.relay.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorizationRejected, err)
	}
	if !verifyResp.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationRejected, verifyResp.InvalidReason)
	}

	settleResp, err := s.relay.Settle(ctx, payload, requirements)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	if !settleResp.Success || settleResp.Transaction == "" {
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, settleResp.ErrorReason)
	}

	// 凭证已产生，后续落库不再随请求取消
	return s.record(&agent, buyer, quote, payload, split, settleResp)
}

// checkQuote 报价前置校验：未过期、与当前价格一致、与签名授权金额一致。
// 超额支付一律拒绝，保证手续费拆分恒等式无条件成立。
func (s *SettleLogic) checkQuote(agent *model.AgentModel, quote *Quote, payload *facilitator.PaymentPayload) error {
	if quote == nil || payload == nil {
		return ErrPriceMismatch
	}
	if time.Now().UTC().After(quote.ExpiresAt) {
		return ErrQuoteExpired
	}
	if quote.AmountMicro != agent.PriceMicro {
		return ErrPriceMismatch
	}

	authValue, err := strconv.ParseInt(payload.Payload.Authorization.Value, 10, 64)
	if err != nil || authValue != quote.AmountMicro {
		return ErrAmountMismatch
	}

	return nil
}

// grantFree 免费agent直接签发已确认授权
func (s *SettleLogic) grantFree(agent *model.AgentModel, buyer string) (*SettleResult, error) {
	entitlement, err := s.entitlement.Issue(s.db, agent, buyer, 0, model.ConfirmationStatusConfirmed, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyEntitled
		}
		return nil, err
	}

	s.incrementDownloads(agent.Id)

	return &SettleResult{Entitlement: entitlement}, nil
}

// record 将结算凭证转换为授权记录和交易记录。
// 交易哈希唯一约束冲突说明凭证被重复使用，删除刚创建的授权做补偿。
func (s *SettleLogic) record(agent *model.AgentModel, buyer string, quote *Quote,
	payload *facilitator.PaymentPayload, split FeeSplit, proof *facilitator.SettleResponse) (*SettleResult, error) {

	status, deadline := s.confirmationFromProof(proof)
	db := s.db.WithContext(context.Background())

	entitlement, err := s.entitlement.Issue(db, agent, buyer, quote.AmountMicro, status, deadline)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 同一(agent, buyer)的并发结算竞争，本请求落败
			logger.Warn("Concurrent entitlement race for agent %d, buyer %s, tx %s",
				agent.Id, buyer, proof.Transaction)
			return nil, ErrAlreadyEntitled
		}
		return nil, err
	}

	txStatus := model.TransactionStatusPending
	if status == model.ConfirmationStatusConfirmed {
		txStatus = model.TransactionStatusConfirmed
	}

	transaction := &model.TransactionModel{
		EntitlementId:    entitlement.Id,
		AgentId:          agent.Id,
		PublisherId:      agent.PublisherId,
		TxHash:           strings.ToLower(proof.Transaction),
		FromAddress:      strings.ToLower(payload.Payload.Authorization.From),
		ToAddress:        strings.ToLower(quote.PayTo),
		AmountMicro:      quote.AmountMicro,
		PlatformFeeMicro: split.PlatformMicro,
		PublisherMicro:   split.PublisherMicro,
		Currency:         quote.Currency,
		PayoutAddress:    agent.PayoutAddress,
		Status:           txStatus,
		BlockNum:         proof.BlockNumber,
		Confirmations:    proof.Confirmations,
	}

	if err := db.Create(transaction).Error; err != nil {
		// 补偿：授权已建但交易凭证重复，删除孤儿授权
		if delErr := db.Delete(entitlement).Error; delErr != nil {
			logger.Error("Failed to delete orphan entitlement %d: %v", entitlement.Id, delErr)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("Replayed settlement proof %s for agent %d, buyer %s",
				proof.Transaction, agent.Id, buyer)
			return nil, ErrTxHashUsed
		}
		return nil, err
	}

	s.incrementDownloads(agent.Id)

	logger.Info("Settled agent %d for buyer %s: tx %s, status %s, amount %s",
		agent.Id, buyer, transaction.TxHash, status, FormatMicro(quote.AmountMicro))

	return &SettleResult{Entitlement: entitlement, Transaction: transaction}, nil
}

// confirmationFromProof 由凭证状态推导授权确认状态。
// 只有中继明确终局的凭证直接confirmed，其余一律preconfirmed并
// 设置复核截止时间，留给对账任务定夺。
func (s *SettleLogic) confirmationFromProof(proof *facilitator.SettleResponse) (model.ConfirmationStatus, *time.Time) {
	if proof.Status == facilitator.ProofStatusConfirmed {
		return model.ConfirmationStatusConfirmed, nil
	}
	deadline := time.Now().UTC().Add(s.cfg.Payment.VerifyWindow())
	return model.ConfirmationStatusPreconfirmed, &deadline
}

// incrementDownloads 下载计数递增，失败只记录日志不影响结算结果
func (s *SettleLogic) incrementDownloads(agentId int64) {
	if err := s.db.Model(&model.AgentModel{}).Where("id = ?", agentId).
		Update("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
		logger.Error("Failed to increment downloads for agent %d: %v", agentId, err)
	}
}
