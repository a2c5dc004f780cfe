package logic

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/techgangboss/agentstore-sub000/internal/logger"
	"github.com/techgangboss/agentstore-sub000/internal/model"
	"gorm.io/gorm"
)

// EntitlementLogic 授权台账
type EntitlementLogic struct {
	db *gorm.DB
}

// NewEntitlementLogic 创建授权台账逻辑
func NewEntitlementLogic(db *gorm.DB) *EntitlementLogic {
	return &EntitlementLogic{db: db}
}

// Lookup 查询买家对agent的有效授权。
// 过期在读取时判定，不依赖后台清理；无有效授权返回nil。
func (e *EntitlementLogic) Lookup(agentId int64, buyerAddress string) (*model.EntitlementModel, error) {
	buyer := strings.ToLower(buyerAddress)

	var entitlement model.EntitlementModel
	err := e.db.Where("agent_id = ? AND buyer_address = ? AND is_active = ?", agentId, buyer, true).
		First(&entitlement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if entitlement.IsExpired(time.Now().UTC()) {
		return nil, nil
	}

	return &entitlement, nil
}

// ListByBuyer 查询买家的全部有效授权
func (e *EntitlementLogic) ListByBuyer(buyerAddress string) ([]model.EntitlementModel, error) {
	buyer := strings.ToLower(buyerAddress)

	var entitlements []model.EntitlementModel
	err := e.db.Where("buyer_address = ? AND is_active = ?", buyer, true).
		Order("created_at DESC").
		Find(&entitlements).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := make([]model.EntitlementModel, 0, len(entitlements))
	for _, ent := range entitlements {
		if !ent.IsExpired(now) {
			result = append(result, ent)
		}
	}

	return result, nil
}

// Issue 签发新授权
func (e *EntitlementLogic) Issue(db *gorm.DB, agent *model.AgentModel, buyerAddress string,
	amountMicro int64, status model.ConfirmationStatus, deadline *time.Time) (*model.EntitlementModel, error) {

	entitlement := &model.EntitlementModel{
		AgentId:              agent.Id,
		BuyerAddress:         strings.ToLower(buyerAddress),
		Token:                uuid.NewString(),
		PricingModel:         agent.PricingModel,
		AmountMicro:          amountMicro,
		Currency:             agent.Currency,
		IsActive:             true,
		ConfirmationStatus:   status,
		VerificationDeadline: deadline,
		ExpiresAt:            nil, // 一次性买断永久有效
	}

	if err := db.Create(entitlement).Error; err != nil {
		return nil, err
	}

	return entitlement, nil
}

// Revoke 撤销授权。撤销是终态，不可恢复，买家需重新购买。
// 同时回补下载计数，抵消签发时的递增。
func (e *EntitlementLogic) Revoke(entitlementId int64, reason string) error {
	var entitlement model.EntitlementModel
	if err := e.db.First(&entitlement, entitlementId).Error; err != nil {
		return err
	}

	if entitlement.ConfirmationStatus == model.ConfirmationStatusRevoked {
		return nil
	}

	updates := map[string]interface{}{
		"is_active":             false,
		"confirmation_status":   model.ConfirmationStatusRevoked,
		"verification_deadline": nil,
	}
	if err := e.db.Model(&entitlement).Updates(updates).Error; err != nil {
		return err
	}

	if err := e.db.Model(&model.AgentModel{}).Where("id = ? AND downloads > 0", entitlement.AgentId).
		Update("downloads", gorm.Expr("downloads - 1")).Error; err != nil {
		logger.Error("Failed to decrement downloads for agent %d: %v", entitlement.AgentId, err)
	}

	logger.Info("Revoked entitlement %d for agent %d, buyer %s: %s",
		entitlement.Id, entitlement.AgentId, entitlement.BuyerAddress, reason)

	return nil
}
