package logic

import "errors"

// 结算流程的错误分类，handler据此映射HTTP状态码
var (
	ErrAgentNotFound         = errors.New("agent不存在")
	ErrAgentDisabled         = errors.New("agent已下架")
	ErrAlreadyEntitled       = errors.New("该买家已持有有效授权")
	ErrQuoteExpired          = errors.New("报价已过期")
	ErrPriceMismatch         = errors.New("报价金额与当前价格不一致")
	ErrAmountMismatch        = errors.New("签名授权金额与报价不一致")
	ErrAuthorizationRejected = errors.New("支付授权校验未通过")
	ErrSettlementFailed      = errors.New("结算执行失败")
	ErrTxHashUsed            = errors.New("交易凭证已被使用")
)
