package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/techgangboss/agentstore-sub000/internal/config"
)

// ReceiptResult 交易回执结果
type ReceiptResult string

const (
	ReceiptResultSuccess ReceiptResult = "success" // 链上执行成功
	ReceiptResultFailed  ReceiptResult = "failed"  // 链上执行失败
	ReceiptResultNone    ReceiptResult = "none"    // 尚无回执
)

// Receipt 交易回执摘要
type Receipt struct {
	Result        ReceiptResult
	BlockNumber   uint64
	Confirmations int
}

// TransferEvent 代币转账事件
type TransferEvent struct {
	To          string // 收款地址（hex）
	ValueMicro  int64  // 转账金额（代币最小单位，USDC即micro）
	TxHash      string
	BlockNumber uint64
}

// Reader 链上状态读取接口，便于测试替换
type Reader interface {
	// GetReceipt 查询交易回执
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)
	// GetTransferLogs 查询从fromAddress发出的代币转账事件
	GetTransferLogs(ctx context.Context, fromAddress string, sinceBlock uint64) ([]TransferEvent, error)
	// LatestBlock 查询最新区块号
	LatestBlock(ctx context.Context) (uint64, error)
}

// ERC20 Transfer(address,address,uint256)事件签名
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// EthReader 基于ethclient的链上读取器
type EthReader struct {
	client       *ethclient.Client
	assetAddress common.Address
}

// Init 连接RPC节点并创建读取器
func Init(cfg config.ChainConfig) (*EthReader, error) {
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc node: %w", err)
	}

	return &EthReader{
		client:       client,
		assetAddress: common.HexToAddress(cfg.AssetAddress),
	}, nil
}

// LatestBlock 获取最新区块号
func (r *EthReader) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := r.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// isNotFound RPC中间层可能包装ethereum.NotFound，按错误链判定
func isNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

// GetReceipt 查询交易回执，无回执返回ReceiptResultNone而不是错误
func (r *EthReader) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := r.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if isNotFound(err) {
		return &Receipt{Result: ReceiptResultNone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash, err)
	}

	latest, err := r.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	result := ReceiptResultFailed
	if receipt.Status == types.ReceiptStatusSuccessful {
		result = ReceiptResultSuccess
	}

	blockNum := receipt.BlockNumber.Uint64()
	confirmations := 0
	if latest >= blockNum {
		confirmations = int(latest-blockNum) + 1
	}

	return &Receipt{
		Result:        result,
		BlockNumber:   blockNum,
		Confirmations: confirmations,
	}, nil
}

// GetTransferLogs 按发送方过滤代币Transfer事件
func (r *EthReader) GetTransferLogs(ctx context.Context, fromAddress string, sinceBlock uint64) ([]TransferEvent, error) {
	from := common.HexToAddress(fromAddress)
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(sinceBlock),
		Addresses: []common.Address{r.assetAddress},
		Topics: [][]common.Hash{
			{transferTopic},
			{common.BytesToHash(from.Bytes())},
		},
	}

	logs, err := r.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter transfer logs: %w", err)
	}

	events := make([]TransferEvent, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) < 3 || len(log.Data) == 0 {
			continue
		}
		value := new(big.Int).SetBytes(log.Data)
		if !value.IsInt64() {
			continue
		}
		events = append(events, TransferEvent{
			To:          common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
			ValueMicro:  value.Int64(),
			TxHash:      log.TxHash.Hex(),
			BlockNumber: log.BlockNumber,
		})
	}

	return events, nil
}
