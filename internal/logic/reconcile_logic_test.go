package logic

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techgangboss/agentstore-sub000/internal/chain"
	"github.com/techgangboss/agentstore-sub000/internal/config"
)

// fakeReader 链上读取器测试替身
type fakeReader struct {
	receipt    *chain.Receipt
	receiptErr error
	latest     uint64
	events     []chain.TransferEvent
}

func (f *fakeReader) GetReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeReader) GetTransferLogs(ctx context.Context, fromAddress string, sinceBlock uint64) ([]chain.TransferEvent, error) {
	return f.events, nil
}

func (f *fakeReader) LatestBlock(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func reconcileConfig() *config.Config {
	cfg := testConfig()
	cfg.Task = config.TaskConfig{ReconcileInterval: 30, WorkerPoolSize: 1}
	cfg.Chain.BlockTimeSeconds = 2
	cfg.Payment.PayoutToleranceMicro = 100
	cfg.Payment.PayoutScanBuffer = 1000
	return cfg
}

func TestFinalizeSettlementsNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewReconcileLogic(db, &fakeReader{}, reconcileConfig())

	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	summary, err := r.FinalizeSettlements(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &FinalizeSummary{}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeSettlementsOnlySelectsExpiredDeadlines(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewReconcileLogic(db, &fakeReader{}, reconcileConfig())

	// 查询谓词限定preconfirmed且复核截止时间已过，
	// 截止时间未到的行不进入本轮批次
	mock.ExpectQuery(`SELECT \* FROM "entitlement" WHERE confirmation_status = \$1 AND verification_deadline <= \$2`).
		WithArgs("preconfirmed", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	summary, err := r.FinalizeSettlements(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &FinalizeSummary{}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeSettlementsConfirms(t *testing.T) {
	db, mock := newMockDB(t)
	reader := &fakeReader{
		receipt: &chain.Receipt{Result: chain.ReceiptResultSuccess, BlockNumber: 100, Confirmations: 3},
	}
	r := NewReconcileLogic(db, reader, reconcileConfig())

	deadline := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "buyer_address", "is_active", "confirmation_status", "verification_deadline"}).
			AddRow(3, 1, "0xbuyer", true, "preconfirmed", deadline))

	mock.ExpectQuery(`SELECT \* FROM "transaction"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entitlement_id", "tx_hash", "status"}).
			AddRow(21, 3, "0xtx", "pending"))

	// 回执成功且深度足够：确认授权并更新交易
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "entitlement"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "transaction"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := r.FinalizeSettlements(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 0, summary.Revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeSettlementsRevokesWithoutReceipt(t *testing.T) {
	db, mock := newMockDB(t)
	reader := &fakeReader{
		receipt: &chain.Receipt{Result: chain.ReceiptResultNone},
	}
	r := NewReconcileLogic(db, reader, reconcileConfig())

	deadline := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "buyer_address", "is_active", "confirmation_status", "verification_deadline"}).
			AddRow(3, 1, "0xbuyer", true, "preconfirmed", deadline))

	mock.ExpectQuery(`SELECT \* FROM "transaction"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entitlement_id", "tx_hash", "status"}).
			AddRow(21, 3, "0xtx", "pending"))

	// 截止后仍无回执：强制撤销
	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "buyer_address", "is_active", "confirmation_status"}).
			AddRow(3, 1, "0xbuyer", true, "preconfirmed"))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "entitlement"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 回补下载计数
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "agent"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 交易置为失败
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "transaction"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := r.FinalizeSettlements(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 1, summary.Revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeSettlementsCountsRPCErrors(t *testing.T) {
	db, mock := newMockDB(t)
	reader := &fakeReader{receiptErr: assert.AnError}
	r := NewReconcileLogic(db, reader, reconcileConfig())

	deadline := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "entitlement"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "buyer_address", "is_active", "confirmation_status", "verification_deadline"}).
			AddRow(3, 1, "0xbuyer", true, "preconfirmed", deadline))

	mock.ExpectQuery(`SELECT \* FROM "transaction"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entitlement_id", "tx_hash", "status"}).
			AddRow(21, 3, "0xtx", "pending"))

	// 瞬时RPC错误只计数，留给下一轮，行保持不变
	summary, err := r.FinalizeSettlements(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePayoutsMatchesAndCompletesDistribution(t *testing.T) {
	db, mock := newMockDB(t)
	reader := &fakeReader{
		latest: 100_000,
		events: []chain.TransferEvent{
			{To: "0xaddr1", ValueMicro: 8_000_000, TxHash: "0xPay1", BlockNumber: 99_990},
		},
	}
	r := NewReconcileLogic(db, reader, reconcileConfig())

	created := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "earn_distribution_share"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "distribution_id", "publisher_id", "earn_micro", "payout_address", "payout_status"}).
			AddRow(1, created, 7, 1, 8_000_000, "0xAddr1", "pending"))

	// 命中的份额标记为已打款
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "earn_distribution_share"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 该分配期已无待打款份额，父记录同步置为paid
	mock.ExpectQuery(`SELECT count\(\*\) FROM "earn_distribution_share"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "earn_distribution"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := r.ReconcilePayouts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.DistributionsPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePayoutsNoPending(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewReconcileLogic(db, &fakeReader{}, reconcileConfig())

	mock.ExpectQuery(`SELECT \* FROM "earn_distribution_share"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	summary, err := r.ReconcilePayouts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &PayoutSummary{}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}
