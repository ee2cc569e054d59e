package notifier

import (
	"context"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

// LogNotifier records settlements in the application log. Provider callbacks
// plug in behind the same interface.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Released(_ context.Context, account domain.EscrowAccount, tx domain.EscrowTransaction) error {
	logger.Info("settlement released", logger.Fields{
		"transactionId":   tx.ID,
		"reference":       tx.Reference,
		"accountId":       account.ID,
		"userId":          account.UserID,
		"provider":        account.Provider,
		"walletAccountId": account.WalletAccountID,
		"netAmount":       tx.NetAmount,
		"feeAmount":       tx.FeeAmount,
		"currency":        tx.Currency,
	})
	return nil
}
