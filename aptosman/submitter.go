package aptosman

import (
	"context"
	"strings"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/cockroachdb/errors"
)

const waitPollPeriod = 500 * time.Millisecond

// sdkSubmitter signs with a local account and submits through the SDK.
type sdkSubmitter struct {
	client  *aptos.Client
	account *aptos.Account
	timeout time.Duration
}

func (s *sdkSubmitter) Sender() aptos.AccountAddress {
	return s.account.AccountAddress()
}

func (s *sdkSubmitter) Submit(ctx context.Context, payload aptos.TransactionPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rawTxn, err := s.client.BuildTransaction(s.account.AccountAddress(), payload)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "build transaction"), common.ErrNetwork)
	}
	signedTxn, err := rawTxn.SignedTransaction(s.account)
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}
	submitResult, err := s.client.SubmitTransaction(signedTxn)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "submit transaction"), common.ErrNetwork)
	}
	return submitResult.Hash, nil
}

func (s *sdkSubmitter) Wait(ctx context.Context, hash string) (*TransactionStatus, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	tx, err := s.client.WaitForTransaction(hash, waitPollPeriod, timeout)
	if err != nil {
		if strings.Contains(err.Error(), "timeout") {
			return &TransactionStatus{Hash: hash, State: TxPending}, nil
		}
		return nil, errors.Mark(errors.Wrap(err, "wait for transaction"), common.ErrNetwork)
	}
	version := tx.Version
	st := &TransactionStatus{Hash: hash, Version: &version, VmStatus: tx.VmStatus, State: TxFailed}
	if tx.Success {
		st.State = TxSuccess
	}
	return st, nil
}
