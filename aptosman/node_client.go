package aptosman

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/TEENet-io/bridge-client-aptos/httpclient"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

// NodeClient reads from the aptos node REST api.
type NodeClient struct {
	http *httpclient.Client
}

var _ bridgeevent.TxResolver = (*NodeClient)(nil)

// NewNodeClient 创建REST客户端. nodeURL 需包含 /v1 前缀.
func NewNodeClient(nodeURL, apiKey string) (*NodeClient, error) {
	headers := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	client, err := httpclient.New(nodeURL, httpclient.Config{
		Debug:   logger.IsLevelEnabled(logger.DebugLevel),
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	return &NodeClient{http: client}, nil
}

// LedgerInfo 获取链的最新状态
func (c *NodeClient) LedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	var info LedgerInfo
	if err := c.http.GetJSON(ctx, "/", nil, &info); err != nil {
		return nil, errors.Wrap(err, "get ledger info")
	}
	return &info, nil
}

// LatestVersion is the current ledger version of the node.
func (c *NodeClient) LatestVersion(ctx context.Context) (uint64, error) {
	info, err := c.LedgerInfo(ctx)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(info.LedgerVersion, 10, 64)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "ledger version %q", info.LedgerVersion), common.ErrDeserialization)
	}
	return v, nil
}

// EventsByHandle 获取事件句柄中的事件.
// start == nil 从头开始, limit == 0 使用服务端默认页大小.
func (c *NodeClient) EventsByHandle(ctx context.Context, account, handleStruct, field string, start *uint64, limit uint64) ([]Event, error) {
	query := url.Values{}
	if start != nil {
		query.Set("start", strconv.FormatUint(*start, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.FormatUint(limit, 10))
	}
	path := fmt.Sprintf("/accounts/%s/events/%s/%s", account, handleStruct, field)

	var events []Event
	if err := c.http.GetJSON(ctx, path, query, &events); err != nil {
		return nil, errors.Wrapf(err, "get events %s/%s", handleStruct, field)
	}
	return events, nil
}

func (c *NodeClient) TransactionByVersion(ctx context.Context, version uint64) (*Transaction, error) {
	var tx Transaction
	if err := c.http.GetJSON(ctx, "/transactions/by_version/"+strconv.FormatUint(version, 10), nil, &tx); err != nil {
		return nil, errors.Wrapf(err, "get transaction at version %d", version)
	}
	return &tx, nil
}

func (c *NodeClient) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	if err := c.http.GetJSON(ctx, "/transactions/by_hash/"+common.Prepend0xPrefix(hash), nil, &tx); err != nil {
		return nil, errors.Wrapf(err, "get transaction %s", hash)
	}
	return &tx, nil
}

// ResolveTransaction maps a ledger version to its hash and timestamp.
func (c *NodeClient) ResolveTransaction(ctx context.Context, version uint64) (*bridgeevent.TxInfo, error) {
	tx, err := c.TransactionByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	return &bridgeevent.TxInfo{
		Version:   version,
		Hash:      tx.Hash,
		Timestamp: bridgeevent.ParseTimestamp(tx.Timestamp),
	}, nil
}

type viewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// View 调用只读视图函数. function 为 "<addr>::<module>::<name>",
// u64 参数需以十进制字符串传入.
func (c *NodeClient) View(ctx context.Context, function string, typeArgs []string, args []any) ([]any, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	var out []any
	err := c.http.PostJSON(ctx, "/view", viewRequest{
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}, nil, &out)
	if err != nil {
		return nil, errors.Wrapf(err, "view %s", function)
	}
	return out, nil
}

// rawEvent converts a REST event into a decoder record.
func rawEvent(ev *Event, txHash *string, timestamp any) (*bridgeevent.RawRecord, error) {
	rec := &bridgeevent.RawRecord{
		Type:            ev.Type,
		TransactionHash: txHash,
		Timestamp:       timestamp,
	}
	if ev.Version != "" {
		v, err := strconv.ParseUint(ev.Version, 10, 64)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "event version %q", ev.Version), common.ErrDeserialization)
		}
		rec.Version = &v
	}
	if ev.SequenceNumber != "" {
		seq, err := strconv.ParseUint(ev.SequenceNumber, 10, 64)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "event sequence number %q", ev.SequenceNumber), common.ErrDeserialization)
		}
		rec.SequenceNumber = &seq
	}
	if len(ev.Data) > 0 {
		// non-object payloads stay nil, the decoder rejects them per policy
		var data map[string]any
		if err := json.Unmarshal(ev.Data, &data); err == nil {
			rec.Data = data
		}
	}
	return rec, nil
}

// RawEvents converts REST events into decoder records.
func RawEvents(events []Event) ([]*bridgeevent.RawRecord, error) {
	recs := make([]*bridgeevent.RawRecord, 0, len(events))
	for i := range events {
		rec, err := rawEvent(&events[i], nil, nil)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
