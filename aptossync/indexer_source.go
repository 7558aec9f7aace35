package aptossync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/TEENet-io/bridge-client-aptos/httpclient"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	logger "github.com/sirupsen/logrus"
)

// VersionOracle reports the newest version that is safe to query up to.
type VersionOracle interface {
	LatestVersion(ctx context.Context) (uint64, error)
}

type indexerTable struct {
	kind   agreement.EventKind
	name   string
	fields []string
}

var (
	mintTable = indexerTable{
		kind:   agreement.KindMint,
		name:   "bridge_mint_events",
		fields: []string{"amount", "btc_block_num", "btc_tx_id", "timestamp", "to_address", "version"},
	}
	burnTable = indexerTable{
		kind:   agreement.KindBurn,
		name:   "bridge_burn_events",
		fields: []string{"amount", "btc_address", "fee_rate", "from", "operator_id", "timestamp", "version"},
	}
	withdrawByLPTable = indexerTable{
		kind:   agreement.KindWithdrawByLP,
		name:   "bridge_withdraw_by_lp_events",
		fields: []string{"amount", "btc_address", "fee_rate", "from", "lp_id", "receive_min_amount", "timestamp", "version", "withdraw_id"},
	}
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

// IndexerSource reads bridge events from the indexer GraphQL api. Its
// cursor is a single ledger version.
type IndexerSource struct {
	cfg        IndexerSourceConfig
	http       *httpclient.Client
	decoder    *bridgeevent.Decoder
	normalizer *bridgeevent.Normalizer
	oracle     VersionOracle
	tables     []indexerTable
}

var _ chainsync.EventSource = (*IndexerSource)(nil)

// NewIndexerSource creates the source. oracle is required when
// cfg.BatchSize > 0.
func NewIndexerSource(cfg IndexerSourceConfig, decoder *bridgeevent.Decoder, normalizer *bridgeevent.Normalizer, oracle VersionOracle) (*IndexerSource, error) {
	if decoder == nil {
		return nil, errors.New("indexer source needs a decoder")
	}
	if cfg.URL == "" {
		return nil, errors.Wrap(common.ErrConfig, "indexer url is required")
	}
	if cfg.BatchSize > 0 && oracle == nil {
		return nil, errors.Wrap(common.ErrConfig, "bounded indexer fetch needs a version oracle")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultIndexerSourceName
	}
	if normalizer == nil {
		normalizer = bridgeevent.NewNormalizer(nil)
	}

	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	client, err := httpclient.New(cfg.URL, httpclient.Config{
		Debug:   logger.IsLevelEnabled(logger.DebugLevel),
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	tables := []indexerTable{burnTable, mintTable}
	if cfg.IncludeWithdrawByLP {
		tables = append(tables, withdrawByLPTable)
	}
	return &IndexerSource{
		cfg:        cfg,
		http:       client,
		decoder:    decoder,
		normalizer: normalizer,
		oracle:     oracle,
		tables:     tables,
	}, nil
}

func (s *IndexerSource) Name() string {
	return s.cfg.Name
}

// buildQuery renders the events query, bounded above when bounded is set.
func (s *IndexerSource) buildQuery(bounded bool) string {
	var b strings.Builder
	b.WriteString("query GetBridgeEvents($startVersion: numeric!")
	where := "{version: {_gt: $startVersion}}"
	if bounded {
		b.WriteString(", $endVersion: numeric!")
		where = "{version: {_gt: $startVersion, _lte: $endVersion}}"
	}
	b.WriteString(") {\n")
	for _, t := range s.tables {
		b.WriteString("  " + t.name + "(where: " + where + ", order_by: {version: asc}) {\n")
		b.WriteString("    " + strings.Join(t.fields, "\n    ") + "\n  }\n")
	}
	b.WriteString("}")
	return b.String()
}

func (s *IndexerSource) FetchSince(ctx context.Context, cursor chainsync.Cursor) (*chainsync.Batch, error) {
	from := cursor.Get(IndexerStream).Version
	variables := map[string]any{"startVersion": from}

	bounded := s.cfg.BatchSize > 0
	var end uint64
	if bounded {
		latest, err := s.oracle.LatestVersion(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "get latest version")
		}
		end = min(from+s.cfg.BatchSize, latest)
		if end <= from {
			return &chainsync.Batch{Next: cursor.Clone()}, nil
		}
		variables["endVersion"] = end
	}

	data, err := s.query(ctx, graphQLRequest{Query: s.buildQuery(bounded), Variables: variables})
	if err != nil {
		return nil, err
	}

	var recs []*bridgeevent.RawRecord
	for _, t := range s.tables {
		rows, err := tableRows(data, t.name)
		if err != nil {
			return nil, err
		}
		tableRecs, err := s.records(t, rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, tableRecs...)
	}

	events, err := s.decoder.DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	events = s.normalizer.Normalize(ctx, events)

	next := cursor.Clone()
	newVersion := from
	if bounded {
		newVersion = end
	} else if len(recs) > 0 {
		newVersion = max(from, *lo.MaxBy(recs, func(a, b *bridgeevent.RawRecord) bool {
			return *a.Version > *b.Version
		}).Version)
	}
	if newVersion != from {
		next[IndexerStream] = chainsync.Position{Version: newVersion}
	}
	return &chainsync.Batch{Events: events, Next: next}, nil
}

func (s *IndexerSource) query(ctx context.Context, req graphQLRequest) (map[string]json.RawMessage, error) {
	var resp graphQLResponse
	if err := s.http.PostJSON(ctx, "", req, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "query indexer")
	}
	if len(resp.Errors) > 0 {
		msgs := lo.Map(resp.Errors, func(e graphQLError, _ int) string { return e.Message })
		return nil, errors.Wrapf(common.ErrDeserialization, "graphql errors: %s", strings.Join(msgs, "; "))
	}
	if resp.Data == nil {
		return nil, errors.Wrap(common.ErrDeserialization, "graphql response has no data")
	}
	return resp.Data, nil
}

func tableRows(data map[string]json.RawMessage, table string) ([]map[string]any, error) {
	raw, ok := data[table]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s rows", table), common.ErrDeserialization)
	}
	return rows, nil
}

// records turns rows into decoder input. A row without a usable version
// cannot be placed on the cursor; it fails the fetch under Strict and is
// skipped under Lenient.
func (s *IndexerSource) records(t indexerTable, rows []map[string]any) ([]*bridgeevent.RawRecord, error) {
	typeTag := s.decoder.Types().TypeTag(t.kind)
	recs := make([]*bridgeevent.RawRecord, 0, len(rows))
	for i, row := range rows {
		v, err := bridgeevent.ParseU64(row["version"])
		if err != nil {
			err = errors.Wrapf(err, "%s row %d version", t.name, i)
			if s.decoder.Policy() == bridgeevent.Strict {
				return nil, err
			}
			logger.WithError(err).Warn("skipping indexer row")
			continue
		}
		recs = append(recs, &bridgeevent.RawRecord{
			Type:      typeTag,
			Data:      row,
			Version:   agreement.Uint64Ptr(v),
			Timestamp: row["timestamp"],
		})
	}
	return recs, nil
}
