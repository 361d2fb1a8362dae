package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// HeaderSource retrieves chain tip and headers. The watcher, the backfill
// job, and tests each supply their own implementation.
type HeaderSource interface {
	TipNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number uint64) (Header, error)
}

// RPCOptions parameterise the RPC-backed header source.
type RPCOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// RPCSource reads headers over Ethereum JSON-RPC. The client is dialled
// lazily on first use.
type RPCSource struct {
	opts      RPCOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewRPCSource builds a header source against a JSON-RPC endpoint.
func NewRPCSource(opts RPCOptions, logger zerolog.Logger) *RPCSource {
	return &RPCSource{opts: opts, logger: logger.With().Str("component", "rpc_source").Logger()}
}

// TipNumber returns the current chain tip height.
func (s *RPCSource) TipNumber(ctx context.Context) (uint64, error) {
	if s.opts.RPCURL == "" {
		return 0, errors.New("chain rpc url not configured")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	client, err := s.getClient(ctx)
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}

// HeaderByNumber fetches one header by height.
func (s *RPCSource) HeaderByNumber(ctx context.Context, number uint64) (Header, error) {
	if s.opts.RPCURL == "" {
		return Header{}, errors.New("chain rpc url not configured")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	client, err := s.getClient(ctx)
	if err != nil {
		return Header{}, err
	}

	header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return Header{}, err
	}

	return Header{
		Number: header.Number.Uint64(),
		Hash:   header.Hash().Hex(),
		Time:   time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}

func (s *RPCSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *RPCSource) getClient(ctx context.Context) (*ethclient.Client, error) {
	s.clientMux.Lock()
	defer s.clientMux.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client, err := ethclient.DialContext(ctx, s.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

var _ HeaderSource = (*RPCSource)(nil)
