// Package solanarpc is the concrete RpcClient adapter: fetching
// bonding-curve account state and the latest blockhash, by fetching an
// account via *rpc.Client and manually deserializing its byte slice
// rather than using a reflection-based binary codec.
package solanarpc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"copytrader/internal/external"
)

// Client is the engine's concrete external.RpcClient.
type Client struct {
	rpc *rpc.Client
}

func New(endpoint string) *Client {
	return &Client{rpc: rpc.New(endpoint)}
}

var _ external.RpcClient = (*Client)(nil)

// GetBondingCurveAccount derives the bonding-curve PDA for mint under
// curveProgramID, fetches its account data, and decodes the virtual
// reserves by walking a discriminator-skipped byte slice by hand.
func (c *Client) GetBondingCurveAccount(ctx context.Context, mint, curveProgramID string) (*external.BondingCurveAccount, error) {
	programID, err := solana.PublicKeyFromBase58(curveProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid curve program id: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint: %w", err)
	}

	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mintKey.Bytes()}, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bonding curve pda: %w", err)
	}

	info, err := c.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bonding curve account: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("bonding curve account not found for %s", mint)
	}

	curve, err := deserializeBondingCurve(pda.String(), info.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize bonding curve: %w", err)
	}
	return curve, nil
}

// deserializeBondingCurve skips the 8-byte anchor discriminator, then
// reads two little-endian u64 virtual reserves.
func deserializeBondingCurve(addr string, data []byte) (*external.BondingCurveAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid bonding curve data length")
	}
	data = data[8:]
	if len(data) < 16 {
		return nil, fmt.Errorf("insufficient bonding curve data")
	}

	readU64 := func(b []byte) uint64 {
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	}

	return &external.BondingCurveAccount{
		Addr:                addr,
		VirtualQuoteReserve: readU64(data[0:8]),
		VirtualBaseReserve:  readU64(data[8:16]),
	}, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return "", fmt.Errorf("empty latest blockhash response")
	}
	return out.Value.Blockhash.String(), nil
}
