package provider

import (
	"context"
	"encoding/json"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"math/big"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
)

type UserInfo struct {
	Address common.Address `json:"address"`
	ChainID int64          `json:"chainId"`
}

// GetUserInfo returns the first account of the wallet and the current chain.
func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	raw, err := c.Request(ctx, schema.RPCRequest{Method: schema.RPCEthAccounts})
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, errors.Wrap(err, "decode eth_accounts result")
	}
	if len(accounts) == 0 {
		return nil, errors.New("wallet returned no accounts")
	}
	if !common.IsHexAddress(accounts[0]) {
		return nil, errors.Errorf("invalid account address %q", accounts[0])
	}

	raw, err = c.Request(ctx, schema.RPCRequest{Method: schema.RPCEthChainID})
	if err != nil {
		return nil, err
	}
	var chainID int64
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return nil, errors.Wrap(err, "decode eth_chainId result")
	}
	return &UserInfo{Address: common.HexToAddress(accounts[0]), ChainID: chainID}, nil
}

// GetBalance returns the balance of address in wei at the latest block.
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	raw, err := c.Request(ctx, schema.RPCRequest{
		Method: schema.RPCEthGetBalance,
		Params: []interface{}{address.Hex(), "latest"},
	})
	if err != nil {
		return nil, err
	}
	var quantity string
	if err := json.Unmarshal(raw, &quantity); err != nil {
		return nil, errors.Wrap(err, "decode eth_getBalance result")
	}
	balance, err := hexutil.DecodeBig(quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "decode balance %q", quantity)
	}
	return balance, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.Request(ctx, schema.RPCRequest{Method: schema.RPCEthBlockNumber})
	if err != nil {
		return 0, err
	}
	var quantity string
	if err := json.Unmarshal(raw, &quantity); err != nil {
		return 0, errors.Wrap(err, "decode eth_blockNumber result")
	}
	n, err := hexutil.DecodeUint64(quantity)
	if err != nil {
		return 0, errors.Wrapf(err, "decode block number %q", quantity)
	}
	return n, nil
}

// PersonalSign asks the wallet to sign message and returns the hex signature.
func (c *Client) PersonalSign(ctx context.Context, message []byte, address common.Address) (string, error) {
	raw, err := c.Request(ctx, schema.RPCRequest{
		Method: schema.RPCPersonalSign,
		Params: []interface{}{hexutil.Encode(message), address.Hex()},
	})
	if err != nil {
		return "", err
	}
	var signature string
	if err := json.Unmarshal(raw, &signature); err != nil {
		return "", errors.Wrap(err, "decode personal_sign result")
	}
	return signature, nil
}
