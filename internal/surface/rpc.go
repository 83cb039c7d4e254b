package surface

import (
	"encoding/json"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"math/big"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
)

var (
	simulatedBalance  = big.NewInt(1e18)
	simulatedGasPrice = big.NewInt(1e9)
)

const (
	simulatedBlock = 0x10
	transferGas    = 21000
)

// rpc must be called with mu held.
func (s *Surface) rpc(req schema.RPCRequest) (interface{}, error) {
	switch req.Method {
	case schema.RPCEthChainID:
		return hexutil.EncodeUint64(uint64(s.chainID)), nil
	case schema.RPCEthBlockNumber:
		return hexutil.EncodeUint64(simulatedBlock), nil
	case schema.RPCEthGasPrice:
		return hexutil.EncodeBig(simulatedGasPrice), nil
	case schema.RPCEthEstimateGas:
		return hexutil.EncodeUint64(transferGas), nil
	case schema.RPCEthGetBalance:
		addr, err := addressParam(req.Params, 0)
		if err != nil {
			return nil, err
		}
		if addr != s.Address() {
			return hexutil.EncodeBig(new(big.Int)), nil
		}
		return hexutil.EncodeBig(simulatedBalance), nil
	case schema.RPCEthGetTransactionByHash:
		// nothing is ever mined here
		return nil, nil
	}

	if !s.connected {
		return nil, errNotLoggedIn
	}
	switch req.Method {
	case schema.RPCEthAccounts:
		return []string{s.Address().Hex()}, nil
	case schema.RPCPersonalSign:
		return s.personalSign(req.Params)
	case schema.RPCEthSendTransaction:
		data, err := json.Marshal(req.Params)
		if err != nil {
			return nil, errors.Wrap(err, "encode transaction")
		}
		return crypto.Keccak256Hash(data).Hex(), nil
	}
	return nil, errors.Errorf("Method %v is not supported", req.Method)
}

func (s *Surface) personalSign(params []interface{}) (interface{}, error) {
	if len(params) < 2 {
		return nil, errors.New("personal_sign expects message and address")
	}
	msgHex, ok := params[0].(string)
	if !ok {
		return nil, errors.New("personal_sign message must be hex")
	}
	msg, err := hexutil.Decode(msgHex)
	if err != nil {
		return nil, errors.Wrap(err, "decode personal_sign message")
	}
	addr, err := addressParam(params, 1)
	if err != nil {
		return nil, err
	}
	if addr != s.Address() {
		return nil, errors.Errorf("Unknown account %v", addr.Hex())
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func addressParam(params []interface{}, i int) (common.Address, error) {
	if len(params) <= i {
		return common.Address{}, errors.Errorf("missing param %d", i)
	}
	v, ok := params[i].(string)
	if !ok || !common.IsHexAddress(v) {
		return common.Address{}, errors.Errorf("param %d is not an address", i)
	}
	return common.HexToAddress(v), nil
}
