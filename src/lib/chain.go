package lib

import (
	"context"
	"log"
	"math/big"
	"prestar/src/config"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var chainClient *ethclient.Client

func GetChainClient() (*ethclient.Client, error) {
	if chainClient != nil {
		return chainClient, nil
	}
	client, err := ethclient.Dial(config.ChainRPCURL())
	if err != nil {
		log.Printf("[chain] Error dialing RPC node: %s\n", err.Error())
		return nil, err
	}
	chainClient = client
	return client, nil
}

// NewChainClient Replace chain client with custom implementation
func NewChainClient(c *ethclient.Client) *ethclient.Client {
	chainClient = c
	return chainClient
}

// ChainReader serves the escrow poller and the receipt check behind the
// escrow rail's authenticity step.
type ChainReader struct{}

func NewChainReader() *ChainReader {
	return &ChainReader{}
}

// ConfirmLog fetches the receipt for txHash straight from the node and
// reports whether it carries a log at the claimed index emitted by the
// escrow contract.
func (r *ChainReader) ConfirmLog(ctx context.Context, txHash string, logIndex uint, address string) (bool, error) {
	client, err := GetChainClient()
	if err != nil {
		return false, err
	}
	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return false, nil
		}
		return false, err
	}
	for _, lg := range receipt.Logs {
		if lg.Index == logIndex && strings.EqualFold(lg.Address.Hex(), address) {
			return true, nil
		}
	}
	return false, nil
}

// FilterEscrowLogs returns the escrow contract's logs in [from, to].
func (r *ChainReader) FilterEscrowLogs(ctx context.Context, from, to uint64) ([]ethtypes.Log, error) {
	client, err := GetChainClient()
	if err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{common.HexToAddress(config.EscrowContractAddress())},
	}
	return client.FilterLogs(ctx, query)
}

func (r *ChainReader) HeadBlock(ctx context.Context) (uint64, error) {
	client, err := GetChainClient()
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}
