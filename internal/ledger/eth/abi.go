package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// matchmakerABI is the client-facing surface of the Matchmaker contract. Only
// the functions the orchestrator calls are declared.
const matchmakerABI = `[
	{"type":"function","name":"createMatch","stateMutability":"nonpayable",
		"inputs":[{"name":"nftContract","type":"address"},{"name":"nftTokenId","type":"uint256"},{"name":"commitHash","type":"bytes32"}],
		"outputs":[{"name":"matchId","type":"uint256"}]},
	{"type":"function","name":"joinMatch","stateMutability":"nonpayable",
		"inputs":[{"name":"matchId","type":"uint256"},{"name":"nftContract","type":"address"},{"name":"nftTokenId","type":"uint256"},{"name":"commitHash","type":"bytes32"}],
		"outputs":[]},
	{"type":"function","name":"startMatch","stateMutability":"nonpayable",
		"inputs":[{"name":"matchId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"revealAndSettle","stateMutability":"nonpayable",
		"inputs":[{"name":"matchId","type":"uint256"},{"name":"assets","type":"bytes32[]"},{"name":"roles","type":"uint8[]"},{"name":"saltHash","type":"bytes32"}],
		"outputs":[]},
	{"type":"function","name":"cancelMatch","stateMutability":"nonpayable",
		"inputs":[{"name":"matchId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"clearStuckMatch","stateMutability":"nonpayable",
		"inputs":[],
		"outputs":[]},
	{"type":"function","name":"forceExpireMatch","stateMutability":"nonpayable",
		"inputs":[{"name":"matchId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"getMatch","stateMutability":"view",
		"inputs":[{"name":"matchId","type":"uint256"}],
		"outputs":[{"name":"m","type":"tuple","components":[
			{"name":"id","type":"uint256"},
			{"name":"state","type":"uint8"},
			{"name":"createdAt","type":"uint256"},
			{"name":"startTime","type":"uint256"},
			{"name":"player1","type":"tuple","components":[
				{"name":"addr","type":"address"},
				{"name":"nftContract","type":"address"},
				{"name":"nftTokenId","type":"uint256"},
				{"name":"commitHash","type":"bytes32"},
				{"name":"committed","type":"bool"},
				{"name":"revealed","type":"bool"}]},
			{"name":"player2","type":"tuple","components":[
				{"name":"addr","type":"address"},
				{"name":"nftContract","type":"address"},
				{"name":"nftTokenId","type":"uint256"},
				{"name":"commitHash","type":"bytes32"},
				{"name":"committed","type":"bool"},
				{"name":"revealed","type":"bool"}]}]}]},
	{"type":"function","name":"getPlayerActiveMatch","stateMutability":"view",
		"inputs":[{"name":"player","type":"address"}],
		"outputs":[{"name":"matchId","type":"uint256"}]}
]`

// erc721ABI covers the single call the orchestrator makes against the stake
// token contract: approving the NFT vault before create/join.
const erc721ABI = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
		"inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
		"outputs":[]}
]`

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("eth: parsing ABI: " + err.Error())
	}
	return parsed
}

var (
	matchmaker = mustParseABI(matchmakerABI)
	erc721     = mustParseABI(erc721ABI)
)
