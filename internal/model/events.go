package model

// TransferEventData is the decoded ERC20 Transfer payload of a pair's LP token.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// PairCreatedEventData is the decoded factory PairCreated payload.
type PairCreatedEventData struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Pair   string `json:"pair"`
}

// Event names routed by the mappings.
const (
	EventTransfer    = "Transfer"
	EventPairCreated = "PairCreated"
)
