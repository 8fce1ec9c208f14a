package stream

// Filter is the subscription filter: watched program id set,
// exclusion set, commitment level, and a failed=false gate, carried as
// plain JSON over the websocket connection (a stand-in for the real
// Dragon's Mouth gRPC proto, which this module does not vendor).
type Filter struct {
	AccountInclude []string `json:"account_include"`
	AccountExclude []string `json:"account_exclude"`
	Commitment     string   `json:"commitment"`
	Failed         bool     `json:"failed"`
	Vote           *bool    `json:"vote"`
}

// SubscribeRequest is sent once, immediately after connecting.
type SubscribeRequest struct {
	Transactions map[string]Filter `json:"transactions"`
}

// RawTx is the wire shape of a transaction update.
type RawTx struct {
	Signature         string             `json:"signature"`
	Slot              uint64             `json:"slot"`
	RecentBlockhash   string             `json:"recent_blockhash"`
	AccountKeys       []string           `json:"account_keys"`
	PreBalances       []int64            `json:"pre_balances"`
	PostBalances      []int64            `json:"post_balances"`
	LogMessages       []string           `json:"log_messages"`
	Instructions      []RawInstruction   `json:"instructions"`
	PostTokenBalances []RawTokenBalance  `json:"post_token_balances"`
}

type RawInstruction struct {
	ProgramID      string `json:"program_id"`
	AccountIndexes []int  `json:"account_indexes"`
}

// RawTokenBalance is one post_token_balances entry: the account index
// it was observed at, the owning wallet, and its UI token amount.
type RawTokenBalance struct {
	AccountIndex int     `json:"account_index"`
	Owner        string  `json:"owner"`
	UIAmount     float64 `json:"ui_amount"`
}

// Update is the discriminated union the upstream sends: exactly one
// of Transaction/Ping/Pong is populated.
type Update struct {
	Transaction *RawTx `json:"transaction,omitempty"`
	Ping        *Ping  `json:"ping,omitempty"`
	Pong        *Ping  `json:"pong,omitempty"`
}

// Ping carries a correlation id; requests use body {id: 1} per spec.
type Ping struct {
	ID int `json:"id"`
}
