// Package pb holds the fundengine.v1 wire messages and service descriptor.
// Messages travel as JSON through the codec registered under CodecName, so
// the server does not accept protobuf-encoded calls. Clients must dial with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)) or pass
// grpc.CallContentSubtype("json") on each call; NewFundServiceClient does
// this for every method.
package pb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type SubscribeRequest struct {
	FundId string `json:"fund_id,omitempty"`
	// Amount is a decimal string in major units, e.g. "750.00".
	Amount string `json:"amount,omitempty"`
}

func (x *SubscribeRequest) GetFundId() string {
	if x != nil {
		return x.FundId
	}
	return ""
}

func (x *SubscribeRequest) GetAmount() string {
	if x != nil {
		return x.Amount
	}
	return ""
}

type CancelRequest struct {
	FundId string `json:"fund_id,omitempty"`
}

func (x *CancelRequest) GetFundId() string {
	if x != nil {
		return x.FundId
	}
	return ""
}

type TransactionResponse struct {
	TransactionId string `json:"transaction_id,omitempty"`
	AccountId     string `json:"account_id,omitempty"`
	FundId        string `json:"fund_id,omitempty"`
	FundName      string `json:"fund_name,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Amount        string `json:"amount,omitempty"`
	BalanceBefore string `json:"balance_before,omitempty"`
	BalanceAfter  string `json:"balance_after,omitempty"`
	Status        string `json:"status,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type GetBalanceRequest struct{}

type SubscriptionInfo struct {
	FundId       string `json:"fund_id,omitempty"`
	FundName     string `json:"fund_name,omitempty"`
	Amount       string `json:"amount,omitempty"`
	SubscribedAt string `json:"subscribed_at,omitempty"`
}

type BalanceResponse struct {
	AccountId     string              `json:"account_id,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Balance       string              `json:"balance,omitempty"`
	TotalInvested string              `json:"total_invested,omitempty"`
	Subscriptions []*SubscriptionInfo `json:"subscriptions,omitempty"`
}

type ListTransactionsRequest struct{}

type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions,omitempty"`
}

type ListFundsRequest struct{}

type Fund struct {
	Id                string `json:"id,omitempty"`
	Name              string `json:"name,omitempty"`
	MinimumInvestment string `json:"minimum_investment,omitempty"`
	Category          string `json:"category,omitempty"`
}

type ListFundsResponse struct {
	Funds []*Fund `json:"funds,omitempty"`
}
