package marketplace

import "github.com/shopspring/decimal"

// Wire shapes for the three Reservoir endpoints. Every field is optional
// upstream; absent fields decode to zero values and are handled during
// normalization.

type salesResponse struct {
	Sales []saleEntry `json:"sales"`
}

type saleEntry struct {
	ID        string     `json:"id"`
	OrderHash string     `json:"orderHash"`
	OrderSide string     `json:"orderSide"`
	Token     tokenEntry `json:"token"`
	Price     priceEntry `json:"price"`
	Timestamp int64      `json:"timestamp"`
}

type tokenEntry struct {
	TokenID    string          `json:"tokenId"`
	Contract   string          `json:"contract"`
	Name       string          `json:"name"`
	Collection collectionEntry `json:"collection"`
}

type collectionEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type priceEntry struct {
	Currency struct {
		Symbol string `json:"symbol"`
	} `json:"currency"`
	Amount struct {
		Decimal decimal.Decimal `json:"decimal"`
	} `json:"amount"`
}

type activityResponse struct {
	Activities []activityEntry `json:"activities"`
}

type activityEntry struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Contract string `json:"contract"`
	Token    struct {
		TokenID   string `json:"tokenId"`
		TokenName string `json:"tokenName"`
	} `json:"token"`
	Collection struct {
		CollectionName string `json:"collectionName"`
	} `json:"collection"`
	Price priceEntry `json:"price"`
}

type fillsResponse struct {
	Fills []fillEntry `json:"fills"`
}

type fillEntry struct {
	ID             string          `json:"id"`
	OrderHash      string          `json:"orderHash"`
	Contract       string          `json:"contract"`
	TokenID        string          `json:"tokenId"`
	TokenName      string          `json:"tokenName"`
	CollectionName string          `json:"collectionName"`
	Price          decimal.Decimal `json:"price"`
	CreatedAt      string          `json:"createdAt"`
}

type tokensResponse struct {
	Tokens []struct {
		Token struct {
			Image string `json:"image"`
		} `json:"token"`
	} `json:"tokens"`
}
