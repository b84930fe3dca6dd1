package api

// Provider tags accepted by the login endpoint.
const (
	ProviderWallet = "WALLET"
	ProviderGoogle = "GOOGLE"
)

// SaltResponse is the per-user salt issued by the backend for zkLogin,
// together with the token claims it was derived against.
type SaltResponse struct {
	Salt     string `json:"salt"`
	Subject  string `json:"subject"`
	Audience string `json:"audience"`
	Issuer   string `json:"issuer"`
}

// TxResponse is the prepare-step output. TxBytes are opaque to the client;
// they go to the signer as-is and come back alongside the txId at execute.
type TxResponse struct {
	TxID            string `json:"txId"`
	TxBytes         string `json:"txBytes"`
	Cost            string `json:"cost"`
	CostTokenSymbol string `json:"costTokenSymbol"`
	GasBudget       string `json:"gasBudget"`
}

// ExecuteResponse is the execute-step output.
type ExecuteResponse struct {
	TxID   string `json:"txId"`
	Digest string `json:"digest"`
	Status string `json:"status"`
}

// Collection is a marketplace collection summary.
type Collection struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Supply      int    `json:"supply"`
	FloorPrice  string `json:"floorPrice"`
	Volume      string `json:"volume"`
}

// Item is a marketplace item.
type Item struct {
	ID           string `json:"id"`
	CollectionID string `json:"collectionId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	MediaURL     string `json:"mediaUrl"`
	Owner        string `json:"owner"`
	KioskID      string `json:"kioskId,omitempty"`
	ListPrice    string `json:"listPrice,omitempty"`
	Listed       bool   `json:"listed"`
}

// Kiosk is an on-chain kiosk owned by a wallet.
type Kiosk struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	ItemCount int    `json:"itemCount"`
}

// MediaUpload is the result of a media upload.
type MediaUpload struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}
