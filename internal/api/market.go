package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Marketplace domain endpoints. These are pass-through calls: the client
// shapes requests and unwraps envelopes, nothing more.

// SearchCollections searches collections by free-text query.
func (c *Client) SearchCollections(ctx context.Context, query string, limit int) ([]Collection, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return Do[[]Collection](ctx, c, "/collections", RequestOptions{Query: q})
}

// GetCollection fetches one collection by id or slug.
func (c *Client) GetCollection(ctx context.Context, id string) (Collection, error) {
	return Do[Collection](ctx, c, "/collections/"+url.PathEscape(id), RequestOptions{})
}

// ListItems fetches items in a collection.
func (c *Client) ListItems(ctx context.Context, collectionID string, limit int) ([]Item, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return Do[[]Item](ctx, c, "/collections/"+url.PathEscape(collectionID)+"/items", RequestOptions{Query: q})
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	return Do[Item](ctx, c, "/items/"+url.PathEscape(id), RequestOptions{})
}

// GetKiosks lists the kiosks owned by a wallet.
func (c *Client) GetKiosks(ctx context.Context, owner string) ([]Kiosk, error) {
	q := url.Values{}
	q.Set("owner", owner)
	return Do[[]Kiosk](ctx, c, "/kiosks", RequestOptions{Query: q})
}

// ListingRequest asks the marketplace to prepare a listing transaction.
type ListingRequest struct {
	ItemID  string `json:"itemId"`
	Price   string `json:"price"`
	KioskID string `json:"kioskId,omitempty"`
}

// PrepareListing returns an unsigned listing transaction.
func (c *Client) PrepareListing(ctx context.Context, req ListingRequest) (TxResponse, error) {
	return Do[TxResponse](ctx, c, "/listings/prepare", RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	})
}

// PrepareBuy returns an unsigned purchase transaction for a listed item.
func (c *Client) PrepareBuy(ctx context.Context, itemID string) (TxResponse, error) {
	return Do[TxResponse](ctx, c, "/purchases/prepare", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"itemId": itemID},
	})
}

// PrepareDelist returns an unsigned delisting transaction.
func (c *Client) PrepareDelist(ctx context.Context, itemID string) (TxResponse, error) {
	return Do[TxResponse](ctx, c, "/listings/delist/prepare", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"itemId": itemID},
	})
}

// ExecuteTransaction submits a signed transaction by its prepare-step txId.
func (c *Client) ExecuteTransaction(ctx context.Context, txID, signature string) (ExecuteResponse, error) {
	return Do[ExecuteResponse](ctx, c, "/transactions/execute", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"txId": txID, "signature": signature},
	})
}

// UploadMedia uploads a media file for use in listings.
func (c *Client) UploadMedia(ctx context.Context, fileName string, content []byte) (MediaUpload, error) {
	return Do[MediaUpload](ctx, c, "/media", RequestOptions{
		Method: http.MethodPost,
		Multipart: &MultipartPayload{
			FieldName: "file",
			FileName:  fileName,
			Content:   content,
		},
	})
}
