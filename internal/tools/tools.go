// Package tools exposes the marketplace as MCP tool calls. Each tool is
// thin glue: shape the request, call the API client, and for transaction
// tools run the prepare/sign/execute sequence with the session's signer.
package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/portside-labs/portside-mcp/internal/api"
	"github.com/portside-labs/portside-mcp/internal/log"
	"github.com/portside-labs/portside-mcp/internal/session"
)

// Registry wires the API client and session into tool handlers.
type Registry struct {
	client  *api.Client
	session *session.Session
}

// NewServer builds the MCP server with the full tool surface registered.
func NewServer(client *api.Client, sess *session.Session, version string) *server.MCPServer {
	r := &Registry{client: client, session: sess}

	s := server.NewMCPServer("portside-mcp", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("wallet_address",
		mcp.WithDescription("Return the wallet address this agent is signed in as."),
	), r.walletAddress)

	s.AddTool(mcp.NewTool("search_collections",
		mcp.WithDescription("Search marketplace collections by name."),
		mcp.WithString("query", mcp.Description("Free-text search query.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20).")),
	), r.searchCollections)

	s.AddTool(mcp.NewTool("get_collection",
		mcp.WithDescription("Fetch one collection by id or slug."),
		mcp.WithString("collection_id", mcp.Required(), mcp.Description("Collection id or slug.")),
	), r.getCollection)

	s.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List items in a collection."),
		mcp.WithString("collection_id", mcp.Required(), mcp.Description("Collection id or slug.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20).")),
	), r.listItems)

	s.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Fetch one marketplace item."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id.")),
	), r.getItem)

	s.AddTool(mcp.NewTool("get_kiosks",
		mcp.WithDescription("List the kiosks owned by the signed-in wallet."),
	), r.getKiosks)

	s.AddTool(mcp.NewTool("list_item",
		mcp.WithDescription("List an owned item for sale. Prepares, signs and executes the listing transaction."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id to list.")),
		mcp.WithString("price", mcp.Required(), mcp.Description("Listing price in the chain's base token.")),
		mcp.WithString("kiosk_id", mcp.Description("Kiosk to list from; defaults to the wallet's kiosk.")),
	), r.listItem)

	s.AddTool(mcp.NewTool("buy_item",
		mcp.WithDescription("Buy a listed item. Prepares, signs and executes the purchase transaction."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Listed item id.")),
	), r.buyItem)

	s.AddTool(mcp.NewTool("delist_item",
		mcp.WithDescription("Remove an item listing. Prepares, signs and executes the delist transaction."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Listed item id.")),
	), r.delistItem)

	s.AddTool(mcp.NewTool("upload_media",
		mcp.WithDescription("Upload a media file (base64-encoded) for use in listings."),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("File name including extension.")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Base64-encoded file content.")),
	), r.uploadMedia)

	return s
}

func (r *Registry) walletAddress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := r.session.EnsureInit(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(r.session.Signer().Address()), nil
}

func (r *Registry) searchCollections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	limit := request.GetInt("limit", 20)
	collections, err := r.client.SearchCollections(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(collections)
}

func (r *Registry) getCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("collection_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	collection, err := r.client.GetCollection(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(collection)
}

func (r *Registry) listItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("collection_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := r.client.ListItems(ctx, id, request.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (r *Registry) getItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := r.client.GetItem(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (r *Registry) getKiosks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := r.session.EnsureInit(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kiosks, err := r.client.GetKiosks(ctx, r.session.Signer().Address())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(kiosks)
}

func (r *Registry) listItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := request.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	price, err := request.RequireString("price")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tx, err := r.client.PrepareListing(ctx, api.ListingRequest{
		ItemID:  itemID,
		Price:   price,
		KioskID: request.GetString("kiosk_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return r.signAndExecute(ctx, tx)
}

func (r *Registry) buyItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := request.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tx, err := r.client.PrepareBuy(ctx, itemID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return r.signAndExecute(ctx, tx)
}

func (r *Registry) delistItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := request.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tx, err := r.client.PrepareDelist(ctx, itemID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return r.signAndExecute(ctx, tx)
}

func (r *Registry) uploadMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content is not valid base64: %v", err)), nil
	}
	upload, err := r.client.UploadMedia(ctx, fileName, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(upload)
}

// signAndExecute completes a prepared transaction: decode the opaque
// transaction bytes, sign them with the session signer and submit the
// signature with the prepare-step txId.
func (r *Registry) signAndExecute(ctx context.Context, tx api.TxResponse) (*mcp.CallToolResult, error) {
	// The prepare call already forced session init through the client
	// hooks, so a signer is guaranteed here.
	sgn := r.session.Signer()
	if sgn == nil {
		return mcp.NewToolResultError("no active session signer"), nil
	}

	txBytes, err := base64.StdEncoding.DecodeString(tx.TxBytes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marketplace returned invalid transaction bytes: %v", err)), nil
	}

	signature, err := sgn.SignTransaction(txBytes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to sign transaction: %v", err)), nil
	}

	log.LogInfoWithFields("tools", "Executing signed transaction", map[string]any{
		"txId": tx.TxID,
		"cost": tx.Cost + " " + tx.CostTokenSymbol,
	})

	result, err := r.client.ExecuteTransaction(ctx, tx.TxID, signature)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
