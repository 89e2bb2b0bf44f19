// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes cardsmith tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/export"
	"github.com/starford/cardsmith/internal/markup"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/session"
	"github.com/starford/cardsmith/internal/storage"
)

const contractURI = "cardsmith://markup"

// Server wraps the MCP server with cardsmith tools.
type Server struct {
	mcp      *server.MCPServer
	session  *session.Session
	exporter *export.Exporter
	store    storage.Provider
	resolver *assets.Resolver
}

// New creates a new MCP server with all cardsmith tools registered.
// store and resolver may be nil, which disables upload_asset.
func New(sess *session.Session, exporter *export.Exporter, store storage.Provider, resolver *assets.Resolver, version string) *Server {
	s := &Server{session: sess, exporter: exporter, store: store, resolver: resolver}

	s.mcp = server.NewMCPServer(
		"Cardsmith",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("parse_markup",
		mcp.WithDescription("Parse message markup into styled runs without changing the card."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text using {highlight A} and [highlight B]")),
	), s.parseMarkup)

	s.mcp.AddTool(mcp.NewTool("get_card",
		mcp.WithDescription("Return the current card, its revision and the parsed message runs."),
	), s.getCard)

	s.mcp.AddTool(mcp.NewTool("update_card",
		mcp.WithDescription("Change card fields. Omitted fields keep their value. "+
			"Read the contract first via get_markup_contract or the cardsmith://markup resource."),
		mcp.WithString("display_name", mcp.Description("Author name shown in the header")),
		mcp.WithString("avatar", mcp.Description("Avatar image source")),
		mcp.WithString("background", mcp.Description("Background image source")),
		mcp.WithString("message", mcp.Description("Message body in card markup")),
		mcp.WithString("likes", mcp.Description("Like count label")),
		mcp.WithString("comments", mcp.Description("Comment count label")),
		mcp.WithBoolean("verified", mcp.Description("Show the verified badge")),
		mcp.WithArray("trophies", mcp.Description("Trophy image sources"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("if_match", mcp.Description("Revision from get_card; the update fails if the card changed since")),
	), s.updateCard)

	s.mcp.AddTool(mcp.NewTool("export_still",
		mcp.WithDescription("Render the card to a 3x PNG."),
	), s.exportStill)

	s.mcp.AddTool(mcp.NewTool("export_animated",
		mcp.WithDescription("Render the card to a looping animated GIF."),
		mcp.WithNumber("frames", mcp.Description("Frame count (default 10)")),
		mcp.WithNumber("frame_delay_ms", mcp.Description("Delay between frames in milliseconds (default 100)")),
	), s.exportAnimated)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image from a URL or data URI and return an /assets/ source for card fields."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64 URI")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the card markup and field contract. "+
			"Call this before updating cards to ensure correct structure."),
	), s.getMarkupContract)

	// Resource: markup contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Card Markup Contract",
			mcp.WithResourceDescription("Message markup and card fields understood by the renderer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type cardResult struct {
	Card     models.Card      `json:"card"`
	Revision string           `json:"revision"`
	Runs     []models.TextRun `json:"runs"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) parseMarkup(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(markup.Parse(text)), nil
}

func (s *Server) getCard(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, rev := s.session.Card()
	return jsonResult(cardResult{Card: card, Revision: rev, Runs: markup.Parse(card.Message)}), nil
}

func (s *Server) updateCard(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, _ := s.session.Card()
	if err := applyArgs(&card, req.GetArguments()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ifMatch := req.GetString("if_match", "")
	if _, err := s.session.Update(card, ifMatch); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return mcp.NewToolResultError("card changed since if_match revision; call get_card and retry"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.getCard(context.Background(), req)
}

// applyArgs copies the supplied tool arguments onto card.
func applyArgs(card *models.Card, args map[string]any) error {
	strFields := map[string]*string{
		"display_name": &card.DisplayName,
		"avatar":       &card.Avatar,
		"background":   &card.Background,
		"message":      &card.Message,
		"likes":        &card.Likes,
		"comments":     &card.Comments,
	}
	for key, dst := range strFields {
		v, ok := args[key]
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}
		*dst = str
	}
	if v, ok := args["verified"]; ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("verified must be a boolean")
		}
		card.Verified = b
	}
	if v, ok := args["trophies"]; ok {
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("trophies must be an array of strings")
		}
		trophies := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("trophies must be an array of strings")
			}
			trophies = append(trophies, str)
		}
		card.Trophies = trophies
	}
	return nil
}

func (s *Server) exportStill(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	art, err := s.exporter.Still(ctx)
	return artifactResult(art, err), nil
}

func (s *Server) exportAnimated(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := s.exporter.AnimatedOptions()
	opts.Frames = req.GetInt("frames", opts.Frames)
	if ms := req.GetInt("frame_delay_ms", -1); ms >= 0 {
		opts.FrameDelay = time.Duration(ms) * time.Millisecond
	}
	art, err := s.exporter.AnimatedWith(ctx, opts)
	return artifactResult(art, err), nil
}

func artifactResult(art *models.Artifact, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return mcp.NewToolResultError(err.Error())
	case err != nil:
		return mcp.NewToolResultError(export.UserMessage(err))
	case art == nil:
		return mcp.NewToolResultText("nothing to export: no card is mounted")
	}
	detail := fmt.Sprintf("%s (%d bytes, %d frames)", art.Name, len(art.Data), art.Frames)
	return mcp.NewToolResultImage(detail, base64.StdEncoding.EncodeToString(art.Data), art.MIMEType)
}

type uploadResult struct {
	Source string `json:"source"`
	Size   int    `json:"size"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.store == nil || s.resolver == nil {
		return mcp.NewToolResultError("asset uploads are not configured"), nil
	}

	data, err := s.resolver.Download(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ext, ok := storage.SniffExtension(data)
	if !ok {
		return mcp.NewToolResultError("unsupported image type (allowed: png, jpg, gif, webp)"), nil
	}
	if _, err := assets.Decode(data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := uuid.NewString() + ext
	if err := s.store.Write(name, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save asset: %v", err)), nil
	}
	return jsonResult(uploadResult{Source: assets.AssetPrefix + name, Size: len(data)}), nil
}

func (s *Server) getMarkupContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MarkupContract,
		},
	}, nil
}
