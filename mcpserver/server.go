package mcpserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/api"
	sippymcp "github.com/mateodaza/sippy-sub000/internal/mcp"
	"github.com/mateodaza/sippy-sub000/internal/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Backend answers the tool calls. *sippymcp.Client implements it over the
// debug API.
type Backend interface {
	Parse(ctx context.Context, text string) (*service.ResolutionView, error)
	Normalize(ctx context.Context, phone, text string) (*api.NormalizeResponse, error)
	Limits(ctx context.Context, phone string) (*service.LimitsView, error)
}

var _ Backend = (*sippymcp.Client)(nil)

// SippyMCPServer provides read-only MCP tools over the command interpreter.
// None of the tools move money or renew sessions.
type SippyMCPServer struct {
	server  *mcp.Server
	backend Backend
}

// NewServer creates a new Sippy MCP server
func NewServer(backend Backend, version string) *SippyMCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sippy-tools",
		Version: version,
	}, nil)

	s := &SippyMCPServer{
		server:  server,
		backend: backend,
	}
	s.registerTools()
	return s
}

func (s *SippyMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sippy_parse_command",
		Description: "Show how Sippy would interpret a chat message: the command, amount and recipient, whether the language model was consulted, and the verifier verdict. Nothing is executed.",
	}, s.handleParseCommand)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sippy_normalize_phone",
		Description: "Canonicalize a phone number or contact alias to the digits Sippy uses as an identity.",
	}, s.handleNormalizePhone)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sippy_check_limits",
		Description: "Get a user's session state, spend today and remaining daily allowance.",
	}, s.handleCheckLimits)
}

// ParseCommandInput is the input for sippy_parse_command
type ParseCommandInput struct {
	Text string `json:"text" jsonschema:"The chat message to interpret"`
}

// ParseCommandOutput is the output for sippy_parse_command
type ParseCommandOutput struct {
	Resolution *service.ResolutionView `json:"resolution,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func (s *SippyMCPServer) handleParseCommand(ctx context.Context, req *mcp.CallToolRequest, input ParseCommandInput) (*mcp.CallToolResult, ParseCommandOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ParseCommandOutput{Error: "text is required"}, nil
	}

	view, err := s.backend.Parse(ctx, input.Text)
	if err != nil {
		return nil, ParseCommandOutput{Error: err.Error()}, nil
	}
	return nil, ParseCommandOutput{Resolution: view}, nil
}

// NormalizePhoneInput is the input for sippy_normalize_phone
type NormalizePhoneInput struct {
	Phone string `json:"phone" jsonschema:"The phone number or alias as written"`
	Text  string `json:"text,omitempty" jsonschema:"The full message the number appeared in, used to detect an explicit country code"`
}

// NormalizePhoneOutput is the output for sippy_normalize_phone
type NormalizePhoneOutput struct {
	Canonical string `json:"canonical,omitempty"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

func (s *SippyMCPServer) handleNormalizePhone(ctx context.Context, req *mcp.CallToolRequest, input NormalizePhoneInput) (*mcp.CallToolResult, NormalizePhoneOutput, error) {
	resp, err := s.backend.Normalize(ctx, input.Phone, input.Text)
	if err != nil {
		return nil, NormalizePhoneOutput{Error: err.Error()}, nil
	}
	return nil, NormalizePhoneOutput{Canonical: resp.Canonical, Valid: resp.OK}, nil
}

// CheckLimitsInput is the input for sippy_check_limits
type CheckLimitsInput struct {
	Phone string `json:"phone" jsonschema:"The user's phone number"`
}

// CheckLimitsOutput is the output for sippy_check_limits. Times are RFC 3339.
type CheckLimitsOutput struct {
	Found            bool   `json:"found"`
	SenderID         string `json:"sender_id,omitempty"`
	Session          string `json:"session,omitempty"`
	SessionExpiresAt string `json:"session_expires_at,omitempty"`
	SpentToday       string `json:"spent_today,omitempty"`
	RemainingToday   string `json:"remaining_today,omitempty"`
	TransactionLimit string `json:"transaction_limit,omitempty"`
	DailyLimit       string `json:"daily_limit,omitempty"`
	Balance          string `json:"balance,omitempty"`
	Error            string `json:"error,omitempty"`
}

func (s *SippyMCPServer) handleCheckLimits(ctx context.Context, req *mcp.CallToolRequest, input CheckLimitsInput) (*mcp.CallToolResult, CheckLimitsOutput, error) {
	view, err := s.backend.Limits(ctx, input.Phone)
	if errors.Is(err, sippymcp.ErrNotFound) {
		return nil, CheckLimitsOutput{Found: false}, nil
	}
	if err != nil {
		return nil, CheckLimitsOutput{Error: err.Error()}, nil
	}

	out := CheckLimitsOutput{
		Found:            true,
		SenderID:         view.SenderID,
		Session:          view.Session,
		SpentToday:       view.SpentToday,
		RemainingToday:   view.RemainingToday,
		TransactionLimit: view.TransactionLimit,
		DailyLimit:       view.DailyLimit,
		Balance:          view.Balance,
	}
	if !view.SessionExpiresAt.IsZero() {
		out.SessionExpiresAt = view.SessionExpiresAt.Format(time.RFC3339)
	}
	return nil, out, nil
}

// Run starts the MCP server with stdio transport
func (s *SippyMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *SippyMCPServer) GetServer() *mcp.Server {
	return s.server
}
