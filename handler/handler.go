package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"lifestory-agent/internal/domain"
	"lifestory-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	sessionHeader     = "X-Session-Id"
	sessionCookie     = "sid"
	errorUnauthorized = "UNAUTHORIZED"
	errorRouteMissing = "NOT_FOUND"
)

type Conversations interface {
	Start(ctx context.Context, in usecase.StartInput) (domain.Conversation, error)
	ListConversations(ctx context.Context, account domain.Account) (usecase.ConversationList, error)
	Transcript(ctx context.Context, conversationID string, account domain.Account) (usecase.Transcript, error)
	Rename(ctx context.Context, conversationID string, account domain.Account, title string) (domain.Conversation, error)
	Send(ctx context.Context, in usecase.SendInput) (usecase.ReplyOutput, error)
	Pivot(ctx context.Context, in usecase.PivotInput) (usecase.ReplyOutput, error)
}

type Summaries interface {
	SummarizeConversation(ctx context.Context, in usecase.SummarizeInput) (domain.Summary, error)
	GetSummary(ctx context.Context, conversationID string, account domain.Account) (domain.Summary, error)
	ExportMarkdown(ctx context.Context, conversationID string, account domain.Account) (usecase.MarkdownExport, error)
}

type Personas interface {
	List(ctx context.Context, account domain.Account) ([]domain.Persona, error)
	Create(ctx context.Context, account domain.Account, in usecase.PersonaInput) (domain.Persona, error)
	Update(ctx context.Context, account domain.Account, id string, in usecase.PersonaInput) (domain.Persona, error)
	Delete(ctx context.Context, account domain.Account, id string) error
	SetDefault(ctx context.Context, account domain.Account, id string) error
	Select(ctx context.Context, account domain.Account, sessionID, conversationID, personaID string) error
	SetDebug(ctx context.Context, account domain.Account, sessionID, conversationID string, on bool) error
	ListStyles(ctx context.Context) ([]domain.CommStyle, error)
	SyncStyles(ctx context.Context, account domain.Account, styles []domain.CommStyle) (int, error)
}

type SessionLoader interface {
	Load(ctx context.Context, sessionID string) (domain.Session, error)
}

type Handler struct {
	conversations Conversations
	summaries     Summaries
	personas      Personas
	sessions      SessionLoader
	log           *slog.Logger
}

func NewHandler(conversations Conversations, summaries Summaries, personas Personas, sessions SessionLoader, log *slog.Logger) (*Handler, error) {
	if conversations == nil {
		return nil, errors.New("handler: conversations use case must not be nil")
	}
	if summaries == nil {
		return nil, errors.New("handler: summaries use case must not be nil")
	}
	if personas == nil {
		return nil, errors.New("handler: personas use case must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session loader must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		conversations: conversations,
		summaries:     summaries,
		personas:      personas,
		sessions:      sessions,
		log:           log,
	}, nil
}

// call is one routed request with its caller identity resolved.
type call struct {
	method    string
	parts     []string
	body      string
	account   domain.Account
	sessionID string
	log       *slog.Logger
}

// Handle is the API Gateway proxy entry point. Failures are always reported
// as JSON error responses, never as a Lambda error.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := header(event.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	c := call{
		method:    strings.ToUpper(event.HTTPMethod),
		parts:     splitPath(event.Path),
		body:      event.Body,
		account:   accountFrom(event.RequestContext.Authorizer),
		sessionID: sessionIDFrom(event.Headers),
		log:       h.log.With("correlationId", corrID, "method", event.HTTPMethod, "path", event.Path),
	}

	resp := h.route(ctx, c)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = corrID
	c.log.InfoContext(ctx, "request handled", "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, c call) events.APIGatewayProxyResponse {
	if len(c.parts) == 1 && c.parts[0] == "health" && c.method == http.MethodGet {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	}
	if c.account.ID == "" {
		return errorJSON(http.StatusUnauthorized, errorUnauthorized)
	}
	if len(c.parts) == 0 {
		return errorJSON(http.StatusNotFound, errorRouteMissing)
	}
	switch c.parts[0] {
	case "conversations":
		return h.routeConversations(ctx, c)
	case "personas":
		return h.routePersonas(ctx, c)
	case "styles":
		return h.routeStyles(ctx, c)
	}
	return errorJSON(http.StatusNotFound, errorRouteMissing)
}

func (h *Handler) routeConversations(ctx context.Context, c call) events.APIGatewayProxyResponse {
	p := c.parts
	switch {
	case len(p) == 1 && c.method == http.MethodGet:
		list, err := h.conversations.ListConversations(ctx, c.account)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toConversationList(list))

	case len(p) == 1 && c.method == http.MethodPost:
		var req startRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		conv, err := h.conversations.Start(ctx, usecase.StartInput{Account: c.account, Title: req.Title})
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusCreated, toConversation(conv))

	case len(p) == 2 && c.method == http.MethodGet:
		tr, err := h.conversations.Transcript(ctx, p[1], c.account)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toTranscript(tr))

	case len(p) == 3 && p[2] == "messages" && c.method == http.MethodPost:
		var req messageRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		out, err := h.conversations.Send(ctx, usecase.SendInput{
			ConversationID: p[1],
			Account:        c.account,
			Session:        h.session(ctx, c),
			Content:        req.Content,
		})
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, replyResponse{ConversationID: out.ConversationID, Reply: out.Reply})

	case len(p) == 3 && p[2] == "pivot" && c.method == http.MethodPost:
		out, err := h.conversations.Pivot(ctx, usecase.PivotInput{
			ConversationID: p[1],
			Account:        c.account,
			Session:        h.session(ctx, c),
		})
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, replyResponse{ConversationID: out.ConversationID, Reply: out.Reply})

	case len(p) == 3 && p[2] == "title" && c.method == http.MethodPut:
		var req titleRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		conv, err := h.conversations.Rename(ctx, p[1], c.account, req.Title)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toConversation(conv))

	case len(p) == 3 && p[2] == "summary":
		return h.routeSummary(ctx, c)

	case len(p) == 4 && p[2] == "summary" && p[3] == "markdown" && c.method == http.MethodGet:
		out, err := h.summaries.ExportMarkdown(ctx, p[1], c.account)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers: map[string]string{
				"Content-Type":        "text/markdown; charset=utf-8",
				"Content-Disposition": fmt.Sprintf("attachment; filename=%q", out.Filename),
			},
			Body: out.Content,
		}

	case len(p) == 3 && p[2] == "persona" && c.method == http.MethodPut:
		var req selectPersonaRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		if err := h.personas.Select(ctx, c.account, c.sessionID, p[1], strings.TrimSpace(req.PersonaID)); err != nil {
			return h.fail(ctx, c, err)
		}
		return noContent()

	case len(p) == 3 && p[2] == "debug" && c.method == http.MethodPut:
		var req debugRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		if err := h.personas.SetDebug(ctx, c.account, c.sessionID, p[1], req.Enabled); err != nil {
			return h.fail(ctx, c, err)
		}
		return noContent()
	}
	return errorJSON(http.StatusNotFound, errorRouteMissing)
}

func (h *Handler) routeSummary(ctx context.Context, c call) events.APIGatewayProxyResponse {
	convID := c.parts[1]
	switch c.method {
	case http.MethodGet:
		sum, err := h.summaries.GetSummary(ctx, convID, c.account)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toSummary(sum))
	case http.MethodPost:
		var req summarizeRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		format := domain.FormatHTML
		if strings.TrimSpace(req.Format) != "" {
			f, err := domain.ParseFormat(req.Format)
			if err != nil {
				return h.fail(ctx, c, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_format", Err: err})
			}
			format = f
		}
		sum, err := h.summaries.SummarizeConversation(ctx, usecase.SummarizeInput{ConversationID: convID, Account: c.account, Format: format})
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toSummary(sum))
	}
	return errorJSON(http.StatusMethodNotAllowed, errorRouteMissing)
}

func (h *Handler) routePersonas(ctx context.Context, c call) events.APIGatewayProxyResponse {
	p := c.parts
	switch {
	case len(p) == 1 && c.method == http.MethodGet:
		list, err := h.personas.List(ctx, c.account)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, personaListResponse{Personas: toPersonas(list)})

	case len(p) == 1 && c.method == http.MethodPost:
		var req personaRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		created, err := h.personas.Create(ctx, c.account, req.input())
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusCreated, toPersona(created))

	case len(p) == 2 && c.method == http.MethodPut:
		var req personaRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		updated, err := h.personas.Update(ctx, c.account, p[1], req.input())
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, toPersona(updated))

	case len(p) == 2 && c.method == http.MethodDelete:
		if err := h.personas.Delete(ctx, c.account, p[1]); err != nil {
			return h.fail(ctx, c, err)
		}
		return noContent()

	case len(p) == 3 && p[2] == "default" && c.method == http.MethodPost:
		if err := h.personas.SetDefault(ctx, c.account, p[1]); err != nil {
			return h.fail(ctx, c, err)
		}
		return noContent()
	}
	return errorJSON(http.StatusNotFound, errorRouteMissing)
}

func (h *Handler) routeStyles(ctx context.Context, c call) events.APIGatewayProxyResponse {
	if len(c.parts) != 1 {
		return errorJSON(http.StatusNotFound, errorRouteMissing)
	}
	switch c.method {
	case http.MethodGet:
		styles, err := h.personas.ListStyles(ctx)
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, styleListResponse{Styles: toStyles(styles)})
	case http.MethodPut:
		var req styleSyncRequest
		if err := decode(c.body, &req); err != nil {
			return h.fail(ctx, c, err)
		}
		n, err := h.personas.SyncStyles(ctx, c.account, req.styles())
		if err != nil {
			return h.fail(ctx, c, err)
		}
		return jsonResponse(http.StatusOK, styleSyncResponse{Synced: n})
	}
	return errorJSON(http.StatusMethodNotAllowed, errorRouteMissing)
}

// session loads the caller's interactive state. A missing or unreadable
// session degrades to the empty session.
func (h *Handler) session(ctx context.Context, c call) domain.Session {
	if c.sessionID == "" {
		return domain.Session{}
	}
	sess, err := h.sessions.Load(ctx, c.sessionID)
	if err != nil {
		c.log.WarnContext(ctx, "session load failed", "error", err)
		return domain.Session{}
	}
	return sess
}

func (h *Handler) fail(ctx context.Context, c call, err error) events.APIGatewayProxyResponse {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.log.ErrorContext(ctx, "request failed", "code", code, "error", err)
	} else {
		c.log.WarnContext(ctx, "request rejected", "code", code, "error", err)
	}
	return errorJSON(status, code)
}

func statusFor(err error) (int, string) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
	switch ue.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorEmptyTranscript:
		return http.StatusBadRequest, string(ue.Code)
	case usecase.ErrorNotFound:
		return http.StatusNotFound, string(ue.Code)
	case usecase.ErrorForbidden:
		return http.StatusForbidden, string(ue.Code)
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(ue.Code)
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(ue.Code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func decode(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(v)
	if err != nil {
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(buf),
	}
}

func errorJSON(status int, code string) events.APIGatewayProxyResponse {
	buf, _ := json.Marshal(errorResponse{Error: code})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(buf),
	}
}

func noContent() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: map[string]string{}}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
