package handler

import (
	"net/http"
	"strconv"
	"strings"

	"lifestory-agent/internal/domain"
)

// accountFrom reads the caller from the upstream authorizer context. The
// handler performs no authentication of its own.
func accountFrom(authorizer map[string]interface{}) domain.Account {
	id := authorizerString(authorizer, "accountId")
	if id == "" {
		id = authorizerString(authorizer, "principalId")
	}
	return domain.Account{
		ID:      id,
		Name:    authorizerString(authorizer, "name"),
		IsAdmin: authorizerBool(authorizer, "isAdmin"),
	}
}

func authorizerString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

// authorizerBool accepts a bool or its string form.
func authorizerBool(m map[string]interface{}, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

func sessionIDFrom(headers map[string]string) string {
	if sid := header(headers, sessionHeader); sid != "" {
		return sid
	}
	raw := header(headers, "Cookie")
	if raw == "" {
		return ""
	}
	req := http.Request{Header: http.Header{"Cookie": []string{raw}}}
	c, err := req.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
