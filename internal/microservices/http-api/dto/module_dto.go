package dto

import (
	"encoding/json"
	"time"

	"nuhub/internal/router"
)

// ModuleResponse for GET /api/modules
type ModuleResponse struct {
	Name            string `json:"name"`
	Channel         string `json:"channel"`
	IdentityRouting bool   `json:"identity_routing"`
	ParamCount      int    `json:"param_count"`
}

// ParamsResponse for GET /api/modules/:name/params
type ParamsResponse struct {
	Module string                  `json:"module"`
	Params map[string]router.Value `json:"params"`
}

// JournalEntryResponse for GET /api/modules/:name/journal
type JournalEntryResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

type JournalResponse struct {
	Module  string                 `json:"module"`
	Entries []JournalEntryResponse `json:"entries"`
}

func ModuleFromRouter(m *router.Module, paramCount int) ModuleResponse {
	return ModuleResponse{
		Name:            m.Name(),
		Channel:         m.Channel(),
		IdentityRouting: m.IdentityRouting(),
		ParamCount:      paramCount,
	}
}
