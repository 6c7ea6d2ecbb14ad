package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/service"
)

func (s *Server) registerActivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listActivity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "List activity",
		Description: "Returns the caller's most recent audit entries",
		Tags:        []string{"Activity"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListActivity)
}

// ListActivityInput contains parameters for listing activity.
type ListActivityInput struct {
	Authorization string `header:"Authorization"`
}

// ListActivityOutput wraps activity entries for Huma.
type ListActivityOutput struct {
	Body []dto.Activity
}

func (s *Server) handleListActivity(ctx context.Context, _ *ListActivityInput) (*ListActivityOutput, error) {
	entries, err := s.services.Activity.List(ctx, auth.PrincipalFrom(ctx), service.DefaultActivityLimit)
	if err != nil {
		return nil, err
	}
	return &ListActivityOutput{Body: dto.FromActivity(entries)}, nil
}
