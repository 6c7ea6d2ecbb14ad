package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/auth"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/tags",
		Summary:     "List tags",
		Description: "Returns the tags attached to the caller's notes, ordered by name",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)
}

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Authorization string `header:"Authorization"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body []dto.Tag
}

func (s *Server) handleListTags(ctx context.Context, _ *ListTagsInput) (*ListTagsOutput, error) {
	tags, err := s.services.Tags.ListTags(ctx, auth.PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &ListTagsOutput{Body: dto.FromTags(tags)}, nil
}
