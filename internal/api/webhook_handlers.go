package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/service"
)

func (s *Server) registerWebhookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "workflowCallback",
		Method:      http.MethodPost,
		Path:        "/webhook/n8n",
		Summary:     "Workflow callback",
		Description: "Applies workflow results. Tags replace existing ones and the title is overwritten",
		Tags:        []string{"Webhooks"},
		Middlewares: huma.Middlewares{s.webhookRateLimit},
	}, s.handleWorkflowCallback)

	huma.Register(s.api, huma.Operation{
		OperationID: "processorCallback",
		Method:      http.MethodPost,
		Path:        "/webhook/ai-complete",
		Summary:     "Processor callback",
		Description: "Applies AI processor results. Tags are merged and the title only fills an empty one",
		Tags:        []string{"Webhooks"},
		Middlewares: huma.Middlewares{s.webhookRateLimit},
	}, s.handleProcessorCallback)
}

// === DTOs ===

// WorkflowCallbackRequest is the body posted by the workflow engine.
type WorkflowCallbackRequest struct {
	_                struct{} `json:"-" additionalProperties:"true"`
	NoteID           string   `json:"noteId,omitempty" doc:"Note to update"`
	Summary          *string  `json:"summary,omitempty" nullable:"true" doc:"Summary, ignored when empty"`
	ExtractedTitle   *string  `json:"extractedTitle,omitempty" nullable:"true" doc:"Title, overwrites when non-empty"`
	TagsArray        []any    `json:"tagsArray,omitempty" nullable:"true" doc:"Replacement tag set; omit to keep tags"`
	ProcessingStatus string   `json:"processingStatus,omitempty" doc:"Defaults to completed"`
	Format           string   `json:"format,omitempty" doc:"Set to html when text fields carry markup; otherwise stored as sent"`
}

// WorkflowCallbackInput wraps the workflow callback for Huma.
type WorkflowCallbackInput struct {
	Authorization string `header:"Authorization"`
	Body          WorkflowCallbackRequest
}

// ProcessorCallbackRequest is the body posted by the AI processor.
type ProcessorCallbackRequest struct {
	_                struct{} `json:"-" additionalProperties:"true"`
	NoteID           string   `json:"noteId,omitempty" doc:"Note to update"`
	UserEmail        string   `json:"userEmail,omitempty" doc:"Email of the note's owner"`
	Summary          *string  `json:"summary,omitempty" nullable:"true" doc:"Summary, ignored when empty"`
	Title            *string  `json:"title,omitempty" nullable:"true" doc:"Title, used only when the note has none"`
	ExtractedTags    []any    `json:"extractedTags,omitempty" nullable:"true" doc:"Tags to add"`
	ProcessingStatus string   `json:"processingStatus,omitempty" doc:"Defaults to completed"`
	Format           string   `json:"format,omitempty" doc:"Set to html when text fields carry markup; otherwise stored as sent"`
}

// ProcessorCallbackInput wraps the processor callback for Huma.
type ProcessorCallbackInput struct {
	Authorization string `header:"Authorization"`
	Body          ProcessorCallbackRequest
}

// AckOutput wraps an acknowledgement for Huma.
type AckOutput struct {
	Body dto.Ack
}

// === Handlers ===

func (s *Server) handleWorkflowCallback(ctx context.Context, input *WorkflowCallbackInput) (*AckOutput, error) {
	note, err := s.services.Enrichment.ReplaceFromWorkflow(ctx, input.Authorization, service.WorkflowCallback{
		NoteID:           input.Body.NoteID,
		Summary:          input.Body.Summary,
		ExtractedTitle:   input.Body.ExtractedTitle,
		TagsArray:        stringTags(input.Body.TagsArray),
		ProcessingStatus: input.Body.ProcessingStatus,
		Format:           input.Body.Format,
	})
	if err != nil {
		return nil, err
	}
	return &AckOutput{Body: dto.Ack{
		Success: true,
		Message: "Note updated successfully",
		NoteID:  note.ID,
	}}, nil
}

func (s *Server) handleProcessorCallback(ctx context.Context, input *ProcessorCallbackInput) (*AckOutput, error) {
	_, err := s.services.Enrichment.MergeFromProcessor(ctx, input.Authorization, service.ProcessorCallback{
		NoteID:           input.Body.NoteID,
		UserEmail:        input.Body.UserEmail,
		Summary:          input.Body.Summary,
		Title:            input.Body.Title,
		ExtractedTags:    stringTags(input.Body.ExtractedTags),
		ProcessingStatus: input.Body.ProcessingStatus,
		Format:           input.Body.Format,
	})
	if err != nil {
		return nil, err
	}
	return &AckOutput{Body: dto.Ack{
		Success: true,
		Message: "Note enriched successfully",
	}}, nil
}

// stringTags keeps the string entries of a callback tag list. A nil list
// stays nil so the note's tags are left alone.
func stringTags(raw []any) []string {
	if raw == nil {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}
