package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type ChatRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversation_id"`
	IP             string `json:"ip"`
}

type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

type EmbeddingsRequest struct {
	Text string `json:"text" validate:"required"`
}

type EmbeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
}

type LeadCreate struct {
	Name     string         `json:"name"`
	Company  string         `json:"company"`
	Email    string         `json:"email" validate:"omitempty,email"`
	Phone    string         `json:"phone"`
	Message  string         `json:"message"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// MessageMetadataUpdate carries the editable chat_messages columns. Pointers
// distinguish "not sent" from "set to empty".
type MessageMetadataUpdate struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (req *ChatRequest) Validate() map[string]string {
	return validateStruct(req)
}

func (req *EmbeddingsRequest) Validate() map[string]string {
	return validateStruct(req)
}

func (req *LeadCreate) Validate() map[string]string {
	return validateStruct(req)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}
