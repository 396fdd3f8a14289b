package app

import (
	"fmt"
	"strings"

	"buildscope/internal/model"
)

// PromptSet maps each conversation type to its system prompt. It is built
// once at startup and injected into ChatService.
type PromptSet map[model.ConversationType]string

const defaultScopePrompt = `You are a construction project scope generator. Help create detailed, structured project scopes. Consider:
- Project objectives and deliverables
- Timeline and milestones
- Resource requirements
- Technical specifications
- Constraints and assumptions
Format your response in a clear, structured way with sections and bullet points.`

const defaultProposalPrompt = `You are a construction proposal reviewer. Review the uploaded proposal document and provide analysis for:
- Completeness and clarity
- Technical feasibility
- Cost reasonableness
- Risk assessment
- Compliance with requirements
If a proposal document is attached, analyze its contents and provide specific feedback and recommendations for improvement.`

func DefaultPrompts() PromptSet {
	return PromptSet{
		model.ConversationScope:    defaultScopePrompt,
		model.ConversationProposal: defaultProposalPrompt,
	}
}

// NewPromptSet layers non-empty overrides on the defaults. Keys must name a
// known conversation type.
func NewPromptSet(overrides map[string]string) (PromptSet, error) {
	prompts := DefaultPrompts()
	for key, text := range overrides {
		convType := model.ConversationType(strings.TrimSpace(key))
		if !convType.Valid() {
			return nil, fmt.Errorf("prompt override for unknown conversation type %q", key)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		prompts[convType] = text
	}
	return prompts, nil
}

func (p PromptSet) For(convType model.ConversationType) (string, bool) {
	text, ok := p[convType]
	return text, ok && text != ""
}
