package models

import "strings"

// TriggerStatus mirrors the campaign on/off switch.
type TriggerStatus string

const (
	TriggerStatusActive   TriggerStatus = "active"
	TriggerStatusInactive TriggerStatus = "inactive"
)

// Trigger starts FlowID when an inbound message equals Phrase.
// An empty ChannelID applies to every channel of the tenant.
type Trigger struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"            validate:"required"`
	ChannelID string        `json:"channel_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Phrase    string        `json:"phrase"               validate:"required"`
	FlowID    string        `json:"flow_id"              validate:"required"`
	Status    TriggerStatus `json:"status"`
}

// Enabled reports whether the trigger takes part in matching.
func (t *Trigger) Enabled() bool {
	return t.Status == "" || t.Status == TriggerStatusActive
}

// AppliesTo reports whether the trigger is scoped to channelID.
func (t *Trigger) AppliesTo(channelID string) bool {
	return t.ChannelID == "" || t.ChannelID == channelID
}

// Matches compares the normalized phrase with already normalized text.
func (t *Trigger) Matches(normalized string) bool {
	return NormalizeText(t.Phrase) == normalized
}

// DefaultFlows are the fallbacks used when no phrase matches.
type DefaultFlows struct {
	TenantID       string `json:"tenant_id"`
	ChannelID      string `json:"channel_id,omitempty"`
	WelcomeFlowID  string `json:"welcome_flow_id,omitempty"`
	NoPhraseFlowID string `json:"no_phrase_flow_id,omitempty"`
}

// Fallback returns the flow to start when no phrase matched, if any.
func (d *DefaultFlows) Fallback() string {
	if d == nil {
		return ""
	}

	if d.NoPhraseFlowID != "" {
		return d.NoPhraseFlowID
	}

	return d.WelcomeFlowID
}

// NormalizeText trims and lowercases inbound text for matching.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
