package models

// OriginalEntry is what a rendered message was built from. It is keyed by
// the chat and the rendered (bot-sent) message id and never changes once
// written.
type OriginalEntry struct {
	SenderDisplay      string `json:"sender_display"`
	OriginalText       string `json:"original_text"`
	DetectedSourceLang string `json:"detected_source_lang"`
	// Header is the rendered header line including any "From" label.
	Header string `json:"header,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}
