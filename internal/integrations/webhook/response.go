package webhook

import (
	"encoding/json"

	"chatwidget/internal/domain"
)

// FallbackText is the synthetic reply used when the webhook body matches none
// of the accepted shapes. Kept verbatim for compatibility.
const FallbackText = "I received your message. This is a demo response since no valid webhook response was received."

// FallbackSuggestedReplies accompany FallbackText.
var FallbackSuggestedReplies = []string{"Tell me more", "How can you help?", "What's next?"}

// wirePayload covers both accepted object shapes; which field is populated
// decides the interpretation.
type wirePayload struct {
	Output            string   `json:"output"`
	Response          string   `json:"response"`
	SuggestedMessages []string `json:"suggestedMessages"`
}

// ResolvePayload interprets a webhook reply body, trying each accepted shape
// in precedence order: array whose first element carries output, object with
// output, object with response. Anything else resolves to the demo fallback.
func ResolvePayload(raw []byte) domain.ResponsePayload {
	var arr []wirePayload
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 && arr[0].Output != "" {
		return domain.ResponsePayload{
			Text:             arr[0].Output,
			SuggestedReplies: orEmpty(arr[0].SuggestedMessages),
		}
	}

	var obj wirePayload
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Output != "" {
			return domain.ResponsePayload{
				Text:             obj.Output,
				SuggestedReplies: orEmpty(obj.SuggestedMessages),
			}
		}
		if obj.Response != "" {
			return domain.ResponsePayload{
				Text:             obj.Response,
				SuggestedReplies: orEmpty(obj.SuggestedMessages),
			}
		}
	}

	return domain.ResponsePayload{
		Text:             FallbackText,
		SuggestedReplies: append([]string(nil), FallbackSuggestedReplies...),
	}
}

func orEmpty(replies []string) []string {
	if replies == nil {
		return []string{}
	}
	return replies
}
