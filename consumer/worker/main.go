package worker

import "encoding/json"

// asJSONValue embeds a model reply into a result document. Replies requested
// as JSON usually are, but the model is not a trusted serializer; anything
// invalid is stored as a plain string instead of corrupting the document.
func asJSONValue(s string) interface{} {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}
