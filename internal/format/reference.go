package format

import "github.com/InfiniteCod3/chatplugins/internal/model"

// Reference identifies the parent of a reply.
type Reference struct {
	ChannelID string
	MessageID string
}

// ReplyReference extracts the reply target of m from whichever wire shape
// carried it. The embedded referenced_message wins, then message_reference,
// then messageReference. A missing channel defaults to m's own channel.
func ReplyReference(m model.Message) (Reference, bool) {
	if rm := m.ReferencedMessage; rm != nil && rm.ID != "" {
		return Reference{ChannelID: firstNonEmpty(rm.ChannelID, m.ChannelID), MessageID: rm.ID}, true
	}
	for _, ref := range []*model.MessageReference{m.MessageReference, m.MessageReferenceCamel} {
		if ref == nil {
			continue
		}
		id := firstNonEmpty(ref.MessageID, ref.MessageIDCamel)
		if id == "" {
			continue
		}
		return Reference{
			ChannelID: firstNonEmpty(ref.ChannelID, ref.ChannelIDCamel, m.ChannelID),
			MessageID: id,
		}, true
	}
	return Reference{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
