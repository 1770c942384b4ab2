package sessions

import "github.com/PabloGalante/farum-studio/internal/domain"

// MessagesUpdate either replaces a message list or transforms the previous one.
type MessagesUpdate struct {
	replace   []domain.Message
	transform func([]domain.Message) []domain.Message
}

func ReplaceMessages(msgs []domain.Message) MessagesUpdate {
	return MessagesUpdate{replace: append([]domain.Message{}, msgs...)}
}

func TransformMessages(fn func(prev []domain.Message) []domain.Message) MessagesUpdate {
	return MessagesUpdate{transform: fn}
}

// AppendMessages is the common transform used when sending.
func AppendMessages(msgs ...domain.Message) MessagesUpdate {
	return TransformMessages(func(prev []domain.Message) []domain.Message {
		return append(prev, msgs...)
	})
}

// Apply computes the next list. The transform works on a copy of prev.
func (u MessagesUpdate) Apply(prev []domain.Message) []domain.Message {
	if u.transform == nil {
		return append([]domain.Message{}, u.replace...)
	}
	return u.transform(append([]domain.Message{}, prev...))
}
