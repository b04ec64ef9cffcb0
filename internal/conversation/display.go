package conversation

import "time"

// DisplayItem is what a renderer draws: either a committed entry or the
// pending placeholder. Only Committed values are ever part of the log.
type DisplayItem interface {
	displayItem()
}

// Committed wraps an entry from the log
type Committed struct {
	Index int          `json:"index"`
	Entry MessageEntry `json:"entry"`
}

// Pending is the ephemeral "thinking" stand-in for an assistant reply
type Pending struct {
	Echo  string    `json:"echo,omitempty"`
	Voice bool      `json:"voice,omitempty"`
	Since time.Time `json:"since"`
}

func (Committed) displayItem() {}
func (Pending) displayItem()   {}

// Text is the placeholder's rendered content
func (p Pending) Text() string { return ThinkingText }

// DisplayView is the JSON form of a DisplayItem for the event feed
type DisplayView struct {
	Kind    string        `json:"kind"` // "message" or "pending"
	Index   int           `json:"index,omitempty"`
	Message *MessageEntry `json:"message,omitempty"`
	Pending *Pending      `json:"pending,omitempty"`
}

// Views converts display items into their JSON form
func Views(items []DisplayItem) []DisplayView {
	views := make([]DisplayView, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case Committed:
			entry := it.Entry
			views = append(views, DisplayView{Kind: "message", Index: it.Index, Message: &entry})
		case Pending:
			p := it
			views = append(views, DisplayView{Kind: "pending", Pending: &p})
		}
	}
	return views
}
