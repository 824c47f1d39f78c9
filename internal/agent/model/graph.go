package model

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// ResponseType is the handling strategy chosen for a turn.
type ResponseType string

const (
	ResponseDefault ResponseType = "default"
	ResponseMath    ResponseType = "math"
	ResponseImage   ResponseType = "image"
	ResponseMedia   ResponseType = "media"
)

// ResponseTypes lists every known response type.
var ResponseTypes = []ResponseType{ResponseDefault, ResponseMath, ResponseImage, ResponseMedia}

func (r ResponseType) Valid() bool {
	switch r {
	case ResponseDefault, ResponseMath, ResponseImage, ResponseMedia:
		return true
	}
	return false
}

// ImageRef is one image attached to a turn.
type ImageRef struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
}

// ConversationState is threaded through the graph for one turn and owned by
// that turn alone.
type ConversationState struct {
	ConversationID string
	Author         string

	Pending *schema.Message
	History []*schema.Message // as loaded; never reordered
	Working []*schema.Message // what the next model call sees

	responseType ResponseType

	Images []ImageRef
	Latex  string

	// Rewrite is set when Working no longer extends History, so the store has
	// to replace the conversation instead of appending to it.
	Rewrite bool

	ToolRoundTrips int
	CostUSD        float64
}

// NewConversationState prepares the state of a new turn.
func NewConversationState(conversationID, author, text string, history []*schema.Message) *ConversationState {
	working := make([]*schema.Message, len(history))
	copy(working, history)
	return &ConversationState{
		ConversationID: conversationID,
		Author:         author,
		Pending:        NewUserMessage(author, text),
		History:        history,
		Working:        working,
	}
}

func (s *ConversationState) ResponseType() ResponseType {
	return s.responseType
}

// SetResponseType assigns the turn's response type. It may only be called once.
func (s *ConversationState) SetResponseType(rt ResponseType) error {
	if s.responseType != "" {
		return fmt.Errorf("response type already set to %q", s.responseType)
	}
	if !rt.Valid() {
		return fmt.Errorf("unknown response type %q", rt)
	}
	s.responseType = rt
	return nil
}

// Append adds messages to the working set, stamping ids on the way in.
func (s *ConversationState) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		s.Working = append(s.Working, Stamp(m))
	}
}

// AddImages appends to the turn's images.
func (s *ConversationState) AddImages(images ...ImageRef) {
	s.Images = append(s.Images, images...)
}

// Record derives what the store has to persist for this turn.
func (s *ConversationState) Record() TurnRecord {
	rec := TurnRecord{Messages: s.Working, Rewrite: s.Rewrite}
	if !s.Rewrite && len(s.Working) >= len(s.History) {
		rec.Appended = s.Working[len(s.History):]
	}
	return rec
}

// ================ Outcomes ================

// TurnOutcome is the response-producing result of a turn. The variants carry
// only what their response type produces.
type TurnOutcome interface {
	ResponseType() ResponseType
	Text() string
}

type DefaultOutcome struct {
	Content string
	Images  []ImageRef // produced by tools, if any
}

type MathOutcome struct {
	Content string
	Latex   string
}

type ImageOutcome struct {
	Content string
	Images  []ImageRef
}

type MediaOutcome struct {
	Content string
	Images  []ImageRef
}

func (DefaultOutcome) ResponseType() ResponseType { return ResponseDefault }
func (MathOutcome) ResponseType() ResponseType    { return ResponseMath }
func (ImageOutcome) ResponseType() ResponseType   { return ResponseImage }
func (MediaOutcome) ResponseType() ResponseType   { return ResponseMedia }

func (o DefaultOutcome) Text() string { return o.Content }
func (o MathOutcome) Text() string    { return o.Content }
func (o ImageOutcome) Text() string   { return o.Content }
func (o MediaOutcome) Text() string   { return o.Content }

// TurnResult is what the graph hands back to the orchestrator.
type TurnResult struct {
	Outcome TurnOutcome
	Record  TurnRecord
	CostUSD float64
}

// TurnResponse is the caller-facing answer of one turn.
type TurnResponse struct {
	Content      string       `json:"content"`
	Images       []ImageRef   `json:"images"`
	Latex        string       `json:"latex,omitempty"`
	ResponseType ResponseType `json:"response_type,omitempty"`
	CostUSD      float64      `json:"cost_usd,omitempty"`
}

// ToResponse flattens an outcome into the caller-facing shape. Images is
// never nil.
func ToResponse(o TurnOutcome) TurnResponse {
	resp := TurnResponse{Images: []ImageRef{}}
	if o == nil {
		return resp
	}
	resp.Content = o.Text()
	resp.ResponseType = o.ResponseType()
	switch v := o.(type) {
	case DefaultOutcome:
		resp.Images = append(resp.Images, v.Images...)
	case MathOutcome:
		resp.Latex = v.Latex
	case ImageOutcome:
		resp.Images = append(resp.Images, v.Images...)
	case MediaOutcome:
		resp.Images = append(resp.Images, v.Images...)
	}
	return resp
}
