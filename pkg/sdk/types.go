package faqbot

import (
	"maps"
	"time"

	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

// Tier names the part of the engine that produced a reply.
type Tier string

// Reply tiers.
const (
	TierDialogStart Tier = Tier(pipeline.TierDialogStart)
	TierDialogStep  Tier = Tier(pipeline.TierDialogStep)
	TierDialogEnd   Tier = Tier(pipeline.TierDialogEnd)
	TierCancel      Tier = Tier(pipeline.TierCancel)
	TierKnowledge   Tier = Tier(pipeline.TierKnowledge)
	TierRetrieval   Tier = Tier(pipeline.TierRetrieval)
	TierUngrounded  Tier = Tier(pipeline.TierUngrounded)
	TierSuggestion  Tier = Tier(pipeline.TierSuggestion)
	TierFallback    Tier = Tier(pipeline.TierFallback)
	TierError       Tier = Tier(pipeline.TierError)
)

// Reply is the answer to one message. Options, when present, are selectable labels.
type Reply struct {
	Text    string
	Options []string
	Tier    Tier
}

// Dialog is a user's progress through an active dialog.
type Dialog struct {
	Trigger     string
	CurrentStep int
	// Answers maps a step number to the option chosen there.
	Answers   map[string]string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Messages are the static replies of the engine. {summary} in FlowComplete
// is replaced with the trigger and the recorded answers.
type Messages struct {
	Fallback       string
	Suggestions    string
	Cancelled      string
	NoConversation string
	TryAgain       string
	Apology        string
	FlowComplete   string
}

// Document is a source text to index for retrieval.
type Document struct {
	SourceType string
	SourceID   string
	Title      string
	Content    string
	Metadata   map[string]string
}

// IngestResult reports what Ingest stored.
type IngestResult struct {
	DocumentID string
	Chunks     int
	// Replaced counts chunks of an earlier ingestion of the same source.
	Replaced int
}

func replyFromPipeline(r pipeline.Reply) Reply {
	return Reply{Text: r.Text, Options: r.Options, Tier: Tier(r.Tier)}
}

func dialogFromState(st *conversation.State) Dialog {
	return Dialog{
		Trigger:     st.Trigger,
		CurrentStep: st.CurrentStep,
		Answers:     maps.Clone(st.Context),
		StartedAt:   st.StartedAt,
		UpdatedAt:   st.LastUpdatedAt,
	}
}

func (m Messages) toPipeline() pipeline.Messages {
	return pipeline.Messages{
		Fallback:       m.Fallback,
		Suggestions:    m.Suggestions,
		Cancelled:      m.Cancelled,
		NoConversation: m.NoConversation,
		TryAgain:       m.TryAgain,
		Apology:        m.Apology,
		FlowComplete:   m.FlowComplete,
	}
}

func (d Document) toRequest() retrieval.IngestRequest {
	return retrieval.IngestRequest{
		SourceType: d.SourceType,
		SourceID:   d.SourceID,
		Title:      d.Title,
		Content:    d.Content,
		Metadata:   maps.Clone(d.Metadata),
	}
}
