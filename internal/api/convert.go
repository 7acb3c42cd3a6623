package api

import (
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/store"
)

func messageToRPC(m conversation.Message) rpc.Message {
	return rpc.Message{
		ID:              m.ID,
		Seq:             m.Seq,
		Contact:         m.Contact,
		Body:            m.Body,
		Direction:       string(m.Direction),
		Status:          string(m.Status),
		Origin:          string(m.Origin),
		TimestampUnixMs: m.Timestamp.UnixMilli(),
	}
}

func conversationToRPC(c conversation.Conversation, names map[string]string) rpc.Conversation {
	return rpc.Conversation{
		Contact:            c.Contact,
		DisplayName:        names[c.Contact],
		LastMessageSummary: c.LastMessageSummary,
		LastActivityUnixMs: c.LastActivity.UnixMilli(),
		UnreadCount:        c.UnreadCount,
		MessageCount:       len(c.MessageIDs),
	}
}

func statsToRPC(s conversation.Stats) rpc.Stats {
	return rpc.Stats{
		TotalMessages:            s.TotalMessages,
		IncomingMessages:         s.IncomingMessages,
		OutgoingMessages:         s.OutgoingMessages,
		ActiveConversations:      s.ActiveConversations,
		UnreadMessages:           s.UnreadMessages,
		ResponseRate:             s.ResponseRate,
		AverageResponseMs:        s.AverageResponseTime.Mean.Milliseconds(),
		AverageResponseAvailable: s.AverageResponseTime.Available(),
		AverageResponse:          s.AverageResponseTime.String(),
	}
}

func digestToRPC(d store.Digest) rpc.Digest {
	st := rpc.Stats{
		TotalMessages:       d.TotalMessages,
		IncomingMessages:    d.IncomingMessages,
		OutgoingMessages:    d.OutgoingMessages,
		ActiveConversations: d.ActiveConversations,
		UnreadMessages:      d.UnreadMessages,
		ResponseRate:        d.ResponseRate,
		AverageResponse:     conversation.ResponseTime{}.String(),
	}
	if d.AverageResponse != nil {
		rt := conversation.ResponseTime{Mean: *d.AverageResponse, Samples: 1}
		st.AverageResponseMs = d.AverageResponse.Milliseconds()
		st.AverageResponseAvailable = true
		st.AverageResponse = rt.String()
	}
	return rpc.Digest{TakenAtUnixMs: d.TakenAt.UnixMilli(), Stats: st}
}

func profileToRPC(provider string, p assistant.Profile) rpc.Profile {
	return rpc.Profile{
		Provider:        provider,
		Model:           p.Model,
		SystemPrompt:    p.SystemPrompt,
		Temperature:     p.Temperature,
		MaxTokens:       p.MaxTokens,
		WindowSize:      p.WindowSize,
		FallbackMessage: p.FallbackMessage,
	}
}
