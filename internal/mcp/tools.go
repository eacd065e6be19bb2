package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/blackwell-systems/codehint/internal/learning"
	"github.com/blackwell-systems/codehint/internal/store"
	"github.com/blackwell-systems/codehint/internal/suggest"
)

// SuggestionsResult is the payload of analyze_file and get_suggestions.
type SuggestionsResult struct {
	File        string               `json:"file"`
	Count       int                  `json:"count"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// FeedbackResult is the payload of record_feedback.
type FeedbackResult struct {
	SuggestionID string         `json:"suggestion_id"`
	Applied      bool           `json:"applied"`
	Profile      learning.Stats `json:"profile"`
}

// HistoryResult is the payload of get_history.
type HistoryResult struct {
	Runs []store.AnalysisRun `json:"runs"`
}

var (
	analyzeSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"path":{"type":"string","description":"File path; used as the cache key and read from disk when content is omitted"},` +
		`"content":{"type":"string","description":"File content to analyze instead of reading path"}` +
		`},"required":["path"],"additionalProperties":false}`)
	suggestionsSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"path":{"type":"string"},` +
		`"line":{"type":"integer","description":"0-based line the suggestion must cover"},` +
		`"type":{"type":"string","description":"Suggestion type, e.g. SECURITY"},` +
		`"high_priority":{"type":"boolean","description":"Only unapplied HIGH and CRITICAL suggestions"},` +
		`"unapplied":{"type":"boolean","description":"Only suggestions not yet applied or dismissed"}` +
		`},"required":["path"],"additionalProperties":false}`)
	feedbackSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"suggestion_id":{"type":"string"},` +
		`"applied":{"type":"boolean"},` +
		`"reason":{"type":"string"},` +
		`"applied_ref":{"type":"string","description":"Opaque reference to the artifact the suggestion became"}` +
		`},"required":["suggestion_id","applied"],"additionalProperties":false}`)
	noArgsSchema  = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	historySchema = json.RawMessage(`{"type":"object","properties":{` +
		`"path":{"type":"string","description":"Limit to one file"},` +
		`"limit":{"type":"integer","description":"Number of runs to return (default 20)"}` +
		`},"additionalProperties":false}`)
)

// addTools registers the tool handlers on s.
func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "analyze_file",
		Description: "Analyze one file and return its ranked suggestions.",
		InputSchema: analyzeSchema,
		Handler:     s.handleAnalyzeFile,
	})
	s.registerTool(toolDef{
		Name:        "get_suggestions",
		Description: "Cached suggestions for a file, optionally filtered by line, type, priority or applied state.",
		InputSchema: suggestionsSchema,
		Handler:     s.handleGetSuggestions,
	})
	s.registerTool(toolDef{
		Name:        "record_feedback",
		Description: "Record that a suggestion was applied or dismissed; the ranking adapts to it.",
		InputSchema: feedbackSchema,
		Handler:     s.handleRecordFeedback,
	})
	s.registerTool(toolDef{
		Name:        "get_profile",
		Description: "Learned weights, confidence threshold and counters of the active profile.",
		InputSchema: noArgsSchema,
		Handler:     s.handleGetProfile,
	})
	if s.history != nil {
		s.registerTool(toolDef{
			Name:        "get_history",
			Description: "Recent analysis runs, newest first.",
			InputSchema: historySchema,
			Handler:     s.handleGetHistory,
		})
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyzeFile(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Path    string  `json:"path"`
		Content *string `json:"content"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, errors.New("path is required")
	}

	var content string
	if in.Content != nil {
		content = *in.Content
	} else {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", in.Path, err)
		}
		content = string(data)
	}

	list := s.svc.Analyze(ctx, in.Path, content)
	return SuggestionsResult{File: in.Path, Count: len(list), Suggestions: list}, nil
}

func (s *Server) handleGetSuggestions(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Path         string `json:"path"`
		Line         *int   `json:"line"`
		Type         string `json:"type"`
		HighPriority bool   `json:"high_priority"`
		Unapplied    bool   `json:"unapplied"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, errors.New("path is required")
	}

	var list []suggest.Suggestion
	switch {
	case in.HighPriority:
		list = s.svc.HighPriority(in.Path)
	case in.Type != "":
		t, err := suggest.ParseType(in.Type)
		if err != nil {
			return nil, err
		}
		list = s.svc.ByType(in.Path, t)
	case in.Unapplied:
		list = s.svc.Unapplied(in.Path)
	default:
		list = s.svc.Suggestions(in.Path)
	}

	if in.Line != nil {
		kept := list[:0:0]
		for _, sg := range list {
			if sg.CoversLine(*in.Line) {
				kept = append(kept, sg)
			}
		}
		list = kept
	}
	if list == nil {
		list = []suggest.Suggestion{}
	}
	return SuggestionsResult{File: in.Path, Count: len(list), Suggestions: list}, nil
}

func (s *Server) handleRecordFeedback(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		SuggestionID string `json:"suggestion_id"`
		Applied      *bool  `json:"applied"`
		Reason       string `json:"reason"`
		AppliedRef   string `json:"applied_ref"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.SuggestionID == "" || in.Applied == nil {
		return nil, errors.New("suggestion_id and applied are required")
	}

	var err error
	if *in.Applied && in.AppliedRef != "" {
		reason := in.Reason
		if reason == "" {
			reason = "applied"
		}
		err = s.svc.MarkApplied(in.SuggestionID, in.AppliedRef, reason)
	} else {
		err = s.svc.RecordFeedback(in.SuggestionID, *in.Applied, in.Reason)
	}
	if err != nil {
		return nil, err
	}

	engine := s.svc.Engine()
	if err := engine.Save(ctx); err != nil {
		s.logger.Warn("persisting profile failed", zap.Error(err))
	}
	return FeedbackResult{SuggestionID: in.SuggestionID, Applied: *in.Applied, Profile: engine.Stats()}, nil
}

func (s *Server) handleGetProfile(_ context.Context, _ json.RawMessage) (any, error) {
	return s.svc.Engine().Stats(), nil
}

func (s *Server) handleGetHistory(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Path  string `json:"path"`
		Limit int    `json:"limit"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	runs, err := s.history.RecentRuns(ctx, in.Path, in.Limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []store.AnalysisRun{}
	}
	return HistoryResult{Runs: runs}, nil
}
