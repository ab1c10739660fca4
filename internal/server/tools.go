package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/runger/bocado/internal/estimate"
	"github.com/runger/bocado/internal/foodlib"
	"github.com/runger/bocado/internal/habit/session"
	"github.com/runger/bocado/internal/habit/suggest"
	"github.com/runger/bocado/internal/journal"
)

type logMealParams struct {
	Description string  `json:"description" description:"Food as eaten, e.g. \"oatmeal with banana\""`
	Grams       float64 `json:"grams,omitempty" description:"Serving size in grams (defaults to 100)"`
	Timestamp   string  `json:"timestamp,omitempty" description:"RFC 3339 time the meal was eaten (defaults to now)"`
	Slot        string  `json:"slot,omitempty" description:"Meal slot override, e.g. breakfast or morning_snack (defaults to the slot for the timestamp)"`
}

type suggestMealParams struct {
	Limit int `json:"limit,omitempty" description:"How many recent journal entries to score (defaults to 50)"`
}

type getLogsParams struct {
	StartDate string `json:"start_date,omitempty" description:"Start date for the query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date for the query (YYYY-MM-DD)"`
	Slot      string `json:"slot,omitempty" description:"Restrict to one meal slot"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of entries to return"`
}

type searchFoodsParams struct {
	Query string `json:"query" description:"Name substring to search the food catalog for"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of foods to return"`
}

// suggestMealResponse is the suggest_meal payload. Suggestion is null
// when no habit cleared the threshold; Reason then says so explicitly
// instead of leaving the client to guess.
type suggestMealResponse struct {
	Suggestion *suggest.PredictionResult `json:"suggestion"`
	Threshold  int                       `json:"threshold"`
	Reason     string                    `json:"reason,omitempty"`
}

type getLogsResponse struct {
	Entries []journal.LogRecord `json:"entries"`
	Total   int                 `json:"total"`
}

type searchFoodsResponse struct {
	Foods []foodlib.Food `json:"foods"`
	Total int            `json:"total"`
}

// extractParams re-marshals the request arguments into a typed params
// struct.
func extractParams(req *protocol.CallToolRequest, target any) error {
	b, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleLogMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params logMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Description)
	if name == "" {
		return nil, errors.New("description is required")
	}

	when := time.Now()
	if params.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, params.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp (expected RFC 3339): %w", err)
		}
		// Slots resolve in the journal owner's local day, whatever
		// zone the client sent.
		when = t.Local()
	}

	grams := params.Grams
	if grams <= 0 {
		grams = 100
	}

	slot := journal.SlotAt(when)
	if params.Slot != "" {
		parsed, err := journal.ParseMealSlot(params.Slot)
		if err != nil {
			return nil, err
		}
		slot = parsed
	}

	var macros journal.Macros
	if s.estimator != nil {
		macros = s.estimator.MacrosOrZero(ctx, &estimate.Request{FoodName: name, Grams: grams})
	}

	rec := &journal.LogRecord{
		UserID:   s.userID,
		FoodName: name,
		Grams:    grams,
		Slot:     slot,
		Moment:   journal.PreciseMoment(when),
		Macros:   macros,
	}
	if err := s.store.CreateLog(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to log meal: %w", err)
	}

	return jsonResult(rec)
}

func (s *Server) handleSuggestMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params suggestMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	sess := session.New(s.store, s.userID, session.Options{
		Engine: s.engine,
		Limit:  params.Limit,
		Logger: s.logger,
	})
	defer sess.Close()

	sess.Start(ctx)
	<-sess.Done()

	resp := suggestMealResponse{
		Suggestion: sess.Result(),
		Threshold:  s.engine.Threshold(),
	}
	if resp.Suggestion == nil {
		resp.Reason = "no recent habit cleared the score threshold"
	}

	return jsonResult(resp)
}

func (s *Server) handleGetLogs(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params getLogsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	q := journal.LogQuery{
		UserID:   s.userID,
		FromDate: params.StartDate,
		ToDate:   params.EndDate,
		Limit:    params.Limit,
	}
	if params.Slot != "" {
		slot, err := journal.ParseMealSlot(params.Slot)
		if err != nil {
			return nil, err
		}
		q.Slot = &slot
	}

	logs, err := s.store.QueryLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	if logs == nil {
		logs = []journal.LogRecord{}
	}

	return jsonResult(getLogsResponse{Entries: logs, Total: len(logs)})
}

func (s *Server) handleSearchFoods(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params searchFoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Query) == "" {
		return nil, errors.New("query is required")
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	foods, err := s.store.SearchFoods(ctx, params.Query, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search foods: %w", err)
	}
	if foods == nil {
		foods = []foodlib.Food{}
	}

	return jsonResult(searchFoodsResponse{Foods: foods, Total: len(foods)})
}
