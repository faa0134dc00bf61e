// Package gemini implements the game's content-service boundary on top of
// the Gemini generateContent API. All responses pass through defensive JSON
// extraction with per-field fallbacks, so callers never see a half-shaped
// payload.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/neurovoki/neurovoki/internal/game"
)

type Client struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	http       *http.Client
}

func New(apiKey, baseURL, textModel, imageModel string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if textModel == "" {
		textModel = "gemini-3-flash-preview"
	}
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		TextModel:  textModel,
		ImageModel: imageModel,
		http:       &http.Client{Timeout: 120 * time.Second},
	}
}

// wire types for the generateContent endpoint

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model string, parts []part, jsonMode bool) (generateResponse, error) {
	if c.APIKey == "" {
		return generateResponse{}, errors.New("missing GEMINI_API_KEY")
	}
	req := generateRequest{Contents: []content{{Parts: parts}}}
	if jsonMode {
		req.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	b, _ := json.Marshal(req)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return generateResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.APIKey)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return generateResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return generateResponse{}, fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return generateResponse{}, err
	}
	return out, nil
}

func (c *Client) generateText(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	out, err := c.generate(ctx, c.TextModel, []part{{Text: prompt}}, jsonMode)
	if err != nil {
		return "", err
	}
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return strings.TrimSpace(p.Text), nil
			}
		}
	}
	return "", errors.New("no text in response")
}

// generateImage returns the produced image as a data URL.
func (c *Client) generateImage(ctx context.Context, prompt string) (string, error) {
	out, err := c.generate(ctx, c.ImageModel, []part{{Text: prompt}}, false)
	if err != nil {
		return "", err
	}
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return "data:image/png;base64," + p.InlineData.Data, nil
			}
		}
	}
	return "", errors.New("no image in response")
}

// cleanJSON tolerates chatty model output: it strips code fences and carves
// out the outermost object before parsing.
func cleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first != -1 && last > first {
		return s[first : last+1]
	}
	return s
}

func parseJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	return json.Unmarshal([]byte(cleanJSON(s)), v)
}

// GenerateTask produces one round task for the given type, scoped to the
// settings' themes and excluding already-played content.
func (c *Client) GenerateTask(ctx context.Context, rt game.RoundType, settings game.Settings, excluded []string) (game.Task, error) {
	switch rt {
	case game.RoundImageGuess:
		return c.generateImageTask(ctx, settings, excluded)
	case game.RoundScientificSongs:
		return c.generateSongTask(ctx, settings, excluded)
	case game.RoundExplainToAI:
		return c.generateExplainTask(ctx, settings, excluded)
	case game.RoundPromptBattle:
		return c.generatePromptTask(ctx, settings)
	default:
		return nil, fmt.Errorf("unknown round type %q", rt)
	}
}

func (c *Client) generateImageTask(ctx context.Context, settings game.Settings, excluded []string) (game.Task, error) {
	text, err := c.generateText(ctx, imageTaskPrompt(settings, excluded), true)
	if err != nil {
		return nil, err
	}
	var brain struct {
		Target       string `json:"target"`
		VisualPrompt string `json:"visual_prompt"`
		Hint         string `json:"hint"`
	}
	if err := parseJSON(text, &brain); err != nil {
		return nil, fmt.Errorf("parse image task: %w", err)
	}
	if brain.Target == "" {
		return nil, errors.New("image task missing target")
	}
	visual := brain.VisualPrompt
	if visual == "" {
		visual = brain.Target
	}
	imageURL, err := c.generateImage(ctx, visual)
	if err != nil {
		return nil, err
	}
	return game.ImageTask{ImageURL: imageURL, Target: brain.Target, Hint: brain.Hint}, nil
}

func (c *Client) generateSongTask(ctx context.Context, settings game.Settings, excluded []string) (game.Task, error) {
	theme := "Бюрократия"
	if len(settings.Themes) > 0 {
		theme = settings.Themes[rand.Intn(len(settings.Themes))]
	}
	text, err := c.generateText(ctx, songTaskPrompt(theme, excluded), true)
	if err != nil {
		return nil, err
	}
	var data struct {
		TargetSong      string `json:"targetSong"`
		RewrittenLyrics string `json:"rewrittenLyrics"`
		Hint            string `json:"hint"`
	}
	if err := parseJSON(text, &data); err != nil {
		return nil, fmt.Errorf("parse song task: %w", err)
	}
	if data.TargetSong == "" || data.RewrittenLyrics == "" {
		return nil, errors.New("song task incomplete")
	}
	return game.SongTask{
		Lyrics: data.RewrittenLyrics,
		Target: data.TargetSong,
		Style:  theme,
		Hint:   data.Hint,
	}, nil
}

func (c *Client) generateExplainTask(ctx context.Context, settings game.Settings, excluded []string) (game.Task, error) {
	word, err := c.generateText(ctx, explainTaskPrompt(settings, excluded), false)
	if err != nil {
		return nil, err
	}
	word = strings.Trim(word, "\"«» \n")
	if word == "" {
		return nil, errors.New("empty secret word")
	}
	return game.ExplainTask{Word: word}, nil
}

func (c *Client) generatePromptTask(ctx context.Context, settings game.Settings) (game.Task, error) {
	text, err := c.generateText(ctx, promptTaskPrompt(settings), true)
	if err != nil {
		return nil, err
	}
	var brain struct {
		Prompt   string   `json:"prompt"`
		Keywords []string `json:"keywords"`
	}
	if err := parseJSON(text, &brain); err != nil {
		return nil, fmt.Errorf("parse prompt task: %w", err)
	}
	if brain.Prompt == "" {
		return nil, errors.New("prompt task missing prompt")
	}
	imageURL, err := c.generateImage(ctx, brain.Prompt)
	if err != nil {
		return nil, err
	}
	return game.PromptTask{TargetImageURL: imageURL, Keywords: brain.Keywords}, nil
}

// JudgeAnswer scores a raw guess against the target on a 0-10 scale.
func (c *Client) JudgeAnswer(ctx context.Context, target, answer string) (game.Judgement, error) {
	text, err := c.generateText(ctx, judgePrompt(target, answer), true)
	if err != nil {
		return game.Judgement{}, err
	}
	var j game.Judgement
	if err := parseJSON(text, &j); err != nil {
		return game.Judgement{}, fmt.Errorf("parse judgement: %w", err)
	}
	j.Score = clamp(j.Score, 0, 10)
	if j.Feedback == "" {
		j.Feedback = "..."
	}
	return j, nil
}

func (c *Client) EvaluateExplanation(ctx context.Context, word, explanation string) (game.Explanation, error) {
	text, err := c.generateText(ctx, explanationPrompt(word, explanation), true)
	if err != nil {
		return game.Explanation{}, err
	}
	var e game.Explanation
	if err := parseJSON(text, &e); err != nil {
		return game.Explanation{}, fmt.Errorf("parse explanation verdict: %w", err)
	}
	e.Points = clamp(e.Points, 0, 10)
	return e, nil
}

// EvaluatePromptBattle generates an image from the user's prompt and asks
// the model to compare it with the round's target image.
func (c *Client) EvaluatePromptBattle(ctx context.Context, targetImageURL, prompt string) (game.PromptScore, error) {
	userImageURL, err := c.generateImage(ctx, prompt)
	if err != nil {
		return game.PromptScore{}, err
	}
	targetData, ok := stripDataURL(targetImageURL)
	if !ok {
		return game.PromptScore{}, errors.New("target image is not a data URL")
	}
	userData, _ := stripDataURL(userImageURL)
	out, err := c.generate(ctx, c.TextModel, []part{
		{InlineData: &inlineData{MimeType: "image/png", Data: targetData}},
		{InlineData: &inlineData{MimeType: "image/png", Data: userData}},
		{Text: comparePrompt()},
	}, true)
	if err != nil {
		return game.PromptScore{}, err
	}
	raw := ""
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				raw = p.Text
			}
		}
	}
	var verdict struct {
		Score    int    `json:"score"`
		Feedback string `json:"feedback"`
	}
	if err := parseJSON(raw, &verdict); err != nil {
		return game.PromptScore{}, fmt.Errorf("parse similarity verdict: %w", err)
	}
	if verdict.Feedback == "" {
		verdict.Feedback = "..."
	}
	return game.PromptScore{
		UserImageURL: userImageURL,
		Similarity:   clamp(verdict.Score, 0, 100),
		Feedback:     verdict.Feedback,
	}, nil
}

func (c *Client) EvaluateNegotiation(ctx context.Context, target, answer, argument string, maxAddable int) (game.NegotiationVerdict, error) {
	text, err := c.generateText(ctx, negotiationPrompt(target, answer, argument, maxAddable), true)
	if err != nil {
		return game.NegotiationVerdict{}, err
	}
	var v game.NegotiationVerdict
	if err := parseJSON(text, &v); err != nil {
		return game.NegotiationVerdict{}, fmt.Errorf("parse negotiation verdict: %w", err)
	}
	v.PointsAwarded = clamp(v.PointsAwarded, 0, maxAddable)
	return v, nil
}

func stripDataURL(url string) (string, bool) {
	_, data, found := strings.Cut(url, ",")
	return data, found
}

func clamp(v, lo, hi int) int {
	return int(math.Min(float64(hi), math.Max(float64(lo), float64(v))))
}
