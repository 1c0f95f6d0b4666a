// Package chat is the text fallback for environments without working audio:
// the same business instruction and grounding configuration as a voice call,
// over a request/response text API.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"frontdesk/voice"
)

const (
	DefaultModel = "models/gemini-2.0-flash"

	endpointFmt = "https://generativelanguage.googleapis.com/v1beta/%s:generateContent"
)

// TranscriptEntry is one turn of the conversation, in order.
type TranscriptEntry struct {
	Role string // "user" or "model"
	Text string
}

type Reply struct {
	Text      string
	Citations []voice.Citation
	Metrics   *NetworkMetrics
}

// Conversation holds the rolling history of one text session. Not safe for
// concurrent Send calls; the UI serializes them.
type Conversation struct {
	client            *TracedClient
	apiKey            string
	apiURL            string
	model             string
	systemInstruction string
	grounding         bool
	history           []TranscriptEntry
}

type Option func(*Conversation)

// WithEndpoint redirects the conversation at a test server.
func WithEndpoint(url string) Option {
	return func(c *Conversation) { c.apiURL = url }
}

func WithModel(model string) Option {
	return func(c *Conversation) { c.model = model }
}

func NewConversation(apiKey, systemInstruction string, grounding bool, opts ...Option) *Conversation {
	c := &Conversation{
		apiKey:            apiKey,
		model:             DefaultModel,
		systemInstruction: systemInstruction,
		grounding:         grounding,
	}
	for _, o := range opts {
		o(c)
	}
	if c.apiURL == "" {
		c.apiURL = fmt.Sprintf(endpointFmt, c.model)
	}
	c.client = NewTracedClient(c.apiURL)
	go c.client.Warm()
	return c
}

func (c *Conversation) History() []TranscriptEntry {
	out := make([]TranscriptEntry, len(c.history))
	copy(out, c.history)
	return out
}

type generatePart struct {
	Text string `json:"text,omitempty"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generateTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	Contents          []generateContent `json:"contents"`
	Tools             []generateTool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           generateContent `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send appends the user turn, requests a reply, and appends the model turn.
// On error the user turn is rolled back so a retry doesn't duplicate it.
func (c *Conversation) Send(ctx context.Context, text string) (*Reply, error) {
	c.history = append(c.history, TranscriptEntry{Role: "user", Text: text})

	reply, err := c.generate(ctx)
	if err != nil {
		c.history = c.history[:len(c.history)-1]
		return nil, err
	}

	c.history = append(c.history, TranscriptEntry{Role: "model", Text: reply.Text})
	return reply, nil
}

func (c *Conversation) generate(ctx context.Context) (*Reply, error) {
	greq := generateRequest{
		Contents: make([]generateContent, 0, len(c.history)),
	}
	if c.systemInstruction != "" {
		greq.SystemInstruction = &generateContent{
			Parts: []generatePart{{Text: c.systemInstruction}},
		}
	}
	for _, entry := range c.history {
		greq.Contents = append(greq.Contents, generateContent{
			Role:  entry.Role,
			Parts: []generatePart{{Text: entry.Text}},
		})
	}
	if c.grounding {
		greq.Tools = []generateTool{{GoogleSearch: &struct{}{}}}
	}

	payload, err := json.Marshal(greq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	var gresp generateResponse
	if err := json.Unmarshal(resp.Body, &gresp); err != nil {
		return nil, fmt.Errorf("chat response parse error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if gresp.Error != nil {
			return nil, fmt.Errorf("chat API error %d: %s", gresp.Error.Code, gresp.Error.Message)
		}
		return nil, fmt.Errorf("chat API error %d: %s", resp.StatusCode, string(resp.Body))
	}
	if len(gresp.Candidates) == 0 {
		return nil, fmt.Errorf("chat API returned no candidates")
	}

	cand := gresp.Candidates[0]
	var b bytes.Buffer
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}

	reply := &Reply{Text: b.String(), Metrics: resp.Metrics}
	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			reply.Citations = append(reply.Citations, voice.Citation{
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			})
		}
	}
	return reply, nil
}

// timeout for one full request/response round trip.
const sendTimeout = 30 * time.Second

// SendWithTimeout wraps Send with the standard per-message deadline.
func (c *Conversation) SendWithTimeout(text string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return c.Send(ctx, text)
}
