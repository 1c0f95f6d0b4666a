package voice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// JSON wire shapes for the live speech API. Client sends one setup message,
// then interleaved realtimeInput (audio) and clientContent (text) messages;
// the server streams setupComplete followed by serverContent messages.

const (
	uplinkMime   = "audio/pcm;rate=16000"
	downlinkMime = "audio/pcm"
)

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Tools             []tool           `json:"tools,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	GoAway        *goAway        `json:"goAway"`
}

type serverContent struct {
	ModelTurn         *content           `json:"modelTurn"`
	TurnComplete      bool               `json:"turnComplete"`
	Interrupted       bool               `json:"interrupted"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *webSource `json:"web"`
}

type webSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

func buildSetup(params SessionParams) ([]byte, error) {
	payload := setupPayload{
		Model: params.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if params.Voice != "" {
		payload.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: params.Voice},
			},
		}
	}
	if params.SystemInstruction != "" {
		payload.SystemInstruction = &content{
			Parts: []part{{Text: params.SystemInstruction}},
		}
	}
	if params.Grounding {
		payload.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	return json.Marshal(setupMessage{Setup: payload})
}

func buildAudio(pcm []byte) ([]byte, error) {
	return json.Marshal(realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{
				MimeType: uplinkMime,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	})
}

func buildText(text string, endTurn bool) ([]byte, error) {
	return json.Marshal(clientContentMessage{
		ClientContent: clientContent{
			Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: endTurn,
		},
	})
}

// parseServerMessage maps one raw server frame to zero or more events. A
// frame can carry audio parts, citations, and a turn boundary at once; the
// resulting events preserve that order.
func parseServerMessage(data []byte) ([]Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parsing server message: %w", err)
	}

	var events []Event
	if msg.SetupComplete != nil {
		events = append(events, Event{Type: EventOpened})
	}
	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				if !strings.HasPrefix(p.InlineData.MimeType, downlinkMime) {
					continue
				}
				events = append(events, Event{Type: EventAudio, Audio: p.InlineData.Data})
			}
		}
		if gm := sc.GroundingMetadata; gm != nil {
			var citations []Citation
			for _, gc := range gm.GroundingChunks {
				if gc.Web == nil {
					continue
				}
				citations = append(citations, Citation{Title: gc.Web.Title, URL: gc.Web.URI})
			}
			if len(citations) > 0 {
				events = append(events, Event{Type: EventCitations, Citations: citations})
			}
		}
		if sc.TurnComplete {
			events = append(events, Event{Type: EventTurnComplete})
		}
	}
	if msg.GoAway != nil {
		events = append(events, Event{Type: EventClosed, Reason: "server going away"})
	}
	return events, nil
}
