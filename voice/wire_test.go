package voice

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildSetup(t *testing.T) {
	data, err := buildSetup(SessionParams{
		Model:             "models/test",
		Voice:             "Puck",
		SystemInstruction: "You answer the phone.",
		Grounding:         true,
	})
	if err != nil {
		t.Fatalf("buildSetup: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("setup is not valid JSON: %v", err)
	}
	setup, ok := msg["setup"].(map[string]any)
	if !ok {
		t.Fatal("missing setup envelope")
	}
	if setup["model"] != "models/test" {
		t.Errorf("model = %v", setup["model"])
	}
	if _, hasTools := setup["tools"]; !hasTools {
		t.Error("grounding requested but no tools in setup")
	}
	s := string(data)
	if !strings.Contains(s, `"voiceName":"Puck"`) {
		t.Error("voice name not in setup")
	}
	if !strings.Contains(s, "You answer the phone.") {
		t.Error("system instruction not in setup")
	}
}

func TestBuildSetupOmitsOptionalSections(t *testing.T) {
	data, err := buildSetup(SessionParams{Model: "models/test"})
	if err != nil {
		t.Fatalf("buildSetup: %v", err)
	}
	s := string(data)
	for _, absent := range []string{"tools", "systemInstruction", "speechConfig"} {
		if strings.Contains(s, absent) {
			t.Errorf("bare setup contains %q", absent)
		}
	}
}

func TestBuildAudioCarriesMimeAndPayload(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	data, err := buildAudio(pcm)
	if err != nil {
		t.Fatalf("buildAudio: %v", err)
	}

	var msg realtimeInputMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	chunks := msg.RealtimeInput.MediaChunks
	if len(chunks) != 1 {
		t.Fatalf("%d media chunks, want 1", len(chunks))
	}
	if chunks[0].MimeType != uplinkMime {
		t.Errorf("mime = %q, want %q", chunks[0].MimeType, uplinkMime)
	}
	decoded, err := base64.StdEncoding.DecodeString(chunks[0].Data)
	if err != nil || string(decoded) != string(pcm) {
		t.Errorf("payload round trip failed: %v", err)
	}
}

func TestBuildTextMarksTurn(t *testing.T) {
	data, err := buildText("hello", true)
	if err != nil {
		t.Fatalf("buildText: %v", err)
	}
	var msg clientContentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.ClientContent.TurnComplete {
		t.Error("turnComplete not set")
	}
	if len(msg.ClientContent.Turns) != 1 || msg.ClientContent.Turns[0].Role != "user" {
		t.Errorf("turns = %+v", msg.ClientContent.Turns)
	}
}

func TestParseServerMessage(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString(make([]byte, 10))

	for _, tt := range []struct {
		name string
		raw  string
		want []EventType
	}{
		{
			"setup complete",
			`{"setupComplete":{}}`,
			[]EventType{EventOpened},
		},
		{
			"audio part",
			`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + audio + `"}}]}}}`,
			[]EventType{EventAudio},
		},
		{
			"audio with turn boundary",
			`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm","data":"` + audio + `"}}]},"turnComplete":true}}`,
			[]EventType{EventAudio, EventTurnComplete},
		},
		{
			"citations",
			`{"serverContent":{"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.com","title":"Example"}}]}}}`,
			[]EventType{EventCitations},
		},
		{
			"go away",
			`{"goAway":{"timeLeft":"10s"}}`,
			[]EventType{EventClosed},
		},
		{
			"text-only part ignored",
			`{"serverContent":{"modelTurn":{"parts":[{"text":"thinking"}]}}}`,
			nil,
		},
		{
			"non-audio inline data ignored",
			`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"image/png","data":"` + audio + `"}}]}}}`,
			nil,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			events, err := parseServerMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			var got []EventType
			for _, ev := range events {
				got = append(got, ev.Type)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("events = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParseServerMessageRejectsGarbage(t *testing.T) {
	if _, err := parseServerMessage([]byte("not json")); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestParseServerMessageCitationFields(t *testing.T) {
	raw := `{"serverContent":{"groundingMetadata":{"groundingChunks":[
		{"web":{"uri":"https://example.com/a","title":"A"}},
		{"web":null},
		{"web":{"uri":"https://example.com/b","title":"B"}}
	]}}}`
	events, err := parseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	cs := events[0].Citations
	if len(cs) != 2 {
		t.Fatalf("%d citations, want 2 (null web skipped)", len(cs))
	}
	if cs[0].URL != "https://example.com/a" || cs[0].Title != "A" {
		t.Errorf("first citation = %+v", cs[0])
	}
}
