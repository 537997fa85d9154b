// Package protocol defines the interview WebSocket message contract.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType is the `type` discriminator carried by every JSON frame.
type MessageType string

// Client -> server control frames.
const (
	TypeReady            MessageType = "ready"
	TypeAudioEnd         MessageType = "audio_end"
	TypeListeningStart   MessageType = "listening_start"
	TypeGreetingComplete MessageType = "greeting_complete"
)

// Server -> client frames.
const (
	TypeGreetingVideo        MessageType = "greeting_video"
	TypeQuestionVideo        MessageType = "question_video"
	TypeStartListening       MessageType = "start_listening"
	TypeTranscriptionPartial MessageType = "transcription_partial"
	TypeTranscription        MessageType = "transcription"
	TypeEvaluation           MessageType = "evaluation"
	TypeInterimResult        MessageType = "interim_result"
	TypeResults              MessageType = "results"
	TypeError                MessageType = "error"
)

var (
	// ErrMalformed indicates a frame that is not a JSON object with a type.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType indicates a well-formed frame with an unrecognized type.
	ErrUnknownType = errors.New("unknown message type")
)

// Inbound is one decoded server -> client message.
type Inbound interface {
	MessageType() MessageType
}

// GreetingVideo opens the interview with the avatar's welcome video.
type GreetingVideo struct {
	VideoURL string `json:"video_url"`
	Text     string `json:"text,omitempty"`
}

// QuestionVideo carries the next question and its avatar video.
type QuestionVideo struct {
	Index    int    `json:"question_index"`
	Text     string `json:"question_text"`
	VideoURL string `json:"video_url"`
	Total    int    `json:"total_questions,omitempty"`
}

// StartListening is the server's explicit permission to capture an answer.
type StartListening struct {
	VideoURL string `json:"video_url,omitempty"`
}

// Transcription is advisory speech-to-text for the current answer.
type Transcription struct {
	Text  string `json:"text"`
	Final bool   `json:"-"`
}

// Evaluation is per-answer feedback (`evaluation` or `interim_result`).
type Evaluation struct {
	Score    float64 `json:"score"`
	Marks    string  `json:"marks,omitempty"`
	Feedback string  `json:"feedback"`
}

// ServerError is a backend-reported failure.
type ServerError struct {
	Message string `json:"message"`
}

func (GreetingVideo) MessageType() MessageType  { return TypeGreetingVideo }
func (QuestionVideo) MessageType() MessageType  { return TypeQuestionVideo }
func (StartListening) MessageType() MessageType { return TypeStartListening }
func (ServerError) MessageType() MessageType    { return TypeError }
func (SessionResult) MessageType() MessageType  { return TypeResults }

func (t Transcription) MessageType() MessageType {
	if t.Final {
		return TypeTranscription
	}
	return TypeTranscriptionPartial
}

func (Evaluation) MessageType() MessageType { return TypeEvaluation }

type envelope struct {
	Type MessageType `json:"type"`
}

// Decode classifies one text frame by its type discriminator.
func Decode(data []byte) (Inbound, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(string(env.Type)) == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case TypeGreetingVideo:
		var msg GreetingVideo
		return decodeInto(trimmed, env.Type, &msg, func() Inbound { return msg })
	case TypeQuestionVideo:
		var msg QuestionVideo
		return decodeInto(trimmed, env.Type, &msg, func() Inbound { return msg })
	case TypeStartListening:
		var msg StartListening
		return decodeInto(trimmed, env.Type, &msg, func() Inbound { return msg })
	case TypeTranscriptionPartial, TypeTranscription:
		var msg Transcription
		return decodeInto(trimmed, env.Type, &msg, func() Inbound {
			msg.Final = env.Type == TypeTranscription
			return msg
		})
	case TypeEvaluation, TypeInterimResult:
		var msg Evaluation
		return decodeInto(trimmed, env.Type, &msg, func() Inbound {
			if msg.Score == 0 && msg.Marks != "" {
				if score, ok := ParseMarks(msg.Marks); ok {
					msg.Score = score
				}
			}
			return msg
		})
	case TypeResults:
		var msg SessionResult
		return decodeInto(trimmed, env.Type, &msg, func() Inbound { return msg })
	case TypeError:
		var msg ServerError
		return decodeInto(trimmed, env.Type, &msg, func() Inbound { return msg })
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeInto(data []byte, msgType MessageType, target any, build func() Inbound) (Inbound, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformed, msgType, err)
	}
	return build(), nil
}

// EncodeControl renders one client -> server control frame.
func EncodeControl(msgType MessageType) ([]byte, error) {
	switch msgType {
	case TypeReady, TypeAudioEnd, TypeListeningStart, TypeGreetingComplete:
	default:
		return nil, fmt.Errorf("%w: %q is not a control message", ErrUnknownType, msgType)
	}
	return json.Marshal(envelope{Type: msgType})
}
