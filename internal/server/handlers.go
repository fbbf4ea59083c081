package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
)

// Request body limits.
const (
	maxJSONBodyBytes    = 1 << 20  // 1 MiB
	maxCloneUploadBytes = 25 << 20 // 25 MiB across all samples
)

var errInvalidJSONBody = errors.New("invalid JSON request body")

// decodeJSON reads a bounded JSON body into target.
func decodeJSON(responseWriter http.ResponseWriter, request *http.Request, target any) error {
	body := http.MaxBytesReader(responseWriter, request.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(target)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidJSONBody, err)
	}

	return nil
}

func (s *Server) handleHealth(responseWriter http.ResponseWriter, _ *http.Request) {
	writeJSON(responseWriter, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueueStatus(responseWriter http.ResponseWriter, _ *http.Request) {
	writeJSON(responseWriter, http.StatusOK, s.queue.Status())
}

// agentRequest is the request body for creating or updating an agent.
type agentRequest struct {
	Name         string                    `json:"name"`
	VoiceID      string                    `json:"voice_id"`
	Description  string                    `json:"description"`
	SystemPrompt string                    `json:"system_prompt"`
	Settings     *elevenlabs.SettingsInput `json:"voice_settings"`
}

func (s *Server) handleListAgents(responseWriter http.ResponseWriter, request *http.Request) {
	agents, err := s.agents.ListAgents(request.Context())
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, agents)
}

func (s *Server) handleCreateAgent(responseWriter http.ResponseWriter, request *http.Request) {
	var body agentRequest

	err := decodeJSON(responseWriter, request, &body)
	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	err = validateAgentName(body.Name)
	if err == nil {
		err = validateSettingsInput(body.Settings)
	}

	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	agent := &core.Agent{
		ID:           "",
		Name:         body.Name,
		VoiceID:      body.VoiceID,
		Description:  body.Description,
		SystemPrompt: body.SystemPrompt,
		Settings:     elevenlabs.Normalize(body.Settings),
		CreatedAt:    time.Time{},
		UpdatedAt:    time.Time{},
	}

	err = s.agents.CreateAgent(request.Context(), agent)
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(responseWriter http.ResponseWriter, request *http.Request) {
	agent, err := s.agents.GetAgent(request.Context(), request.PathValue("id"))
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, agent)
}

func (s *Server) handleUpdateAgent(responseWriter http.ResponseWriter, request *http.Request) {
	var body agentRequest

	err := decodeJSON(responseWriter, request, &body)
	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	err = validateAgentName(body.Name)
	if err == nil {
		err = validateSettingsInput(body.Settings)
	}

	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	agent, err := s.agents.GetAgent(request.Context(), request.PathValue("id"))
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	agent.Name = body.Name
	agent.VoiceID = body.VoiceID
	agent.Description = body.Description
	agent.SystemPrompt = body.SystemPrompt

	if body.Settings != nil {
		agent.Settings = elevenlabs.Normalize(body.Settings)
	}

	err = s.agents.UpdateAgent(request.Context(), agent)
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(responseWriter http.ResponseWriter, request *http.Request) {
	err := s.agents.DeleteAgent(request.Context(), request.PathValue("id"))
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	responseWriter.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVoices(responseWriter http.ResponseWriter, request *http.Request) {
	voices, err := s.provider.ListVoices(request.Context())
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, voices)
}

func (s *Server) handleCloneVoice(responseWriter http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(responseWriter, request.Body, maxCloneUploadBytes)

	err := request.ParseMultipartForm(maxCloneUploadBytes)
	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, "invalid multipart upload")

		return
	}

	name := request.FormValue("name")
	if name == "" {
		writeError(responseWriter, http.StatusBadRequest, ErrCloneNameRequired.Error())

		return
	}

	fileHeaders := request.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(responseWriter, http.StatusBadRequest, ErrCloneFilesRequired.Error())

		return
	}

	samples := make([]core.CloneSample, 0, len(fileHeaders))

	for _, header := range fileHeaders {
		sample, readErr := readCloneSample(header)
		if readErr != nil {
			writeError(responseWriter, http.StatusBadRequest, readErr.Error())

			return
		}

		samples = append(samples, sample)
	}

	voice, err := s.provider.CloneVoice(request.Context(), core.CloneRequest{
		Name:        name,
		Description: request.FormValue("description"),
		Samples:     samples,
	})
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	s.publishVoiceCloned(voice)

	writeJSON(responseWriter, http.StatusCreated, voice)
}

func (s *Server) handleDeleteVoice(responseWriter http.ResponseWriter, request *http.Request) {
	err := s.provider.DeleteVoice(request.Context(), request.PathValue("id"))
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	responseWriter.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserInfo(responseWriter http.ResponseWriter, request *http.Request) {
	info, err := s.provider.UserInfo(request.Context())
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, info)
}

// synthesizeRequest is the request body for text-to-speech. When agent_id is
// set, the agent's voice and settings act as defaults for omitted fields.
// With save=true the audio is persisted and its key returned instead of the
// raw bytes.
type synthesizeRequest struct {
	Text     string                    `json:"text"`
	VoiceID  string                    `json:"voice_id"`
	AgentID  string                    `json:"agent_id"`
	ModelID  string                    `json:"model_id"`
	Settings *elevenlabs.SettingsInput `json:"voice_settings"`
	Save     bool                      `json:"save"`
}

// synthesizeResponse is returned when the generated audio was persisted.
type synthesizeResponse struct {
	AudioKey   string `json:"audio_key"`
	VoiceID    string `json:"voice_id"`
	Characters int    `json:"characters"`
}

func (s *Server) handleSynthesize(responseWriter http.ResponseWriter, request *http.Request) {
	var body synthesizeRequest

	err := decodeJSON(responseWriter, request, &body)
	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	body.Text = s.sanitizer.Sanitize(body.Text)

	err = validateSynthesisText(body.Text)
	if err == nil {
		err = validateSettingsInput(body.Settings)
	}

	if err != nil {
		writeError(responseWriter, http.StatusBadRequest, err.Error())

		return
	}

	synthesisReq, err := s.resolveSynthesis(request, &body)
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	if synthesisReq.VoiceID == "" {
		writeError(responseWriter, http.StatusBadRequest, ErrVoiceRequired.Error())

		return
	}

	audioData, err := s.provider.Synthesize(request.Context(), synthesisReq)
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	if !body.Save {
		responseWriter.Header().Set("Content-Type", "audio/mpeg")
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write(audioData)

		return
	}

	audioKey, err := s.audio.Save(audioData, ".mp3")
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	s.publishSynthesisCompleted(audioKey, body.AgentID, synthesisReq.VoiceID, len(body.Text))

	writeJSON(responseWriter, http.StatusCreated, synthesizeResponse{
		AudioKey:   audioKey,
		VoiceID:    synthesisReq.VoiceID,
		Characters: len(body.Text),
	})
}

// resolveSynthesis merges the request with agent defaults and normalizes the
// settings record before it goes anywhere near the provider.
func (s *Server) resolveSynthesis(
	request *http.Request,
	body *synthesizeRequest,
) (core.SynthesisRequest, error) {
	voiceID := body.VoiceID
	settings := elevenlabs.Normalize(body.Settings)

	if body.AgentID != "" {
		agent, err := s.agents.GetAgent(request.Context(), body.AgentID)
		if err != nil {
			return core.SynthesisRequest{}, err
		}

		if voiceID == "" {
			voiceID = agent.VoiceID
		}

		if body.Settings == nil {
			settings = elevenlabs.Clamp(agent.Settings)
		}
	}

	return core.SynthesisRequest{
		Text:     body.Text,
		VoiceID:  voiceID,
		ModelID:  body.ModelID,
		Settings: settings,
	}, nil
}

func (s *Server) handleListAudio(responseWriter http.ResponseWriter, _ *http.Request) {
	names, err := s.audio.List()
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	writeJSON(responseWriter, http.StatusOK, map[string][]string{"files": names})
}

func (s *Server) handleGetAudio(responseWriter http.ResponseWriter, request *http.Request) {
	name := request.PathValue("name")

	data, err := s.audio.Open(name)
	if err != nil {
		writeDomainError(responseWriter, err)

		return
	}

	responseWriter.Header().Set("Content-Type", audioContentType(name))
	responseWriter.WriteHeader(http.StatusOK)
	_, _ = responseWriter.Write(data)
}

// publishSynthesisCompleted emits the event when publishing is enabled. A
// publish failure is logged but never fails the request.
func (s *Server) publishSynthesisCompleted(audioKey, agentID, voiceID string, characters int) {
	if s.events == nil {
		return
	}

	err := s.events.SynthesisCompleted(audioKey, agentID, voiceID, characters)
	if err != nil && s.log != nil {
		s.log.Warn("Failed to publish synthesis event: %v", err)
	}
}

func (s *Server) publishVoiceCloned(voice core.Voice) {
	if s.events == nil {
		return
	}

	err := s.events.VoiceCloned(voice.ID, voice.Name)
	if err != nil && s.log != nil {
		s.log.Warn("Failed to publish voice cloned event: %v", err)
	}
}

// readCloneSample loads one uploaded sample file into memory.
func readCloneSample(header *multipart.FileHeader) (core.CloneSample, error) {
	file, err := header.Open()
	if err != nil {
		return core.CloneSample{}, fmt.Errorf("failed to open uploaded sample %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.CloneSample{}, fmt.Errorf("failed to read uploaded sample %s: %w", header.Filename, err)
	}

	return core.CloneSample{Filename: filepath.Base(header.Filename), Data: data}, nil
}

func audioContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
