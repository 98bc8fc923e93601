package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/1F47E/go-padreel/internal/alloc"
	"github.com/1F47E/go-padreel/internal/core"
	"github.com/1F47E/go-padreel/internal/synth"
)

// generateRequest mirrors the generator form. Missing fields take the form defaults.
type generateRequest struct {
	Mode         string   `json:"mode"`
	SizeMB       float64  `json:"size_mb"`
	Duration     float64  `json:"duration_seconds"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	FPS          float64  `json:"fps"`
	Palette      []string `json:"palette"`
	Caption      string   `json:"caption"`
	ConfirmLarge bool     `json:"confirm_large"`
}

func (g generateRequest) toCore() (core.Request, error) {
	req := core.DefaultRequest()
	mode, err := core.ParseMode(g.Mode)
	if err != nil {
		return req, err
	}
	req.Mode = mode
	req.ConfirmLarge = g.ConfirmLarge
	if g.SizeMB != 0 {
		req = req.WithSizeMB(g.SizeMB)
	}
	if g.Duration != 0 {
		req.Duration = time.Duration(g.Duration * float64(time.Second))
	}
	if g.Width != 0 {
		req.Width = g.Width
	}
	if g.Height != 0 {
		req.Height = g.Height
	}
	if g.FPS != 0 {
		req.FrameRate = g.FPS
	}
	palette, err := synth.ParsePalette(g.Palette...)
	if err != nil {
		return req, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	req.Theme = synth.Theme{Palette: palette, Caption: g.Caption}
	return req, nil
}

type resultResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Label     string    `json:"label"`
	Size      int64     `json:"size"`
	SizeMB    string    `json:"size_mb"`
	SizeHuman string    `json:"size_human"`
	Padded    bool      `json:"padded"`
	Overshoot int64     `json:"overshoot"`
	Mock      bool      `json:"mock"`
	Advisory  string    `json:"advisory,omitempty"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	Download  string    `json:"download"`
}

func newResultResponse(r *core.Result) resultResponse {
	resp := resultResponse{
		ID:        r.ID,
		FileName:  r.FileName,
		MimeType:  r.MimeType,
		Label:     r.Label(),
		Size:      r.Size,
		SizeMB:    r.SizeMB(),
		SizeHuman: humanize.IBytes(uint64(r.Size)),
		Padded:    r.Padded,
		Overshoot: r.Overshoot,
		Mock:      r.Mock,
		Checksum:  r.Meta.ChecksumHex(),
		CreatedAt: r.Meta.Timestamp(),
		Download:  "/api/v1/results/" + r.ID + "/download",
	}
	if r.Advisory != nil {
		resp.Advisory = r.Advisory.Error()
	}
	return resp
}

type statusResponse struct {
	State    string          `json:"state"`
	Progress int             `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Result   *resultResponse `json:"result,omitempty"`
}

func newStatusResponse(st core.State) statusResponse {
	resp := statusResponse{State: st.Phase.String(), Progress: st.Progress, Message: st.Message}
	if st.Result != nil {
		rr := newResultResponse(st.Result)
		resp.Result = &rr
	}
	return resp
}

// Fake generations run inline and answer with the result. Real ones run in the
// background; poll /status.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	}
	req, err := body.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.Mode == core.ModeFake {
		res, err := s.core.Generate(r.Context(), req, nil)
		if err != nil {
			s.writeGenerateError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newResultResponse(res))
		return
	}

	// held across Start so a cancel arriving right after the Generating transition finds the func
	s.mu.Lock()
	ctx, cancel := context.WithCancel(s.ctx)
	if err := s.core.Start(ctx, req, nil); err != nil {
		s.mu.Unlock()
		cancel()
		s.writeGenerateError(w, err)
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, newStatusResponse(s.core.State()))
}

func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, core.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, alloc.ErrUserAborted):
		writeError(w, http.StatusPreconditionFailed, "confirmation_required",
			"files above the large file threshold need \"confirm_large\": true")
	case errors.Is(err, alloc.ErrAllocationFailure):
		writeError(w, http.StatusInsufficientStorage, "out_of_memory", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "generation_failed", err.Error())
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if s.core.State().Phase != core.Generating {
		writeError(w, http.StatusConflict, "not_generating", "no generation in progress")
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		writeError(w, http.StatusConflict, "not_generating", "generation is not cancellable")
		return
	}
	cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.core.State()))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.core.Result(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown or disposed result")
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, ok := s.core.Result(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown or disposed result")
		return
	}
	obj, err := res.Object()
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := obj.WriteTo(w); err != nil {
		s.log.Debugf("download %s interrupted: %v", res.ID, err)
	}
}

func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	if !s.core.Release(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "not_found", "unknown or disposed result")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  s.core.State().Phase.String(),
		"blobs":  s.core.Store().Len(),
	})
}
