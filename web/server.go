package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"blacksky-md/session"
	"blacksky-md/utils"
)

// StatusSource is the read-only view of the session the presenter needs.
// The presenter never mutates connection state beyond triggering a pairing
// code request.
type StatusSource interface {
	Snapshot() session.Status
	RequestPairingCode(ctx context.Context, number string) (string, error)
}

// Server is the operator-facing status page. It carries no authentication:
// it is an internal tool, not a public surface.
type Server struct {
	src  StatusSource
	hub  *Hub
	log  zerolog.Logger
	http *http.Server
}

func NewServer(port int, src StatusSource, hub *Hub, logger zerolog.Logger) *Server {
	s := &Server{src: src, hub: hub, log: logger}

	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/status", s.handleStatus)
	r.Get("/qr.png", s.handleQRImage)
	r.Post("/request-pairing-code", s.handlePairingCode)
	r.Post("/generate-code", s.handlePairingCode)
	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener, then serves in the background. Returning the
// bind error lets startup abort instead of running without a status page.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.http.Addr, err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("presenter server failed")
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot())
}

// handleQRImage renders the pending QR challenge as a PNG. 404 while no
// challenge is pending; the page shows a waiting placeholder instead.
func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	st := s.src.Snapshot()
	if st.QRCode == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no QR challenge pending"})
		return
	}

	png, err := qrcode.Encode(st.QRCode, qrcode.Medium, 512)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode QR image")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to render QR code"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func (s *Server) handlePairingCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	number, err := utils.NormalizeNumber(req.PhoneNumber)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	code, err := s.src.RequestPairingCode(r.Context(), number)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"pairingCode": code,
		"phoneNumber": number,
		"region":      utils.RegionCode(number),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
