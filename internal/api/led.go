package api

import (
	"net/http"
)

func (s *Server) handleLEDOn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.tracker.ManualOn()
	jsonResp(w, http.StatusOK, map[string]interface{}{"message": "LED turned on"})
}

func (s *Server) handleLEDOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.tracker.ManualOff()
	jsonResp(w, http.StatusOK, map[string]interface{}{"message": "LED turned off"})
}

// handleLEDBlink starts the blink test and returns without waiting for it.
func (s *Server) handleLEDBlink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.tracker.ManualBlink()
	jsonResp(w, http.StatusOK, map[string]interface{}{"message": "LED blink started"})
}

func (s *Server) handleLEDStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := s.indicator.State()
	status := "off"
	if st.Level {
		status = "on"
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"message": "LED status",
		"status":  status,
		"state":   st,
		"driver":  s.indicator.Info(),
	})
}
