package web

import (
	"net/http"

	"github.com/JonMunkholm/roster/internal/config"
)

// ConfigResponse lists the persisted configuration values. Credentials are
// masked.
type ConfigResponse struct {
	Values map[string]string `json:"values"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	values, err := s.settings.GetAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{Values: maskSecrets(values)})
}

func maskSecrets(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if config.IsSecret(k) {
			v = config.Mask(v)
		}
		out[k] = v
	}
	return out
}
